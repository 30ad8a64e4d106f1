package providers

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/mediapruner/queue/internal/common"
	"github.com/mediapruner/queue/internal/queue"
)

// PlexTautulli implements queue.WatchHistoryProvider against a Plex
// media server and its companion Tautulli watch-history tracker.
type PlexTautulli struct {
	plexBaseURL     string
	plexToken       string
	tautulliBaseURL string
	tautulliAPIKey  string
	httpClient      *http.Client
}

// NewPlexTautulli creates a watch-history provider. Either the Plex or
// the Tautulli side may be left unconfigured (empty base URL); calls
// that need the missing side return ErrNotConfigured.
func NewPlexTautulli(plexBaseURL, plexToken, tautulliBaseURL, tautulliAPIKey string, timeout time.Duration) *PlexTautulli {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PlexTautulli{
		plexBaseURL:     plexBaseURL,
		plexToken:       plexToken,
		tautulliBaseURL: tautulliBaseURL,
		tautulliAPIKey:  tautulliAPIKey,
		httpClient:      &http.Client{Timeout: timeout},
	}
}

type plexMediaContainer struct {
	Video []struct {
		RatingKey string `xml:"ratingKey,attr"`
		Title     string `xml:"title,attr"`
		Year      int    `xml:"year,attr"`
		GUID      string `xml:"guid,attr"`
	} `xml:"Video"`
}

// ResolveRatingKeyByIMDB searches the Plex library for a movie matching
// an IMDb id embedded in its guid field.
func (p *PlexTautulli) ResolveRatingKeyByIMDB(ctx context.Context, imdbID string) (string, error) {
	if p.plexBaseURL == "" {
		return "", ErrNotConfigured
	}

	container, err := p.plexSearch(ctx, imdbID)
	if err != nil {
		return "", err
	}
	for _, v := range container.Video {
		if v.GUID != "" && v.GUID == fmt.Sprintf("com.plexapp.agents.imdb://%s", imdbID) {
			return v.RatingKey, nil
		}
	}
	return "", fmt.Errorf("plex: no match for imdb id %s", imdbID)
}

// ResolveRatingKeyByTitle searches the Plex library for a title and
// returns the first result whose year matches (any result when year is 0).
// When no result has that year, it returns the first search result.
func (p *PlexTautulli) ResolveRatingKeyByTitle(ctx context.Context, title string, year int) (string, error) {
	if p.plexBaseURL == "" {
		return "", ErrNotConfigured
	}

	container, err := p.plexSearch(ctx, common.NormalizeTitle(title))
	if err != nil {
		return "", err
	}
	for _, v := range container.Video {
		if v.Year == year || year == 0 {
			return v.RatingKey, nil
		}
	}
	if len(container.Video) > 0 {
		return container.Video[0].RatingKey, nil
	}
	return "", fmt.Errorf("plex: no match for title %q", title)
}

func (p *PlexTautulli) plexSearch(ctx context.Context, query string) (*plexMediaContainer, error) {
	u := fmt.Sprintf("%s/search?query=%s&X-Plex-Token=%s", p.plexBaseURL, url.QueryEscape(query), p.plexToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("plex: build request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("plex: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("plex: status %d", resp.StatusCode)
	}

	var container plexMediaContainer
	if err := xml.NewDecoder(resp.Body).Decode(&container); err != nil {
		return nil, fmt.Errorf("plex: decode response: %w", err)
	}
	return &container, nil
}

type tautulliSearchResponse struct {
	Response struct {
		Data struct {
			Results []struct {
				RatingKey string `json:"rating_key"`
				Title     string `json:"title"`
				Year      int    `json:"year"`
			} `json:"results"`
		} `json:"data"`
	} `json:"response"`
}

// SearchTautulli searches Tautulli's own library index, which carries
// richer title/IMDb metadata than a raw Plex search for titles Plex's
// own search misses.
func (p *PlexTautulli) SearchTautulli(ctx context.Context, title string, imdbID string, year int) (string, error) {
	if p.tautulliBaseURL == "" {
		return "", ErrNotConfigured
	}

	q := url.Values{
		"apikey": {p.tautulliAPIKey},
		"cmd":    {"search"},
		"query":  {common.NormalizeTitle(title)},
	}

	var resp tautulliSearchResponse
	if err := p.tautulliGet(ctx, q, &resp); err != nil {
		return "", err
	}

	for _, r := range resp.Response.Data.Results {
		if year == 0 || r.Year == year {
			return r.RatingKey, nil
		}
	}
	return "", fmt.Errorf("tautulli: no match for title %q", title)
}

// ScanRecentHistory looks at Tautulli's recently-watched log for a
// title match when a direct library search comes up empty (e.g. the
// item has since been removed from the library but its watch history
// remains).
func (p *PlexTautulli) ScanRecentHistory(ctx context.Context, title string) (string, error) {
	if p.tautulliBaseURL == "" {
		return "", ErrNotConfigured
	}

	q := url.Values{
		"apikey": {p.tautulliAPIKey},
		"cmd":    {"get_history"},
		"search": {common.NormalizeTitle(title)},
	}

	var resp struct {
		Response struct {
			Data struct {
				Data []struct {
					RatingKey string `json:"rating_key"`
					FullTitle string `json:"full_title"`
				} `json:"data"`
			} `json:"data"`
		} `json:"response"`
	}
	if err := p.tautulliGet(ctx, q, &resp); err != nil {
		return "", err
	}

	if len(resp.Response.Data.Data) == 0 {
		return "", fmt.Errorf("tautulli: no history match for title %q", title)
	}
	return resp.Response.Data.Data[0].RatingKey, nil
}

// FetchHistory returns every recorded playback of a rating key.
func (p *PlexTautulli) FetchHistory(ctx context.Context, ratingKey string) ([]queue.WatchHistoryEntry, error) {
	if p.tautulliBaseURL == "" {
		return nil, ErrNotConfigured
	}

	q := url.Values{
		"apikey":     {p.tautulliAPIKey},
		"cmd":        {"get_history"},
		"rating_key": {ratingKey},
	}

	var resp struct {
		Response struct {
			Data struct {
				Data []struct {
					Date int64  `json:"date"`
					User string `json:"user"`
				} `json:"data"`
			} `json:"data"`
		} `json:"response"`
	}
	if err := p.tautulliGet(ctx, q, &resp); err != nil {
		return nil, err
	}

	entries := make([]queue.WatchHistoryEntry, 0, len(resp.Response.Data.Data))
	for _, d := range resp.Response.Data.Data {
		entries = append(entries, queue.WatchHistoryEntry{WatchedAt: d.Date, User: d.User})
	}
	return entries, nil
}

func (p *PlexTautulli) tautulliGet(ctx context.Context, query url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.tautulliBaseURL+"/api/v2?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("tautulli: build request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("tautulli: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tautulli: status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("tautulli: decode response: %w", err)
	}
	return nil
}
