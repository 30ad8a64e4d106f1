package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mediapruner/queue/internal/common"
	"github.com/mediapruner/queue/internal/queue"
)

const omdbBaseURL = "https://www.omdbapi.com/"

// OMDbClient implements queue.RatingsProvider against the OMDb API.
type OMDbClient struct {
	apiKey     string
	httpClient *http.Client
}

// NewOMDbClient creates an OMDb-backed ratings provider.
func NewOMDbClient(apiKey string, timeout time.Duration) *OMDbClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OMDbClient{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *OMDbClient) get(ctx context.Context, query url.Values) (*omdbResponse, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}
	query.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, omdbBaseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("omdb: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("omdb: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("omdb: status %d", resp.StatusCode)
	}

	var out omdbResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("omdb: decode response: %w", err)
	}
	if out.Response == "False" {
		return nil, fmt.Errorf("omdb: %s", out.Error)
	}
	return &out, nil
}

type omdbResponse struct {
	Title      string `json:"Title"`
	Year       string `json:"Year"`
	IMDBID     string `json:"imdbID"`
	IMDBRating string `json:"imdbRating"`
	IMDBVotes  string `json:"imdbVotes"`
	Response   string `json:"Response"`
	Error      string `json:"Error"`
	Search     []struct {
		Title  string `json:"Title"`
		Year   string `json:"Year"`
		IMDBID string `json:"imdbID"`
	} `json:"Search"`
}

// SearchByTitleYear searches OMDb for titles matching a name and year.
func (c *OMDbClient) SearchByTitleYear(ctx context.Context, title string, year int) ([]queue.MetadataResult, error) {
	q := url.Values{"s": {common.NormalizeTitle(title)}, "type": {"movie"}}
	if year > 0 {
		q.Set("y", strconv.Itoa(year))
	}

	resp, err := c.get(ctx, q)
	if err != nil {
		return nil, err
	}

	results := make([]queue.MetadataResult, 0, len(resp.Search))
	for _, s := range resp.Search {
		results = append(results, queue.MetadataResult{
			IMDBID:      s.IMDBID,
			Title:       s.Title,
			ReleaseDate: s.Year,
		})
	}
	return results, nil
}

// GetByIMDBID fetches ratings for a specific IMDb id.
func (c *OMDbClient) GetByIMDBID(ctx context.Context, imdbID string) (queue.RatingsResult, error) {
	resp, err := c.get(ctx, url.Values{"i": {imdbID}})
	if err != nil {
		return queue.RatingsResult{}, err
	}

	rating, _ := strconv.ParseFloat(resp.IMDBRating, 64)
	votes, _ := strconv.Atoi(strings.ReplaceAll(resp.IMDBVotes, ",", ""))

	return queue.RatingsResult{
		IMDBID:      resp.IMDBID,
		VoteAverage: rating,
		VoteCount:   votes,
	}, nil
}
