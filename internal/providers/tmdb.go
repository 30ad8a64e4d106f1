package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mediapruner/queue/internal/common"
	"github.com/mediapruner/queue/internal/queue"
)

const tmdbBaseURL = "https://api.themoviedb.org/3"

// TMDBClient implements queue.MetadataProvider against TheMovieDB API.
type TMDBClient struct {
	apiKey     string
	httpClient *http.Client
}

// NewTMDBClient creates a TMDB-backed metadata provider. An empty apiKey
// is valid; every call then fails with ErrNotConfigured.
func NewTMDBClient(apiKey string, timeout time.Duration) *TMDBClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &TMDBClient{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ErrNotConfigured is returned by a provider that has no API key set.
var ErrNotConfigured = fmt.Errorf("provider not configured")

func (c *TMDBClient) get(ctx context.Context, path string, query url.Values, out any) error {
	if c.apiKey == "" {
		return ErrNotConfigured
	}
	query.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tmdbBaseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("tmdb: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("tmdb: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tmdb: status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("tmdb: decode response: %w", err)
	}
	return nil
}

type tmdbSearchResponse struct {
	Results []tmdbResult `json:"results"`
}

type tmdbResult struct {
	ID           int     `json:"id"`
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	Overview     string  `json:"overview"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
	PosterPath   string  `json:"poster_path"`
	BackdropPath string  `json:"backdrop_path"`
	VoteAverage  float64 `json:"vote_average"`
	VoteCount    int     `json:"vote_count"`
	GenreIDs     []int   `json:"genre_ids"`
}

func (r tmdbResult) toMetadataResult() queue.MetadataResult {
	title := r.Title
	releaseDate := r.ReleaseDate
	if title == "" {
		title = r.Name
	}
	if releaseDate == "" {
		releaseDate = r.FirstAirDate
	}
	return queue.MetadataResult{
		TMDBID:       r.ID,
		Title:        title,
		Overview:     r.Overview,
		ReleaseDate:  releaseDate,
		PosterPath:   r.PosterPath,
		BackdropPath: r.BackdropPath,
		VoteAverage:  r.VoteAverage,
		VoteCount:    r.VoteCount,
	}
}

// SearchMovie searches TMDB for a movie by title and optional release year.
func (c *TMDBClient) SearchMovie(ctx context.Context, title string, year int) ([]queue.MetadataResult, error) {
	q := url.Values{"query": {common.NormalizeTitle(title)}}
	if year > 0 {
		q.Set("year", strconv.Itoa(year))
	}

	var resp tmdbSearchResponse
	if err := c.get(ctx, "/search/movie", q, &resp); err != nil {
		return nil, err
	}

	results := make([]queue.MetadataResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, r.toMetadataResult())
	}
	return results, nil
}

// SearchShow searches TMDB for a TV show by title and optional first-air year.
func (c *TMDBClient) SearchShow(ctx context.Context, title string, year int) ([]queue.MetadataResult, error) {
	q := url.Values{"query": {common.NormalizeTitle(title)}}
	if year > 0 {
		q.Set("first_air_date_year", strconv.Itoa(year))
	}

	var resp tmdbSearchResponse
	if err := c.get(ctx, "/search/tv", q, &resp); err != nil {
		return nil, err
	}

	results := make([]queue.MetadataResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, r.toMetadataResult())
	}
	return results, nil
}

type tmdbSeasonResponse struct {
	Episodes []struct {
		ID            int     `json:"id"`
		Name          string  `json:"name"`
		Overview      string  `json:"overview"`
		AirDate       string  `json:"air_date"`
		EpisodeNumber int     `json:"episode_number"`
		StillPath     string  `json:"still_path"`
		VoteAverage   float64 `json:"vote_average"`
		VoteCount     int     `json:"vote_count"`
	} `json:"episodes"`
}

// GetShowSeason fetches every episode of a TMDB show's season.
func (c *TMDBClient) GetShowSeason(ctx context.Context, showTMDBID, seasonNumber int) ([]queue.MetadataResult, error) {
	var resp tmdbSeasonResponse
	path := fmt.Sprintf("/tv/%d/season/%d", showTMDBID, seasonNumber)
	if err := c.get(ctx, path, url.Values{}, &resp); err != nil {
		return nil, err
	}

	results := make([]queue.MetadataResult, 0, len(resp.Episodes))
	for _, e := range resp.Episodes {
		results = append(results, queue.MetadataResult{
			TMDBID:       e.ID,
			Title:        e.Name,
			Overview:     e.Overview,
			ReleaseDate:  e.AirDate,
			PosterPath:   e.StillPath,
			VoteAverage:  e.VoteAverage,
			VoteCount:    e.VoteCount,
			Extra:        map[string]any{"episode_number": e.EpisodeNumber},
		})
	}
	return results, nil
}

type tmdbDetailResponse struct {
	tmdbResult
	IMDBID  string `json:"imdb_id"`
	Runtime int    `json:"runtime"`
	Genres  []struct {
		Name string `json:"name"`
	} `json:"genres"`
}

// GetByID fetches full movie details for a TMDB id.
func (c *TMDBClient) GetByID(ctx context.Context, tmdbID int) (queue.MetadataResult, error) {
	var resp tmdbDetailResponse
	path := fmt.Sprintf("/movie/%d", tmdbID)
	if err := c.get(ctx, path, url.Values{}, &resp); err != nil {
		return queue.MetadataResult{}, err
	}

	genres := make([]string, 0, len(resp.Genres))
	for _, g := range resp.Genres {
		genres = append(genres, g.Name)
	}

	result := resp.tmdbResult.toMetadataResult()
	result.IMDBID = resp.IMDBID
	result.Runtime = resp.Runtime
	result.Genres = genres
	return result, nil
}
