package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// refreshMetadataPayload covers the movie, show, and episode item forms.
// Exactly one of MovieID, ShowID, EpisodeID is set.
type refreshMetadataPayload struct {
	MovieID   *int64  `json:"movie_id,omitempty"`
	ShowID    *int64  `json:"show_id,omitempty"`
	EpisodeID *int64  `json:"episode_id,omitempty"`
	TMDBID    *int    `json:"tmdb_id,omitempty"`
	IMDBID    *string `json:"imdb_id,omitempty"`
	Title     *string `json:"title,omitempty"`
	Year      *int    `json:"year,omitempty"`
}

// RefreshMetadataHandler resolves provider metadata for a movie, show, or
// episode and writes the winning fields back to the library entity.
type RefreshMetadataHandler struct {
	TMDB    MetadataProvider
	OMDb    RatingsProvider
	Library LibraryLookup
	Log     *logSink
}

// NewRefreshMetadataHandler builds the refresh_metadata task handler.
func NewRefreshMetadataHandler(tmdb MetadataProvider, omdb RatingsProvider, library LibraryLookup, store Store) *RefreshMetadataHandler {
	return &RefreshMetadataHandler{
		TMDB:    tmdb,
		OMDb:    omdb,
		Library: library,
		Log:     newLogSink(store, "queue.handler.refresh_metadata"),
	}
}

// Handle implements Handler.
func (h *RefreshMetadataHandler) Handle(ctx context.Context, raw json.RawMessage, meta map[string]any) ItemOutcome {
	var payload refreshMetadataPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Failed(fmt.Sprintf("invalid refresh_metadata payload: %v", err), nil)
	}

	forceProvider, _ := meta[MetaProvider].(string)
	includeRatings, _ := meta[MetaIncludeRatings].(bool)

	switch {
	case payload.EpisodeID != nil:
		return h.handleEpisode(ctx, *payload.EpisodeID)
	case payload.ShowID != nil:
		return h.handleShow(ctx, payload, forceProvider, includeRatings)
	case payload.MovieID != nil:
		return h.handleMovie(ctx, payload, forceProvider, includeRatings)
	default:
		return Failed("missing movie_id, show_id, or episode_id", nil)
	}
}

func (h *RefreshMetadataHandler) handleMovie(ctx context.Context, payload refreshMetadataPayload, forceProvider string, includeRatings bool) ItemOutcome {
	entity, err := h.Library.GetMovie(ctx, *payload.MovieID)
	if err != nil {
		return Failed(err.Error(), nil)
	}
	if entity == nil {
		return Failed("movie not found", nil)
	}

	title := entity.Title
	year := entity.Year
	if payload.Title != nil {
		title = *payload.Title
	}
	if payload.Year != nil {
		year = *payload.Year
	}

	result, source, triedQueries, err := h.resolve(ctx, title, year, payload.TMDBID, payload.IMDBID, forceProvider)
	if err != nil {
		return Failed(err.Error(), nil)
	}

	if result == nil {
		h.Log.info(ctx, fmt.Sprintf("no metadata found for %q (queries tried: %s)", title, strings.Join(triedQueries, ", ")), "queue.handler.refresh_metadata", "handleMovie")
		return NoOp(map[string]any{"updated_from": nil, "note": "no metadata found"})
	}

	if includeRatings && result.IMDBID != "" {
		h.mergeRatings(ctx, result)
	}

	applyMetadata(entity, *result)
	entity.Scraped = true
	if err := h.Library.UpdateEntity(ctx, entity); err != nil {
		return Failed(fmt.Sprintf("failed to persist metadata: %v", err), nil)
	}

	return Completed(map[string]string{"updated_from": source})
}

func (h *RefreshMetadataHandler) handleShow(ctx context.Context, payload refreshMetadataPayload, forceProvider string, includeRatings bool) ItemOutcome {
	entity, err := h.Library.GetShow(ctx, *payload.ShowID)
	if err != nil {
		return Failed(err.Error(), nil)
	}
	if entity == nil {
		return Failed("show not found", nil)
	}

	title := entity.Title
	year := entity.Year
	if payload.Title != nil {
		title = *payload.Title
	}
	if payload.Year != nil {
		year = *payload.Year
	}

	result, source, triedQueries, err := h.resolveShow(ctx, title, year, payload.TMDBID, payload.IMDBID, forceProvider)
	if err != nil {
		return Failed(err.Error(), nil)
	}

	if result == nil {
		h.Log.info(ctx, fmt.Sprintf("no metadata found for %q (queries tried: %s)", title, strings.Join(triedQueries, ", ")), "queue.handler.refresh_metadata", "handleShow")
		return NoOp(map[string]any{"updated_from": nil, "note": "no metadata found"})
	}

	if includeRatings && result.IMDBID != "" {
		h.mergeRatings(ctx, result)
	}

	applyMetadata(entity, *result)
	entity.Scraped = true
	if err := h.Library.UpdateEntity(ctx, entity); err != nil {
		return Failed(fmt.Sprintf("failed to persist metadata: %v", err), nil)
	}

	return Completed(map[string]string{"updated_from": source})
}

func (h *RefreshMetadataHandler) handleEpisode(ctx context.Context, episodeID int64) ItemOutcome {
	entity, err := h.Library.GetEpisode(ctx, episodeID)
	if err != nil {
		return Failed(err.Error(), nil)
	}
	if entity == nil {
		return Failed("episode not found", nil)
	}
	if entity.ShowTMDBID == 0 {
		return Failed("parent show has no tmdb_id", nil)
	}

	episodes, err := h.TMDB.GetShowSeason(ctx, entity.ShowTMDBID, entity.SeasonNumber)
	if err != nil {
		return Failed(err.Error(), nil)
	}
	if entity.EpisodeNumber <= 0 || entity.EpisodeNumber > len(episodes) {
		return NoOp(map[string]any{"updated_from": nil, "note": "no metadata found"})
	}

	result := episodes[entity.EpisodeNumber-1]
	applyMetadata(entity, result)
	entity.Scraped = true
	if err := h.Library.UpdateEntity(ctx, entity); err != nil {
		return Failed(fmt.Sprintf("failed to persist metadata: %v", err), nil)
	}

	return Completed(map[string]string{"updated_from": ProviderTMDB})
}

// resolve tries, in order, a payload override, a forced provider, a
// fuzzy-matched TMDB search, and an OMDb fallback, returning on first
// success.
func (h *RefreshMetadataHandler) resolve(ctx context.Context, title string, year int, tmdbID *int, imdbID *string, forceProvider string) (*MetadataResult, string, []string, error) {
	var tried []string

	// 1. Override from payload.
	if tmdbID != nil && h.TMDB != nil {
		result, err := h.TMDB.GetByID(ctx, *tmdbID)
		if err == nil {
			return &result, ProviderTMDB, tried, nil
		}
	}
	if imdbID != nil && h.OMDb != nil {
		rating, err := h.OMDb.GetByIMDBID(ctx, *imdbID)
		if err == nil && rating.IMDBID != "" {
			return &MetadataResult{IMDBID: rating.IMDBID, VoteAverage: rating.VoteAverage, VoteCount: rating.VoteCount}, ProviderOMDb, tried, nil
		}
	}

	if forceProvider == ProviderOMDb {
		if h.OMDb == nil {
			return nil, "", tried, nil
		}
		result, queries := h.searchOMDb(ctx, title, year)
		tried = append(tried, queries...)
		return result, ProviderOMDb, tried, nil
	}

	// 2. TMDB search via title-variant expansion and fuzzy matching.
	if h.TMDB != nil {
		result, queries := h.searchTMDB(ctx, title, year)
		tried = append(tried, queries...)
		if result != nil {
			return result, ProviderTMDB, tried, nil
		}
	}

	// 3. OMDb fallback.
	if h.OMDb != nil {
		result, queries := h.searchOMDb(ctx, title, year)
		tried = append(tried, queries...)
		if result != nil {
			return result, ProviderOMDb, tried, nil
		}
	}

	return nil, "", tried, nil
}

func (h *RefreshMetadataHandler) resolveShow(ctx context.Context, title string, year int, tmdbID *int, imdbID *string, forceProvider string) (*MetadataResult, string, []string, error) {
	var tried []string

	if tmdbID != nil && h.TMDB != nil {
		result, err := h.TMDB.GetByID(ctx, *tmdbID)
		if err == nil {
			return &result, ProviderTMDB, tried, nil
		}
	}

	if forceProvider == ProviderOMDb {
		if h.OMDb == nil {
			return nil, "", tried, nil
		}
		result, queries := h.searchOMDbShow(ctx, title, year)
		tried = append(tried, queries...)
		return result, ProviderOMDb, tried, nil
	}

	if h.TMDB != nil {
		for _, variant := range titleVariants(title) {
			tried = append(tried, variant)
			results, err := h.TMDB.SearchShow(ctx, variant, year)
			if err != nil || len(results) == 0 {
				continue
			}
			if match := pickBestMatch(variant, year, results); match != nil {
				return match, ProviderTMDB, tried, nil
			}
		}
	}

	if h.OMDb != nil {
		result, queries := h.searchOMDbShow(ctx, title, year)
		tried = append(tried, queries...)
		if result != nil {
			return result, ProviderOMDb, tried, nil
		}
	}

	return nil, "", tried, nil
}

// searchTMDB tries each title variant, falling back to a second pass
// without the year when a year was given and yielded nothing.
func (h *RefreshMetadataHandler) searchTMDB(ctx context.Context, title string, year int) (*MetadataResult, []string) {
	var tried []string
	for _, variant := range titleVariants(title) {
		tried = append(tried, variant)
		results, err := h.TMDB.SearchMovie(ctx, variant, year)
		if err != nil || len(results) == 0 {
			continue
		}
		if match := pickBestMatch(variant, year, results); match != nil {
			return match, tried
		}
	}

	if year != 0 {
		for _, variant := range titleVariants(title) {
			tried = append(tried, variant+" (no year)")
			results, err := h.TMDB.SearchMovie(ctx, variant, 0)
			if err != nil || len(results) == 0 {
				continue
			}
			if match := pickBestMatch(variant, 0, results); match != nil {
				return match, tried
			}
		}
	}

	return nil, tried
}

func (h *RefreshMetadataHandler) searchOMDb(ctx context.Context, title string, year int) (*MetadataResult, []string) {
	var tried []string
	for _, variant := range titleVariants(title) {
		tried = append(tried, variant)
		results, err := h.OMDb.SearchByTitleYear(ctx, variant, year)
		if err != nil || len(results) == 0 {
			continue
		}
		return &results[0], tried
	}
	return nil, tried
}

func (h *RefreshMetadataHandler) searchOMDbShow(ctx context.Context, title string, year int) (*MetadataResult, []string) {
	return h.searchOMDb(ctx, title, year)
}

func (h *RefreshMetadataHandler) mergeRatings(ctx context.Context, result *MetadataResult) {
	rating, err := h.OMDb.GetByIMDBID(ctx, result.IMDBID)
	if err != nil {
		return
	}
	// Never overwrite a non-null existing value with null.
	if result.VoteAverage == 0 && rating.VoteAverage != 0 {
		result.VoteAverage = rating.VoteAverage
	}
	if result.VoteCount == 0 && rating.VoteCount != 0 {
		result.VoteCount = rating.VoteCount
	}
}

// pickBestMatch applies the fuzzy-match floor (similarity >= 0.5, +0.15
// bonus for a year match) and falls back to the first result when the
// floor is never cleared.
func pickBestMatch(wantTitle string, wantYear int, results []MetadataResult) *MetadataResult {
	titles := make([]string, len(results))
	years := make([]int, len(results))
	for i, r := range results {
		titles[i] = r.Title
		years[i] = yearFromReleaseDate(r.ReleaseDate)
	}

	if idx := bestMatchIndex(wantTitle, wantYear, titles, years); idx >= 0 {
		return &results[idx]
	}
	return &results[0]
}

func yearFromReleaseDate(date string) int {
	if len(date) < 4 {
		return 0
	}
	var year int
	if _, err := fmt.Sscanf(date[:4], "%d", &year); err != nil {
		return 0
	}
	return year
}

// applyMetadata copies the fields a provider supplied onto a library
// entity.
func applyMetadata(entity *LibraryEntity, result MetadataResult) {
	if result.TMDBID != 0 {
		entity.TMDBID = result.TMDBID
	}
	if result.IMDBID != "" {
		entity.IMDBID = result.IMDBID
	}
	if result.Title != "" {
		entity.Title = result.Title
	}
	entity.Overview = result.Overview
	entity.ReleaseDate = result.ReleaseDate
	entity.Runtime = result.Runtime
	entity.Genres = result.Genres
	entity.PosterPath = result.PosterPath
	entity.BackdropPath = result.BackdropPath
	entity.VoteAverage = result.VoteAverage
	entity.VoteCount = result.VoteCount
}
