package queue

import (
	"context"
	"encoding/json"
	"fmt"
)

// syncWatchHistoryPayload is the item payload for the watch-history
// handler.
type syncWatchHistoryPayload struct {
	MovieID int64 `json:"movie_id"`
}

// SyncWatchHistoryHandler resolves a movie's Plex rating key and updates
// its watch state from playback history.
type SyncWatchHistoryHandler struct {
	Provider WatchHistoryProvider
	Library  LibraryLookup
}

// NewSyncWatchHistoryHandler builds the sync_watch_history task handler.
func NewSyncWatchHistoryHandler(provider WatchHistoryProvider, library LibraryLookup) *SyncWatchHistoryHandler {
	return &SyncWatchHistoryHandler{Provider: provider, Library: library}
}

// Handle implements Handler.
func (h *SyncWatchHistoryHandler) Handle(ctx context.Context, raw json.RawMessage, _ map[string]any) ItemOutcome {
	var payload syncWatchHistoryPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Failed(fmt.Sprintf("invalid sync_watch_history payload: %v", err), nil)
	}

	entity, err := h.Library.GetMovie(ctx, payload.MovieID)
	if err != nil {
		return Failed(err.Error(), nil)
	}
	if entity == nil {
		return Failed("movie not found", nil)
	}

	ratingKey := entity.RatingKey
	resolvedNow := false

	if ratingKey == "" && entity.IMDBID != "" {
		if key, err := h.Provider.ResolveRatingKeyByIMDB(ctx, entity.IMDBID); err == nil && key != "" {
			ratingKey = key
			resolvedNow = true
		}
	}
	if ratingKey == "" {
		if key, err := h.Provider.ResolveRatingKeyByTitle(ctx, entity.Title, entity.Year); err == nil && key != "" {
			ratingKey = key
			resolvedNow = true
		}
	}
	if ratingKey == "" {
		if key, err := h.Provider.SearchTautulli(ctx, entity.Title, entity.IMDBID, entity.Year); err == nil && key != "" {
			ratingKey = key
			resolvedNow = true
		}
	}
	if ratingKey == "" {
		if key, err := h.Provider.ScanRecentHistory(ctx, entity.Title); err == nil && key != "" {
			ratingKey = key
			resolvedNow = true
		}
	}

	if ratingKey == "" {
		return Completed(map[string]any{"watched": false, "rating_key": nil})
	}

	if resolvedNow {
		entity.RatingKey = ratingKey
	}

	history, err := h.Provider.FetchHistory(ctx, ratingKey)
	if err != nil {
		return Failed(err.Error(), nil)
	}

	if len(history) > 0 {
		entity.Watched = true
		entity.WatchCount = len(history)
		// The most recent entry is the one with the latest WatchedAt,
		// whatever order the provider returned them in.
		latest := history[0]
		for _, e := range history[1:] {
			if e.WatchedAt > latest.WatchedAt {
				latest = e
			}
		}
		entity.LastWatchedDate = latest.WatchedAt
		entity.LastWatchedUser = latest.User
	} else {
		entity.Watched = false
		entity.WatchCount = 0
		entity.LastWatchedDate = 0
		entity.LastWatchedUser = ""
	}

	if err := h.Library.UpdateEntity(ctx, entity); err != nil {
		return Failed(fmt.Sprintf("failed to persist watch history: %v", err), nil)
	}

	return Completed(map[string]any{"watched": entity.Watched, "watch_count": entity.WatchCount, "rating_key": entity.RatingKey})
}
