package queue

import (
	"context"
	"encoding/json"
	"fmt"
)

// analyzePayload is the item payload for the analyze handler: exactly one
// of MovieID or EpisodeID is set.
type analyzePayload struct {
	MovieID   *int64 `json:"movie_id,omitempty"`
	EpisodeID *int64 `json:"episode_id,omitempty"`
}

// AnalyzeHandler probes a movie or episode's file and writes the
// extracted technical fields back.
type AnalyzeHandler struct {
	Probe   MediaProbe
	Library LibraryLookup
	Log     *logSink
}

// NewAnalyzeHandler builds the analyze task handler.
func NewAnalyzeHandler(probe MediaProbe, library LibraryLookup, store Store) *AnalyzeHandler {
	return &AnalyzeHandler{Probe: probe, Library: library, Log: newLogSink(store, "queue.handler.analyze")}
}

// Handle implements Handler.
func (h *AnalyzeHandler) Handle(ctx context.Context, raw json.RawMessage, _ map[string]any) ItemOutcome {
	var payload analyzePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Failed(fmt.Sprintf("invalid analyze payload: %v", err), nil)
	}

	var entity *LibraryEntity
	var err error
	switch {
	case payload.MovieID != nil:
		entity, err = h.Library.GetMovie(ctx, *payload.MovieID)
	case payload.EpisodeID != nil:
		entity, err = h.Library.GetEpisode(ctx, *payload.EpisodeID)
	default:
		return Failed("missing movie_id or episode_id", nil)
	}
	if err != nil {
		return Failed(err.Error(), nil)
	}
	if entity == nil || entity.FilePath == "" {
		return Failed("missing file_path", nil)
	}

	result, err := h.Probe.Probe(ctx, entity.FilePath)
	if err != nil {
		entity.MediaInfoFailed = true
		if updateErr := h.Library.UpdateEntity(ctx, entity); updateErr != nil {
			h.Log.warn(ctx, fmt.Sprintf("failed to persist probe failure for entity %d: %v", entity.ID, updateErr), "queue.handler.analyze", "Handle")
		}
		h.Log.warn(ctx, fmt.Sprintf("media probe failed for %q: %v", entity.FilePath, err), "queue.handler.analyze", "Handle")
		return Failed(err.Error(), nil)
	}

	entity.Codec = result.Codec
	entity.Resolution = result.Resolution
	entity.Width = result.Width
	entity.Height = result.Height
	entity.AudioCodec = result.AudioCodec
	entity.Container = result.Container
	entity.Subtitles = result.Subtitles
	entity.MediaInfoScanned = true
	entity.MediaInfoFailed = false
	if err := h.Library.UpdateEntity(ctx, entity); err != nil {
		return Failed(fmt.Sprintf("failed to persist probe result: %v", err), nil)
	}

	return Completed(map[string]any{"found": true, "probe": result})
}
