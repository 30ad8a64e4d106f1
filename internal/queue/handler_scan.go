package queue

import (
	"context"
	"encoding/json"
	"fmt"
)

// scanPayload is the item payload for the scan handler.
type scanPayload struct {
	Path      string `json:"path"`
	MediaType string `json:"media_type"`
}

// ScanHandler invokes the directory-scanner capability and reports how
// many entries it found.
type ScanHandler struct {
	Scanner DirectoryScanner
}

// NewScanHandler builds the scan task handler.
func NewScanHandler(scanner DirectoryScanner) *ScanHandler {
	return &ScanHandler{Scanner: scanner}
}

// Handle implements Handler.
func (h *ScanHandler) Handle(ctx context.Context, raw json.RawMessage, _ map[string]any) ItemOutcome {
	var payload scanPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Failed(fmt.Sprintf("invalid scan payload: %v", err), nil)
	}

	var entries []ScanEntry
	var err error
	switch payload.MediaType {
	case "movie":
		entries, err = h.Scanner.ScanMovieDirectory(ctx, payload.Path)
	case "tv":
		entries, err = h.Scanner.ScanTVShowDirectory(ctx, payload.Path)
	default:
		return Failed(fmt.Sprintf("unsupported media_type %q", payload.MediaType), nil)
	}
	if err != nil {
		return Failed(err.Error(), nil)
	}

	return Completed(map[string]int{"found": len(entries)})
}
