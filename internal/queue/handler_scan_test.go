package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestScanHandler_Movie(t *testing.T) {
	scanner := &stubScanner{entries: []ScanEntry{{Path: "a"}, {Path: "b"}}}
	h := NewScanHandler(scanner)

	payload, _ := json.Marshal(map[string]string{"path": "/library/movies", "media_type": "movie"})
	outcome := h.Handle(context.Background(), payload, nil)

	if outcome.Kind != OutcomeCompleted {
		t.Fatalf("expected completed, got %s: %s", outcome.Kind, outcome.Message)
	}
	var result map[string]int
	if err := json.Unmarshal(outcome.Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if result["found"] != 2 {
		t.Fatalf("expected found=2, got %d", result["found"])
	}
}

func TestScanHandler_TVShow(t *testing.T) {
	scanner := &stubScanner{entries: []ScanEntry{{Path: "a"}}}
	h := NewScanHandler(scanner)

	payload, _ := json.Marshal(map[string]string{"path": "/library/shows", "media_type": "tv"})
	outcome := h.Handle(context.Background(), payload, nil)

	if outcome.Kind != OutcomeCompleted {
		t.Fatalf("expected completed, got %s", outcome.Kind)
	}
}

func TestScanHandler_InvalidPayload(t *testing.T) {
	h := NewScanHandler(&stubScanner{})
	outcome := h.Handle(context.Background(), json.RawMessage(`not json`), nil)
	if outcome.Kind != OutcomeFailed {
		t.Fatalf("expected failed, got %s", outcome.Kind)
	}
}

func TestScanHandler_UnsupportedMediaType(t *testing.T) {
	h := NewScanHandler(&stubScanner{})
	payload, _ := json.Marshal(map[string]string{"path": "/library", "media_type": "music"})
	outcome := h.Handle(context.Background(), payload, nil)
	if outcome.Kind != OutcomeFailed {
		t.Fatalf("expected failed for unsupported media_type, got %s", outcome.Kind)
	}
}

type erroringScanner struct{}

func (erroringScanner) ScanMovieDirectory(context.Context, string) ([]ScanEntry, error) {
	return nil, errors.New("permission denied")
}

func (erroringScanner) ScanTVShowDirectory(context.Context, string) ([]ScanEntry, error) {
	return nil, errors.New("permission denied")
}

func TestScanHandler_ScannerError(t *testing.T) {
	h := NewScanHandler(erroringScanner{})
	payload, _ := json.Marshal(map[string]string{"path": "/library", "media_type": "movie"})
	outcome := h.Handle(context.Background(), payload, nil)
	if outcome.Kind != OutcomeFailed {
		t.Fatalf("expected failed, got %s", outcome.Kind)
	}
	if outcome.Message != "permission denied" {
		t.Fatalf("expected scanner error message surfaced, got %q", outcome.Message)
	}
}
