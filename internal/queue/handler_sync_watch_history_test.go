package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

type stubWatchHistory struct {
	byIMDB   map[string]string
	byTitle  map[string]string
	tautulli map[string]string
	recent   map[string]string
	history  map[string][]WatchHistoryEntry
}

func newStubWatchHistory() *stubWatchHistory {
	return &stubWatchHistory{
		byIMDB:   make(map[string]string),
		byTitle:  make(map[string]string),
		tautulli: make(map[string]string),
		recent:   make(map[string]string),
		history:  make(map[string][]WatchHistoryEntry),
	}
}

func (s *stubWatchHistory) ResolveRatingKeyByIMDB(_ context.Context, imdbID string) (string, error) {
	if key, ok := s.byIMDB[imdbID]; ok {
		return key, nil
	}
	return "", errors.New("not found")
}

func (s *stubWatchHistory) ResolveRatingKeyByTitle(_ context.Context, title string, year int) (string, error) {
	if key, ok := s.byTitle[title]; ok {
		return key, nil
	}
	return "", errors.New("not found")
}

func (s *stubWatchHistory) SearchTautulli(_ context.Context, title, imdbID string, year int) (string, error) {
	if key, ok := s.tautulli[title]; ok {
		return key, nil
	}
	return "", errors.New("not found")
}

func (s *stubWatchHistory) ScanRecentHistory(_ context.Context, title string) (string, error) {
	if key, ok := s.recent[title]; ok {
		return key, nil
	}
	return "", errors.New("not found")
}

func (s *stubWatchHistory) FetchHistory(_ context.Context, ratingKey string) ([]WatchHistoryEntry, error) {
	return s.history[ratingKey], nil
}

func TestSyncWatchHistoryHandler_AlreadyHasRatingKey(t *testing.T) {
	library := newFakeLibrary()
	library.movies[1] = &LibraryEntity{ID: 1, Kind: "movie", Title: "The Matrix", RatingKey: "1000"}

	provider := newStubWatchHistory()
	provider.history["1000"] = []WatchHistoryEntry{
		{WatchedAt: 100, User: "alice"},
		{WatchedAt: 200, User: "bob"},
	}

	h := NewSyncWatchHistoryHandler(provider, library)
	payload, _ := json.Marshal(syncWatchHistoryPayload{MovieID: 1})
	outcome := h.Handle(context.Background(), payload, nil)

	if outcome.Kind != OutcomeCompleted {
		t.Fatalf("expected completed, got %s: %s", outcome.Kind, outcome.Message)
	}
	if !library.movies[1].Watched || library.movies[1].WatchCount != 2 {
		t.Fatalf("expected watched=true count=2, got %+v", library.movies[1])
	}
	if library.movies[1].LastWatchedUser != "bob" {
		t.Fatalf("expected the most recent (last) history entry's user recorded, got %q", library.movies[1].LastWatchedUser)
	}
}

func TestSyncWatchHistoryHandler_ResolvesByIMDBWhenRatingKeyMissing(t *testing.T) {
	library := newFakeLibrary()
	library.movies[1] = &LibraryEntity{ID: 1, Kind: "movie", Title: "Alien", IMDBID: "tt0078748"}

	provider := newStubWatchHistory()
	provider.byIMDB["tt0078748"] = "2000"
	provider.history["2000"] = []WatchHistoryEntry{{WatchedAt: 50, User: "carol"}}

	h := NewSyncWatchHistoryHandler(provider, library)
	payload, _ := json.Marshal(syncWatchHistoryPayload{MovieID: 1})
	outcome := h.Handle(context.Background(), payload, nil)

	if outcome.Kind != OutcomeCompleted {
		t.Fatalf("expected completed, got %s", outcome.Kind)
	}
	if library.movies[1].RatingKey != "2000" {
		t.Fatalf("expected resolved rating_key persisted, got %q", library.movies[1].RatingKey)
	}
}

func TestSyncWatchHistoryHandler_FallsThroughResolutionChain(t *testing.T) {
	library := newFakeLibrary()
	library.movies[1] = &LibraryEntity{ID: 1, Kind: "movie", Title: "Obscure Movie"}

	provider := newStubWatchHistory()
	provider.recent["Obscure Movie"] = "3000"
	provider.history["3000"] = []WatchHistoryEntry{{WatchedAt: 10, User: "dave"}}

	h := NewSyncWatchHistoryHandler(provider, library)
	payload, _ := json.Marshal(syncWatchHistoryPayload{MovieID: 1})
	outcome := h.Handle(context.Background(), payload, nil)

	if outcome.Kind != OutcomeCompleted {
		t.Fatalf("expected completed, got %s", outcome.Kind)
	}
	if library.movies[1].RatingKey != "3000" {
		t.Fatalf("expected rating_key resolved via the final fallback step, got %q", library.movies[1].RatingKey)
	}
}

func TestSyncWatchHistoryHandler_UnresolvableIsCompletedNotWatched(t *testing.T) {
	library := newFakeLibrary()
	library.movies[1] = &LibraryEntity{ID: 1, Kind: "movie", Title: "Totally Unknown"}

	h := NewSyncWatchHistoryHandler(newStubWatchHistory(), library)
	payload, _ := json.Marshal(syncWatchHistoryPayload{MovieID: 1})
	outcome := h.Handle(context.Background(), payload, nil)

	if outcome.Kind != OutcomeCompleted {
		t.Fatalf("expected completed when no rating key can be resolved, got %s", outcome.Kind)
	}
	var result map[string]any
	if err := json.Unmarshal(outcome.Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if result["watched"] != false {
		t.Fatalf("expected watched=false in result, got %v", result)
	}
}

func TestSyncWatchHistoryHandler_NoHistoryMeansUnwatched(t *testing.T) {
	library := newFakeLibrary()
	library.movies[1] = &LibraryEntity{ID: 1, Kind: "movie", Title: "The Matrix", RatingKey: "1000", Watched: true, WatchCount: 3}

	provider := newStubWatchHistory()

	h := NewSyncWatchHistoryHandler(provider, library)
	payload, _ := json.Marshal(syncWatchHistoryPayload{MovieID: 1})
	outcome := h.Handle(context.Background(), payload, nil)

	if outcome.Kind != OutcomeCompleted {
		t.Fatalf("expected completed, got %s", outcome.Kind)
	}
	if library.movies[1].Watched || library.movies[1].WatchCount != 0 {
		t.Fatalf("expected empty history to reset watched state, got %+v", library.movies[1])
	}
}

func TestSyncWatchHistoryHandler_UnknownMovie(t *testing.T) {
	h := NewSyncWatchHistoryHandler(newStubWatchHistory(), newFakeLibrary())
	payload, _ := json.Marshal(syncWatchHistoryPayload{MovieID: 999})
	outcome := h.Handle(context.Background(), payload, nil)
	if outcome.Kind != OutcomeFailed {
		t.Fatalf("expected failed for unknown movie, got %s", outcome.Kind)
	}
}
