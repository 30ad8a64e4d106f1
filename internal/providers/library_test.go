package providers

import (
	"context"
	"testing"

	"github.com/mediapruner/queue/internal/queue"
)

func TestInMemoryLibrary_SeedAndGet(t *testing.T) {
	lib := NewInMemoryLibrary()
	lib.Seed(&queue.LibraryEntity{ID: 1, Kind: "movie", Title: "Arrival"})

	got, err := lib.GetMovie(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetMovie: %v", err)
	}
	if got.Title != "Arrival" {
		t.Errorf("Title = %q, want Arrival", got.Title)
	}

	if _, err := lib.GetMovie(context.Background(), 99); err == nil {
		t.Error("expected error for unseeded id")
	}
}

func TestInMemoryLibrary_UpdateEntity(t *testing.T) {
	lib := NewInMemoryLibrary()
	lib.Seed(&queue.LibraryEntity{ID: 1, Kind: "episode", Title: "Pilot"})

	entity, err := lib.GetEpisode(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetEpisode: %v", err)
	}
	entity.Watched = true
	if err := lib.UpdateEntity(context.Background(), entity); err != nil {
		t.Fatalf("UpdateEntity: %v", err)
	}

	updated, err := lib.GetEpisode(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetEpisode after update: %v", err)
	}
	if !updated.Watched {
		t.Error("expected Watched to persist across UpdateEntity")
	}
}

func TestInMemoryLibrary_UpdateEntityUnknownKind(t *testing.T) {
	lib := NewInMemoryLibrary()
	err := lib.UpdateEntity(context.Background(), &queue.LibraryEntity{ID: 1, Kind: "soundtrack"})
	if err == nil {
		t.Error("expected error for unknown entity kind")
	}
}
