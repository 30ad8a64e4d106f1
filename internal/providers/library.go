package providers

import (
	"context"
	"fmt"
	"sync"

	"github.com/mediapruner/queue/internal/queue"
)

// InMemoryLibrary is a fake queue.LibraryLookup backed by a map. The
// real movies/shows/episodes schema lives in the outer media-library
// server, outside this module's scope; this implementation exists for
// local smoke-running the worker against sample data and for tests.
type InMemoryLibrary struct {
	mu       sync.Mutex
	movies   map[int64]*queue.LibraryEntity
	shows    map[int64]*queue.LibraryEntity
	episodes map[int64]*queue.LibraryEntity
}

// NewInMemoryLibrary creates an empty in-memory library.
func NewInMemoryLibrary() *InMemoryLibrary {
	return &InMemoryLibrary{
		movies:   make(map[int64]*queue.LibraryEntity),
		shows:    make(map[int64]*queue.LibraryEntity),
		episodes: make(map[int64]*queue.LibraryEntity),
	}
}

// Seed registers an entity for later lookup, keyed by its Kind and ID.
func (l *InMemoryLibrary) Seed(entity *queue.LibraryEntity) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch entity.Kind {
	case "movie":
		l.movies[entity.ID] = entity
	case "show":
		l.shows[entity.ID] = entity
	case "episode":
		l.episodes[entity.ID] = entity
	}
}

func (l *InMemoryLibrary) get(table map[int64]*queue.LibraryEntity, id int64, kind string) (*queue.LibraryEntity, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entity, ok := table[id]
	if !ok {
		return nil, fmt.Errorf("%s %d not found", kind, id)
	}
	copied := *entity
	return &copied, nil
}

// GetMovie returns a copy of the seeded movie entity.
func (l *InMemoryLibrary) GetMovie(ctx context.Context, id int64) (*queue.LibraryEntity, error) {
	return l.get(l.movies, id, "movie")
}

// GetShow returns a copy of the seeded show entity.
func (l *InMemoryLibrary) GetShow(ctx context.Context, id int64) (*queue.LibraryEntity, error) {
	return l.get(l.shows, id, "show")
}

// GetEpisode returns a copy of the seeded episode entity.
func (l *InMemoryLibrary) GetEpisode(ctx context.Context, id int64) (*queue.LibraryEntity, error) {
	return l.get(l.episodes, id, "episode")
}

// UpdateEntity writes back whichever table the entity's Kind maps to.
func (l *InMemoryLibrary) UpdateEntity(ctx context.Context, entity *queue.LibraryEntity) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	copied := *entity
	switch entity.Kind {
	case "movie":
		l.movies[entity.ID] = &copied
	case "show":
		l.shows[entity.ID] = &copied
	case "episode":
		l.episodes[entity.ID] = &copied
	default:
		return fmt.Errorf("unknown entity kind %q", entity.Kind)
	}
	return nil
}
