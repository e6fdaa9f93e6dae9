package model

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrStaleVersion  = errors.New("grid version is stale")
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNothingToRedo = errors.New("nothing to redo")
)

const DefaultHistoryLimit = 50

type Revision struct {
	Version uuid.UUID `json:"version"`
	Label   string    `json:"label"`
	At      time.Time `json:"at"`
	Size    int       `json:"size"`
}

// Store holds the current grid and its edit history. All writes go through Update, which only succeeds
// when the caller worked on the current version.
type Store struct {
	mutex    sync.Mutex
	history  []Grid
	labels   []string
	times    []time.Time
	position int
	limit    int
}

func NewStore(grid Grid, limit int) *Store {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &Store{
		history: []Grid{grid},
		labels:  []string{"initial"},
		times:   []time.Time{time.Now()},
		limit:   limit,
	}
}

func (store *Store) Current() Grid {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.history[store.position]
}

// Update replaces the current grid with fn's result. It fails with ErrStaleVersion when base is not the
// current version; fn errors are returned untouched and leave the store as it was.
func (store *Store) Update(base uuid.UUID, label string, fn func(Grid) (Grid, error)) (Grid, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	current := store.history[store.position]
	if current.Version() != base {
		return Grid{}, fmt.Errorf("%w: based on %v, current is %v", ErrStaleVersion, base, current.Version())
	}

	next, err := fn(current)
	if err != nil {
		return Grid{}, err
	}

	// A new edit discards the redo branch
	store.history = append(store.history[:store.position+1], next)
	store.labels = append(store.labels[:store.position+1], label)
	store.times = append(store.times[:store.position+1], time.Now())
	if len(store.history) > store.limit {
		overflow := len(store.history) - store.limit
		store.history = store.history[overflow:]
		store.labels = store.labels[overflow:]
		store.times = store.times[overflow:]
	}
	store.position = len(store.history) - 1
	return next, nil
}

func (store *Store) Undo() (Grid, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if store.position == 0 {
		return Grid{}, ErrNothingToUndo
	}
	store.position--
	return store.history[store.position], nil
}

func (store *Store) Redo() (Grid, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if store.position == len(store.history)-1 {
		return Grid{}, ErrNothingToRedo
	}
	store.position++
	return store.history[store.position], nil
}

// Versions lists the kept revisions, oldest first, and the index of the current one
func (store *Store) Versions() ([]Revision, int) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	revisions := make([]Revision, len(store.history))
	for i, grid := range store.history {
		revisions[i] = Revision{
			Version: grid.Version(),
			Label:   store.labels[i],
			At:      store.times[i],
			Size:    grid.Len(),
		}
	}
	return revisions, store.position
}
