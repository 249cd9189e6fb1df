package types

import (
	"context"
	"errors"
)

// Store defines the interface for backend-agnostic record storage.
// Callers construct a backend, Open it during startup (or let the first
// collection call open it), use the collections, and Close it on shutdown.
type Store interface {
	// Open acquires the shared database handle, running schema setup on
	// first creation or version upgrade. Concurrent callers share one
	// in-flight open. Returns an error wrapping ErrStoreUnavailable when the
	// engine cannot be opened.
	Open(ctx context.Context) error

	// Agents returns the agent profile collection.
	Agents() Collection[AgentProfile]

	// Songs returns the recognized song collection.
	Songs() Collection[RecognizedSong]

	// Close releases backend resources. Idempotent: multiple calls succeed.
	// After Close, collection operations return ErrStoreClosed.
	Close() error
}

// Record is a self-contained value keyed by its own ID.
type Record interface {
	RecordKey() string
}

// Collection provides keyed CRUD for a single record type. Every call runs
// as exactly one transaction scoped to the collection.
type Collection[T Record] interface {
	// Name returns the collection name (AgentsCollection or SongsCollection).
	Name() string

	// GetAll returns every stored record in key order.
	GetAll(ctx context.Context) ([]T, error)

	// Get looks up a record by key. A missing record is reported with
	// ok == false and a nil error.
	Get(ctx context.Context, key string) (rec T, ok bool, err error)

	// Add inserts a record. Returns ErrDuplicateKey if the key exists.
	Add(ctx context.Context, rec T) error

	// Update inserts or replaces the record with the same key.
	Update(ctx context.Context, rec T) error

	// Delete removes the record with the given key. Deleting a missing key
	// succeeds.
	Delete(ctx context.Context, key string) error
}

// Store lifecycle errors.
var (
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrStoreClosed      = errors.New("store is closed")
)

// Collection operation errors.
var (
	ErrDuplicateKey = errors.New("duplicate key")
	ErrInvalidKey   = errors.New("invalid record key")
	ErrInvalidData  = errors.New("invalid record data")
)

// Workflow errors returned by the services layered on the store.
var (
	ErrValidation         = errors.New("validation failed")
	ErrExternalService    = errors.New("external service failure")
	ErrAgentNotFound      = errors.New("agent not found")
	ErrSongNotFound       = errors.New("song not found")
	ErrMissionNotFound    = errors.New("mission not found")
	ErrDuplicateMission   = errors.New("mission id already assigned")
	ErrInvalidTransition  = errors.New("invalid mission transition")
	ErrEmptySubmission    = errors.New("submission text must not be empty")
	ErrInvalidClueMatrix  = errors.New("invalid clue matrix")
	ErrClueNotFound       = errors.New("clue not found")
	ErrNegativePoints     = errors.New("points must not be negative")
	ErrInvalidDescription = errors.New("description must not be empty")
)
