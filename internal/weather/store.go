package weather

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no reading matches a query.
	ErrNotFound = errors.New("no reading found")

	// ErrDuplicateKey is returned by Insert on a (source, timestamp)
	// collision. Expected under duplicate delivery; callers ignore it.
	ErrDuplicateKey = errors.New("duplicate (source, timestamp)")
)

// Store is the contract the SQLite store (and any future persistent store)
// must satisfy. All timestamps passed in are normalized to KST by callers.
type Store interface {
	// Upsert inserts a reading or merges non-nil fields into the existing
	// record with the same (source, timestamp). A nil incoming field never
	// clears a stored value. Atomic per call.
	Upsert(ctx context.Context, source Source, ts time.Time, fields Fields) error

	// Insert is the insert-only fast path. On a (source, timestamp)
	// collision it returns ErrDuplicateKey and leaves the store untouched.
	Insert(ctx context.Context, source Source, ts time.Time, fields Fields) error

	// QueryRange returns readings from any of the given sources with
	// start <= timestamp <= end, ordered by timestamp ascending.
	QueryRange(ctx context.Context, sources []Source, start, end time.Time) ([]Reading, error)

	// QueryLatestSince returns the most recent reading from any of the
	// given sources at or after since, or ErrNotFound. Timestamp ties go
	// to the source listed earlier in sources.
	QueryLatestSince(ctx context.Context, sources []Source, since time.Time) (Reading, error)
}
