package seen

import (
	"context"
	"errors"
	"time"
)

// ErrStorage wraps every I/O failure of a seen store. Callers treat it as fatal.
var ErrStorage = errors.New("seen store failure")

// Store is a persistent, append-only set of published item URLs.
// Implementations assume a single writer; concurrent pipeline runs sharing
// one store need external mutual exclusion.
type Store interface {
	IsSeen(ctx context.Context, url string) (bool, error)
	// MarkSeen inserts url. Inserting an existing url is a no-op.
	MarkSeen(ctx context.Context, url string) error
}

// Record is a single seen entry
type Record struct {
	URL         string
	FirstSeenAt time.Time
}

// Stats contains seen store statistics
type Stats struct {
	Entries     int
	OldestEntry time.Time
}

// StatsReporter is implemented by stores that can summarize their contents
type StatsReporter interface {
	Stats(ctx context.Context) (Stats, error)
}
