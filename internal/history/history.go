// Package history keeps a bounded log of recent relay queries.
package history

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultMaxEntries = 1000
	DefaultKey        = "partsrelay:history"
)

// Entry is one answered query.
type Entry struct {
	ID        string    `json:"id"`
	Query     string    `json:"query"`
	Source    string    `json:"source"`
	Results   int       `json:"results"`
	CreatedAt time.Time `json:"created_at"`
}

// Recorder stores and lists recent entries, newest first.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
	Recent(ctx context.Context, n int) ([]Entry, error)
	Close() error
}

// New returns a Redis-backed recorder, or Nop when opts.Addr is empty.
func New(opts RedisOptions) (Recorder, error) {
	if opts.Addr == "" {
		return Nop{}, nil
	}
	return NewRedisRecorder(opts)
}

// stamp fills in the ID and timestamp when the caller left them empty.
func stamp(e Entry) Entry {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return e
}

// Nop discards entries.
type Nop struct{}

func (Nop) Record(context.Context, Entry) error { return nil }

func (Nop) Recent(context.Context, int) ([]Entry, error) { return []Entry{}, nil }

func (Nop) Close() error { return nil }
