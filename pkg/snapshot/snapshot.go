// Package snapshot keeps a durable copy of the last successful fetch, used as
// a long-horizon fallback when the upstream is unavailable.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/illmade-knight/go-postcache/pkg/types"
)

// Infinite is the age reported when no snapshot exists.
const Infinite = time.Duration(math.MaxInt64)

// ErrNoSnapshot is returned by Read when the record is missing, unreadable or
// fails to parse.
var ErrNoSnapshot = errors.New("no usable snapshot")

// Snapshot is the single durable record.
type Snapshot struct {
	Items     []types.Item `json:"items"`
	WrittenAt time.Time    `json:"writtenAt"`
}

// Store reads and replaces the durable record. Writes overwrite wholesale.
type Store interface {
	Read(ctx context.Context) (*Snapshot, error)
	Write(ctx context.Context, items []types.Item) error
	Age(ctx context.Context) time.Duration
}

// encode and decode are shared by every backend so the on-disk and in-bucket
// formats stay identical.
func encode(items []types.Item, writtenAt time.Time) ([]byte, error) {
	if items == nil {
		items = []types.Item{}
	}
	data, err := json.MarshalIndent(Snapshot{Items: items, WrittenAt: writtenAt}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return data, nil
}

func decode(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoSnapshot, err)
	}
	if s.WrittenAt.IsZero() {
		return nil, fmt.Errorf("%w: missing writtenAt", ErrNoSnapshot)
	}
	if s.Items == nil {
		s.Items = []types.Item{}
	}
	return &s, nil
}

// AgeAt reports how long before now the snapshot was written, or Infinite for
// a nil snapshot. A write stamped in the future counts as zero.
func (s *Snapshot) AgeAt(now time.Time) time.Duration {
	if s == nil {
		return Infinite
	}
	d := now.Sub(s.WrittenAt)
	if d < 0 {
		return 0
	}
	return d
}

func age(s *Snapshot, now time.Time) time.Duration {
	return s.AgeAt(now)
}
