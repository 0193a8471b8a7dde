// Package lifecycle implements the active/archive storage pattern shared
// by every archivable record type: move terminal records out of the hot
// index, list and restore them, and bulk-delete aged archive entries to
// bound long-term growth.
package lifecycle

import (
	"context"
	"fmt"

	"cosmossdk.io/collections"
)

// Manager pairs an active index with an archive index over the same key
// space. Records travel between the two unchanged unless the caller
// supplies a transform; only index membership changes.
type Manager[K comparable] struct {
	active  *collections.Map[K, string]
	archive *collections.Map[K, string]
}

// NewManager wires a lifecycle manager over a keeper's two indexes.
func NewManager[K comparable](active, archive *collections.Map[K, string]) Manager[K] {
	return Manager[K]{active: active, archive: archive}
}

// Identity is the no-op record transform.
func Identity(raw string) (string, error) { return raw, nil }

// Archive moves one record from the active index to the archive index.
// transform maps the active representation to the archived one (wrap
// with an archived-at stamp, for example); Identity keeps it as-is.
func (m Manager[K]) Archive(ctx context.Context, key K, transform func(string) (string, error)) error {
	raw, err := m.active.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("record not in active index: %w", err)
	}
	archived, err := transform(raw)
	if err != nil {
		return err
	}
	if err := m.archive.Set(ctx, key, archived); err != nil {
		return err
	}
	return m.active.Remove(ctx, key)
}

// Restore moves one record back from the archive index to the active
// index. transform unwraps the archived representation.
func (m Manager[K]) Restore(ctx context.Context, key K, transform func(string) (string, error)) error {
	raw, err := m.archive.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("record not in archive index: %w", err)
	}
	restored, err := transform(raw)
	if err != nil {
		return err
	}
	if err := m.active.Set(ctx, key, restored); err != nil {
		return err
	}
	return m.archive.Remove(ctx, key)
}

// WalkArchived visits archive entries until fn returns stop or an error.
func (m Manager[K]) WalkArchived(ctx context.Context, fn func(key K, raw string) (stop bool, err error)) error {
	return m.archive.Walk(ctx, nil, fn)
}

// CleanupArchiveBefore permanently deletes archive entries whose
// archived-at stamp (extracted by archivedAt) is older than cutoff.
// Returns the number of entries removed.
func (m Manager[K]) CleanupArchiveBefore(
	ctx context.Context,
	cutoffUnix int64,
	archivedAt func(raw string) (int64, error),
) (int, error) {
	var stale []K
	err := m.archive.Walk(ctx, nil, func(key K, raw string) (bool, error) {
		at, err := archivedAt(raw)
		if err != nil {
			return false, err
		}
		if at < cutoffUnix {
			stale = append(stale, key)
		}
		return false, nil
	})
	if err != nil {
		return 0, err
	}
	for _, key := range stale {
		if err := m.archive.Remove(ctx, key); err != nil {
			return 0, err
		}
	}
	return len(stale), nil
}

// Counts reports active and archived index sizes.
func (m Manager[K]) Counts(ctx context.Context) (active, archived int, err error) {
	err = m.active.Walk(ctx, nil, func(_ K, _ string) (bool, error) {
		active++
		return false, nil
	})
	if err != nil {
		return 0, 0, err
	}
	err = m.archive.Walk(ctx, nil, func(_ K, _ string) (bool, error) {
		archived++
		return false, nil
	})
	if err != nil {
		return 0, 0, err
	}
	return active, archived, nil
}
