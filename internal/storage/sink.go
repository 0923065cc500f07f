// Package storage provides snapshot sinks for user collection exports.
package storage

import (
	"context"
	"io"
)

// SnapshotSink receives serialized user collection snapshots.
type SnapshotSink interface {
	// Put stores one snapshot under the given key.
	Put(ctx context.Context, key string, body io.Reader) error
}
