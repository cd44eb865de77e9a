package repository

import "context"

// SnapshotRepository stores full session snapshots as opaque payloads keyed
// by session key. Implementations must not expose a partially written
// payload to a concurrent Load of the same key.
type SnapshotRepository interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, payload []byte) error
}
