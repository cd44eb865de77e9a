package session

import "context"

// SnapshotRepository provides durable storage for encoded bundles.
type SnapshotRepository interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, payload []byte) error
}
