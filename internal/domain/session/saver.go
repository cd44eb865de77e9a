package session

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

// Saver writes snapshots in the background. Submissions coalesce: only the
// most recent payload waiting to be written is kept. Writes never overlap.
type Saver struct {
	repo   SnapshotRepository
	key    string
	logger *slog.Logger

	mu      sync.Mutex
	pending []byte
	writeMu sync.Mutex
	signal  chan struct{}
}

// NewSaver creates a saver for key.
func NewSaver(repo SnapshotRepository, key string, logger *slog.Logger) *Saver {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Saver{
		repo:   repo,
		key:    key,
		logger: logger,
		signal: make(chan struct{}, 1),
	}
}

// Submit queues payload for writing without blocking.
func (s *Saver) Submit(payload []byte) {
	s.mu.Lock()
	s.pending = payload
	s.mu.Unlock()
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

// Run writes queued payloads until ctx is done, then flushes what is left.
func (s *Saver) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			if err := s.Flush(context.WithoutCancel(ctx)); err != nil {
				s.logger.Error("final snapshot write failed", "key", s.key, "error", err)
			}
			return
		case <-s.signal:
			if err := s.Flush(ctx); err != nil {
				s.logger.Warn("snapshot write failed", "key", s.key, "error", err)
			}
		}
	}
}

// Flush writes the pending payload, if any, before returning.
func (s *Saver) Flush(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	payload := s.pending
	s.pending = nil
	s.mu.Unlock()
	if payload == nil {
		return nil
	}
	if err := s.repo.Save(ctx, s.key, payload); err != nil {
		// Retry on the next flush unless a newer payload arrived meanwhile.
		s.mu.Lock()
		if s.pending == nil {
			s.pending = payload
		}
		s.mu.Unlock()
		return err
	}
	return nil
}
