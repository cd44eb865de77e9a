package narrative

import (
	"context"
	"errors"
)

var (
	// ErrEmptyReply indicates the service answered without usable text.
	ErrEmptyReply = errors.New("empty narration reply")
)

// Generator produces narration for one player action.
type Generator interface {
	Generate(ctx context.Context, contextSummary, actor, action string) (string, error)
}
