package narrative

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"
)

// MinReplyLength is the shortest reply, in characters, accepted as narration.
const MinReplyLength = 6

// Narrator turns player actions into narration through a Generator.
type Narrator struct {
	gen     Generator
	timeout time.Duration
	logger  *slog.Logger
}

// NewNarrator creates a narrator. A non-positive timeout means no deadline
// beyond the caller's context.
func NewNarrator(gen Generator, timeout time.Duration, logger *slog.Logger) *Narrator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Narrator{gen: gen, timeout: timeout, logger: logger}
}

// Narrate returns the narration for scene. Every failure, including a reply
// that is too short, reports false.
func (n *Narrator) Narrate(ctx context.Context, scene Scene) (string, bool) {
	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}
	start := time.Now()
	reply, err := n.gen.Generate(ctx, scene.Summary(), scene.Actor, scene.Action)
	if err != nil {
		n.logger.Warn("narration unavailable", "actor", scene.Actor, "error", err, "duration", time.Since(start))
		return "", false
	}
	reply = strings.TrimSpace(reply)
	if utf8.RuneCountInString(reply) < MinReplyLength {
		n.logger.Debug("narration too short", "actor", scene.Actor, "length", utf8.RuneCountInString(reply))
		return "", false
	}
	n.logger.Debug("narration generated", "actor", scene.Actor, "duration", time.Since(start))
	return reply, true
}
