package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ganot/rpstage/internal/domain/session"
)

// query runs fn on the loop and returns its result. The result travels over
// a channel so a caller that gives up early never shares memory with fn.
func query[T any](ctx context.Context, h *Hub, fn func() T) (T, error) {
	results := make(chan T, 1)
	if err := h.call(ctx, func() { results <- fn() }); err != nil {
		var zero T
		return zero, err
	}
	return <-results, nil
}

type encoded struct {
	data []byte
	err  error
}

// Health reports liveness and sizes.
func (h *Hub) Health(ctx context.Context) (Health, error) {
	return query(ctx, h, func() Health {
		stats := h.store.Stats()
		return Health{
			Status:    "ok",
			Timestamp: time.Now().UTC(),
			Players:   h.presence.Len(),
			Sessions:  stats.Sessions,
			Roster:    stats.Players,
			Chat:      stats.Chat,
			OOC:       stats.OOC,
		}
	})
}

// SnapshotJSON returns the full encoded bundle.
func (h *Hub) SnapshotJSON(ctx context.Context) ([]byte, error) {
	res, err := query(ctx, h, func() encoded {
		data, err := h.store.Encode()
		return encoded{data: data, err: err}
	})
	if err != nil {
		return nil, err
	}
	return res.data, res.err
}

// SessionsJSON returns the encoded sessions map.
func (h *Hub) SessionsJSON(ctx context.Context) ([]byte, error) {
	res, err := query(ctx, h, func() encoded {
		data, err := h.store.SessionsJSON()
		return encoded{data: data, err: err}
	})
	if err != nil {
		return nil, err
	}
	return res.data, res.err
}

// Save replaces the stored sessions with body, or deep-merges body into the
// current session when merge is set. Connected peers receive dataUpdated.
func (h *Hub) Save(ctx context.Context, body []byte, merge bool) error {
	var fields map[string]any
	if merge {
		if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
			return fmt.Errorf("%w: merge body must be an object", ErrInvalidInput)
		}
	}
	applyErr, err := query(ctx, h, func() error {
		var err error
		if merge {
			err = h.store.MergeSessionFields(fields)
		} else {
			err = h.store.Replace(body)
		}
		if err != nil {
			return err
		}
		h.broadcastData()
		h.broadcastTurn()
		h.broadcast(EventRPTimeUpdated, *h.store.Clock())
		h.persist()
		return nil
	})
	if err != nil {
		return err
	}
	if applyErr != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, applyErr)
	}
	return nil
}

// Overview returns a compact read of the game with the last recent chat
// messages. A non-positive recent omits the chat.
func (h *Hub) Overview(ctx context.Context, recent int) (Overview, error) {
	return query(ctx, h, func() Overview {
		turns := h.store.Turns()
		clock := h.store.Clock()
		out := Overview{
			Title:        h.store.Current().Title,
			Round:        turns.RoundNumber,
			Date:         clock.Date,
			TurnsEnabled: turns.Enabled,
			CurrentTurn:  turns.CurrentTurn,
			Players:      []PlayerSummary{},
			Connected:    []string{},
			Recent:       []session.Message{},
		}
		if recent > 0 {
			out.Recent = h.store.Recent(session.ChatLog, recent)
		}
		for i, c := range h.store.Roster() {
			out.Players = append(out.Players, PlayerSummary{
				Index:    i,
				ID:       c.ID,
				Name:     c.Name,
				Species:  c.Species,
				Location: c.Location,
				HP:       c.HP,
				MaxHP:    c.MaxHP,
			})
			if i == turns.CurrentTurn {
				out.CurrentPlayer = c.Name
			}
		}
		for _, e := range h.presence.List() {
			out.Connected = append(out.Connected, e.DisplayName)
		}
		return out
	})
}
