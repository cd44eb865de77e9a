package hub

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ganot/rpstage/internal/domain/presence"
	"github.com/ganot/rpstage/internal/domain/session"
	"github.com/ganot/rpstage/internal/domain/turn"
	"github.com/ganot/rpstage/internal/narrative"
)

// Defaults for Config.
const (
	DefaultSnapshotChat = 100
	DefaultSnapshotOOC  = 50
	DefaultSaveInterval = 60 * time.Second
	DefaultNarratorName = "GM (AI)"
	inboxSize           = 256
)

// Peer is a connected client. Send must not block; a peer that cannot keep
// up should drop itself.
type Peer interface {
	ID() string
	Send(frame []byte) error
}

// Persister receives encoded snapshots.
type Persister interface {
	Submit(payload []byte)
}

// Narrator produces narration for a player action.
type Narrator interface {
	Narrate(ctx context.Context, scene narrative.Scene) (string, bool)
}

// Actor identifies an in-process caller such as a tool client.
type Actor struct {
	Name string
}

// Config holds hub dependencies.
type Config struct {
	Store        *session.Store
	Engine       *turn.Engine
	Presence     *presence.Tracker
	Persister    Persister
	Narrator     Narrator
	NarratorName string
	SnapshotChat int
	SnapshotOOC  int
	SaveInterval time.Duration
	Logger       *slog.Logger
}

type envelope struct {
	connID string
	actor  string
	cmd    Command
	fn     func()
	done   chan struct{}
}

// Hub serializes every mutation of the game on one goroutine and fans the
// resulting events out to connected peers.
type Hub struct {
	store     *session.Store
	engine    *turn.Engine
	presence  *presence.Tracker
	persister Persister
	narrator  Narrator
	logger    *slog.Logger

	narratorName string
	snapshotChat int
	snapshotOOC  int
	saveInterval time.Duration

	inbox   chan envelope
	stopped chan struct{}
	peers   map[string]Peer

	runCtx    context.Context
	narrating int
	wg        sync.WaitGroup
}

// New creates a hub. Run must be called to start processing.
func New(cfg Config) *Hub {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	h := &Hub{
		store:        cfg.Store,
		engine:       cfg.Engine,
		presence:     cfg.Presence,
		persister:    cfg.Persister,
		narrator:     cfg.Narrator,
		logger:       logger,
		narratorName: cfg.NarratorName,
		snapshotChat: cfg.SnapshotChat,
		snapshotOOC:  cfg.SnapshotOOC,
		saveInterval: cfg.SaveInterval,
		inbox:        make(chan envelope, inboxSize),
		stopped:      make(chan struct{}),
		peers:        make(map[string]Peer),
		runCtx:       context.Background(),
	}
	if h.engine == nil {
		h.engine = turn.NewEngine(h.store, 0)
	}
	if h.presence == nil {
		h.presence = presence.NewTracker()
	}
	if h.narratorName == "" {
		h.narratorName = DefaultNarratorName
	}
	if h.snapshotChat <= 0 {
		h.snapshotChat = DefaultSnapshotChat
	}
	if h.snapshotOOC <= 0 {
		h.snapshotOOC = DefaultSnapshotOOC
	}
	if h.saveInterval <= 0 {
		h.saveInterval = DefaultSaveInterval
	}
	return h
}

// Run processes commands until ctx is done. On exit it submits a final
// snapshot and waits for in-flight narrations to return.
func (h *Hub) Run(ctx context.Context) error {
	h.runCtx = ctx
	ticker := time.NewTicker(h.saveInterval)
	defer ticker.Stop()

	h.logger.Info("hub started", "save_interval", h.saveInterval)
	for {
		select {
		case <-ctx.Done():
			h.persist()
			close(h.stopped)
			h.wg.Wait()
			h.logger.Info("hub stopped")
			return nil
		case env := <-h.inbox:
			h.dispatch(env)
		case <-ticker.C:
			h.persist()
		}
	}
}

// Attach registers a peer. Commands from the peer must be dispatched after
// Attach returns.
func (h *Hub) Attach(p Peer) error {
	return h.enqueue(envelope{fn: func() {
		h.peers[p.ID()] = p
		h.logger.Debug("peer attached", "conn_id", p.ID())
	}})
}

// Detach removes a peer and its presence entry.
func (h *Hub) Detach(connID string) error {
	return h.enqueue(envelope{connID: connID, cmd: Disconnect{}})
}

// Dispatch queues a command from a connection.
func (h *Hub) Dispatch(connID string, cmd Command) error {
	return h.enqueue(envelope{connID: connID, cmd: cmd})
}

// Submit applies a command on behalf of an in-process caller and returns once
// it has been processed.
func (h *Hub) Submit(ctx context.Context, actor Actor, cmd Command) error {
	if cmd == nil {
		return ErrInvalidInput
	}
	return h.call(ctx, func() {
		h.apply(envelope{actor: actor.Name, cmd: cmd})
	})
}

func (h *Hub) enqueue(env envelope) error {
	select {
	case <-h.stopped:
		return ErrStopped
	default:
	}
	select {
	case h.inbox <- env:
		return nil
	case <-h.stopped:
		return ErrStopped
	}
}

// call runs fn on the loop and waits for it. When ctx ends first fn may still
// run later, so fn must not write anything the caller reads after an error.
func (h *Hub) call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	select {
	case h.inbox <- envelope{fn: fn, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	case <-h.stopped:
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.stopped:
		return ErrStopped
	}
}

func (h *Hub) dispatch(env envelope) {
	if env.fn != nil {
		env.fn()
	} else {
		h.apply(env)
	}
	if env.done != nil {
		close(env.done)
	}
}

// persist encodes the bundle and hands it to the persister.
func (h *Hub) persist() {
	if h.persister == nil {
		return
	}
	data, err := h.store.Encode()
	if err != nil {
		h.logger.Error("failed to encode snapshot", "error", err)
		return
	}
	h.persister.Submit(data)
}

func (h *Hub) broadcast(name string, payload any) {
	frame, err := Event{Type: name, Payload: payload}.Encode()
	if err != nil {
		h.logger.Error("failed to encode event", "event", name, "error", err)
		return
	}
	for id, p := range h.peers {
		if err := p.Send(frame); err != nil {
			h.logger.Warn("dropping peer", "conn_id", id, "error", err)
			delete(h.peers, id)
		}
	}
}

func (h *Hub) reply(connID, name string, payload any) {
	p, ok := h.peers[connID]
	if !ok {
		return
	}
	frame, err := Event{Type: name, Payload: payload}.Encode()
	if err != nil {
		h.logger.Error("failed to encode event", "event", name, "error", err)
		return
	}
	if err := p.Send(frame); err != nil {
		h.logger.Warn("dropping peer", "conn_id", connID, "error", err)
		delete(h.peers, connID)
	}
}
