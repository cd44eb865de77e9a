package testserver

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ganot/rpstage/internal/domain/presence"
	"github.com/ganot/rpstage/internal/domain/session"
	"github.com/ganot/rpstage/internal/domain/turn"
	"github.com/ganot/rpstage/internal/hub"
	"github.com/ganot/rpstage/internal/mcp"
	"github.com/ganot/rpstage/internal/sqlite"
	"github.com/ganot/rpstage/internal/transport"
	"github.com/stretchr/testify/require"
)

// SnapshotKey is the storage key the test server uses.
const SnapshotKey = "rp"

// TestServer runs the full stack over httptest with SQLite snapshots.
type TestServer struct {
	Server *httptest.Server
	DB     *sqlite.DB
	Hub    *hub.Hub
	Store  *session.Store
	Repo   *sqlite.SnapshotRepository

	stopOnce sync.Once
	stop     func()
}

type options struct {
	db       *sqlite.DB
	narrator hub.Narrator
	limits   session.Limits
}

// Option customizes New.
type Option func(*options)

// WithDB reuses an existing database, e.g. to restart against saved state.
func WithDB(db *sqlite.DB) Option {
	return func(o *options) { o.db = db }
}

// WithNarrator installs a narrator.
func WithNarrator(n hub.Narrator) Option {
	return func(o *options) { o.narrator = n }
}

// WithLimits overrides the chat and OOC caps.
func WithLimits(l session.Limits) Option {
	return func(o *options) { o.limits = l }
}

func New(t *testing.T, opts ...Option) *TestServer {
	t.Helper()

	o := options{limits: session.DefaultLimits()}
	for _, opt := range opts {
		opt(&o)
	}

	db := o.db
	if db == nil {
		dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
		var err error
		db, err = sqlite.New(dsn)
		require.NoError(t, err)
		require.NoError(t, db.RunMigrations())
		t.Cleanup(func() { _ = db.Close() })
	}

	repo := sqlite.NewSnapshotRepository(db)
	store := session.NewStore(repo, SnapshotKey, session.WithLimits(o.limits))
	store.Load(context.Background())

	saver := session.NewSaver(repo, SnapshotKey, nil)
	game := hub.New(hub.Config{
		Store:        store,
		Engine:       turn.NewEngine(store, turn.DefaultRoundStep),
		Presence:     presence.NewTracker(),
		Persister:    saver,
		Narrator:     o.narrator,
		SaveInterval: time.Hour,
	})

	mcpServer := mcp.NewServer(mcp.Config{Game: game})
	server := httptest.NewServer(transport.NewServer(transport.Config{
		Game: game,
		MCP:  mcp.NewHTTPHandler(mcpServer, 0),
	}))

	saverCtx, stopSaver := context.WithCancel(context.Background())
	hubCtx, stopHub := context.WithCancel(context.Background())
	saverDone := make(chan struct{})
	hubDone := make(chan struct{})
	go func() {
		saver.Run(saverCtx)
		close(saverDone)
	}()
	go func() {
		_ = game.Run(hubCtx)
		close(hubDone)
	}()

	ts := &TestServer{
		Server: server,
		DB:     db,
		Hub:    game,
		Store:  store,
		Repo:   repo,
	}
	ts.stop = func() {
		server.CloseClientConnections()
		server.Close()
		stopHub()
		<-hubDone
		stopSaver()
		<-saverDone
	}
	t.Cleanup(ts.Stop)

	return ts
}

// Stop shuts the stack down and waits for the final snapshot to be written.
func (ts *TestServer) Stop() {
	ts.stopOnce.Do(ts.stop)
}

// URL is the base HTTP address.
func (ts *TestServer) URL() string {
	return ts.Server.URL
}

// WSURL is the websocket endpoint.
func (ts *TestServer) WSURL() string {
	return "ws" + strings.TrimPrefix(ts.Server.URL, "http") + "/ws"
}

// MCPURL is the MCP endpoint.
func (ts *TestServer) MCPURL() string {
	return ts.Server.URL + "/mcp"
}
