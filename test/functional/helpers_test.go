package functional_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/ganot/rpstage/internal/testserver"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"
)

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type client struct {
	t    *testing.T
	conn *websocket.Conn
}

func dial(t *testing.T, ts *testserver.TestServer) *client {
	t.Helper()
	conn, err := websocket.Dial(ts.WSURL(), "", ts.URL())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &client{t: t, conn: conn}
}

// join connects a participant and returns the snapshot it receives.
func join(t *testing.T, ts *testserver.TestServer, name string) (*client, map[string]json.RawMessage) {
	t.Helper()
	c := dial(t, ts)
	c.send("join", name)
	var snapshot map[string]json.RawMessage
	c.await("gameStateSnapshot", &snapshot)
	return c, snapshot
}

func (c *client) send(kind string, payload any) {
	c.t.Helper()
	msg := map[string]any{"type": kind}
	if payload != nil {
		msg["payload"] = payload
	}
	require.NoError(c.t, websocket.JSON.Send(c.conn, msg))
}

func (c *client) next() frame {
	c.t.Helper()
	_ = c.conn.SetDeadline(time.Now().Add(3 * time.Second))
	var f frame
	require.NoError(c.t, websocket.JSON.Receive(c.conn, &f))
	return f
}

// await skips frames until one of the given type arrives and decodes its
// payload into v when v is non-nil.
func (c *client) await(kind string, v any) {
	c.t.Helper()
	var seen []string
	for range 50 {
		f := c.next()
		if f.Type != kind {
			seen = append(seen, f.Type)
			continue
		}
		if v != nil {
			require.NoError(c.t, json.Unmarshal(f.Payload, v))
		}
		return
	}
	c.t.Fatalf("no %s frame; saw %v", kind, seen)
}

// awaitMessage waits for a chat message with the given text.
func (c *client) awaitMessage(text string) map[string]any {
	c.t.Helper()
	for range 50 {
		var msg map[string]any
		c.await("chatMessage", &msg)
		if msg["text"] == text {
			return msg
		}
	}
	c.t.Fatalf("no chat message %q", text)
	return nil
}
