package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ganot/rpstage/internal/domain/session"
	"github.com/ganot/rpstage/internal/hub"
	"github.com/ganot/rpstage/internal/repository/mocks"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, *hub.Hub) {
	t.Helper()
	store := session.NewStore(&mocks.SnapshotRepository{}, "rp")
	h := hub.New(hub.Config{Store: store})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = h.Run(ctx)
		close(done)
	}()

	srv := httptest.NewServer(NewServer(Config{Game: h}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return srv, h
}

func TestHTTPServer_Health(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health hub.Health
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	require.Equal(t, "ok", health.Status)
	require.Equal(t, 1, health.Sessions)
	require.Zero(t, health.Players)
}

func TestHTTPServer_SaveAndRead(t *testing.T) {
	srv, _ := newTestServer(t)

	body := bytes.NewBufferString(`{"arc": {"title": "Fullbring", "players": []}}`)
	resp, err := http.Post(srv.URL+"/save", "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ok okResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ok))
	require.True(t, ok.OK)

	merge, err := http.Post(srv.URL+"/save?mode=merge", "application/json", bytes.NewBufferString(`{"title": "Fullbring II"}`))
	require.NoError(t, err)
	defer merge.Body.Close()
	require.Equal(t, http.StatusOK, merge.StatusCode)

	data, err := http.Get(srv.URL + "/data/rp.json")
	require.NoError(t, err)
	defer data.Body.Close()
	var sessions map[string]session.Session
	require.NoError(t, json.NewDecoder(data.Body).Decode(&sessions))
	require.Equal(t, "Fullbring II", sessions["arc"].Title)

	snap, err := http.Get(srv.URL + "/snapshot")
	require.NoError(t, err)
	defer snap.Body.Close()
	var bundle session.Bundle
	require.NoError(t, json.NewDecoder(snap.Body).Decode(&bundle))
	require.Equal(t, "arc", bundle.Current)
}

func TestHTTPServer_SaveRejectsGarbage(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/save", "application/json", bytes.NewBufferString(`nope`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var out okResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.False(t, out.OK)
	require.NotEmpty(t, out.Error)
}

func TestHTTPServer_MCPMountOptional(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Post(srv.URL+"/mcp", "application/json", bytes.NewBufferString(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestParseFrame(t *testing.T) {
	f, err := ParseFrame([]byte(`{"type": "sendOOC", "payload": {"text": "hi"}}`))
	require.NoError(t, err)
	require.Equal(t, "sendOOC", f.Type)
	require.JSONEq(t, `{"text": "hi"}`, string(f.Payload))

	_, err = ParseFrame([]byte(`{"payload": 1}`))
	require.ErrorIs(t, err, errMissingType)
	_, err = ParseFrame([]byte(`{`))
	require.Error(t, err)
}
