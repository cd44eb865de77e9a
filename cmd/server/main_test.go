package main

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWaitForShutdown_ReportsBindFailure(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	server := &http.Server{Addr: taken.Addr().String()}
	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	err = waitForShutdown(logger, server, make(chan os.Signal), serveErr)
	require.Error(t, err)
	var opErr *net.OpError
	require.ErrorAs(t, err, &opErr)
}

func TestWaitForShutdown_SignalIsClean(t *testing.T) {
	stop := make(chan os.Signal, 1)
	stop <- syscall.SIGTERM

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	err := waitForShutdown(logger, &http.Server{}, stop, make(chan error))
	require.NoError(t, err)
}
