package main

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type slowStopper struct {
	stopped atomic.Bool
}

func (s *slowStopper) Stop() {
	time.Sleep(50 * time.Millisecond)
	s.stopped.Store(true)
}

func TestServe_WaitsForWorkersBeforeReturning(t *testing.T) {
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}
	workers := &slowStopper{}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- serve(ctx, srv, workers, zerolog.Nop()) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
	assert.True(t, workers.stopped.Load(), "serve returned before the workers stopped")
}

func TestServe_ListenError(t *testing.T) {
	srv := &http.Server{Addr: "127.0.0.1:-1", Handler: http.NotFoundHandler()}

	err := serve(context.Background(), srv, &slowStopper{}, zerolog.Nop())
	require.Error(t, err)
}
