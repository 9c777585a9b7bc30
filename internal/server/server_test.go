package server

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Options{
			Addr:     "127.0.0.1:0",
			GRPCAddr: "127.0.0.1:0",
			Handler:  http.NotFoundHandler(),
			Health:   func(context.Context) error { return nil },
		})
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunFailsOnBadGRPCAddr(t *testing.T) {
	err := Run(context.Background(), Options{
		Addr:     "127.0.0.1:0",
		GRPCAddr: "256.0.0.1:bad",
		Handler:  http.NotFoundHandler(),
	})
	require.Error(t, err)
}
