package observability

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdownRunsHooksInReverseOrder(t *testing.T) {
	sm := NewShutdownManager(NewLogger(ErrorLevel, &bytes.Buffer{}), nil, time.Second)

	var (
		mu    sync.Mutex
		order []string
	)
	record := func(name string) ShutdownFunc {
		return func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		}
	}
	sm.Register("database", record("database"))
	sm.Register("redis", record("redis"))
	sm.Register("ignored", nil)
	sm.Register("cron", record("cron"))

	require.NoError(t, sm.Shutdown(context.Background()))
	assert.Equal(t, []string{"cron", "redis", "database"}, order)
}

func TestShutdownContinuesAfterFailure(t *testing.T) {
	var buf bytes.Buffer
	sm := NewShutdownManager(NewLogger(ErrorLevel, &buf), nil, time.Second)

	var closed bool
	sm.Register("database", func(context.Context) error {
		closed = true
		return nil
	})
	sm.Register("redis", func(context.Context) error {
		return errors.New("connection reset")
	})

	err := sm.Shutdown(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis: connection reset")
	assert.True(t, closed, "later hooks still run")
	assert.Contains(t, buf.String(), "shutdown hook failed")
}

func TestShutdownStopsAtDeadline(t *testing.T) {
	sm := NewShutdownManager(NewLogger(ErrorLevel, &bytes.Buffer{}), nil, time.Second)

	var ran bool
	sm.Register("database", func(context.Context) error {
		ran = true
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sm.Shutdown(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran)
}

func TestWaitForShutdownDrainsServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := &http.Server{Handler: http.NotFoundHandler()}
	go server.Serve(ln)

	sm := NewShutdownManager(NewLogger(ErrorLevel, &bytes.Buffer{}), server, time.Second)
	var hookRan bool
	sm.Register("flush", func(context.Context) error {
		hookRan = true
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sm.WaitForShutdown(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("WaitForShutdown did not return")
	}
	assert.True(t, hookRan)

	_, err = http.Get("http://" + ln.Addr().String())
	assert.Error(t, err, "server must be closed")
}

func TestNewShutdownManagerDefaultTimeout(t *testing.T) {
	sm := NewShutdownManager(NewLogger(ErrorLevel, &bytes.Buffer{}), nil, 0)
	assert.Equal(t, DefaultShutdownTimeout, sm.timeout)
}
