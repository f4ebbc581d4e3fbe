package websocket

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/manuscript/internal/events"
)

func dial(t *testing.T, ctx context.Context, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn
}

func TestBroadcastReachesEveryClient(t *testing.T) {
	bus := events.NewBus()
	m := NewManager(bus, nil)
	srv := httptest.NewServer(m)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a := dial(t, ctx, srv)
	b := dial(t, ctx, srv)
	require.Eventually(t, func() bool { return bus.ListenerCount() == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, m.ConnectedClients())

	bus.Emit(events.NewCSSChanged("index.css"))

	for _, conn := range []*websocket.Conn{a, b} {
		typ, data, err := conn.Read(ctx)
		require.NoError(t, err)
		assert.Equal(t, websocket.MessageText, typ)
		assert.Equal(t, `{"type":"cssChanged","cssFile":"index.css"}`, string(data))
	}
}

func TestDisconnectRemovesSubscription(t *testing.T) {
	bus := events.NewBus()
	m := NewManager(bus, nil)
	srv := httptest.NewServer(m)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dial(t, ctx, srv)
	require.Eventually(t, func() bool { return bus.ListenerCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))
	require.Eventually(t, func() bool {
		return bus.ListenerCount() == 0 && m.ConnectedClients() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestShutdownClosesClients(t *testing.T) {
	bus := events.NewBus()
	m := NewManager(bus, nil)
	srv := httptest.NewServer(m)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dial(t, ctx, srv)
	require.Eventually(t, func() bool { return m.ConnectedClients() == 1 }, 2*time.Second, 10*time.Millisecond)

	readErr := make(chan error, 1)
	go func() {
		_, _, err := conn.Read(ctx)
		readErr <- err
	}()

	m.Shutdown()

	err := <-readErr
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
	assert.Equal(t, 0, m.ConnectedClients())

	_, _, err = websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	assert.Error(t, err)
}
