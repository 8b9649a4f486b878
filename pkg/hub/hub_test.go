package hub

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"webauth/pkg/envelope"
	"webauth/pkg/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	in     chan []byte
	mu     sync.Mutex
	out    [][]byte
	closed bool
}

func newFakeConn() *fakeConn { return &fakeConn{in: make(chan []byte, 4)} }

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	raw, ok := <-f.in
	if !ok {
		return 0, nil, errors.New("closed")
	}
	return 1, raw, nil
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out = append(f.out, data)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) sent() []envelope.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]envelope.Envelope, 0, len(f.out))
	for _, raw := range f.out {
		e, _ := envelope.Unmarshal(raw)
		out = append(out, e)
	}
	return out
}

func (f *fakeConn) raw() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.out))
	for _, b := range f.out {
		out = append(out, string(b))
	}
	return out
}

var root = models.Identity{Username: "root", Role: models.RoleAdmin}

func serve(t *testing.T, h *Hub, conn *fakeConn) chan struct{} {
	t.Helper()
	done := make(chan struct{})
	go func() {
		h.Serve(conn, root)
		close(done)
	}()
	require.Eventually(t, func() bool { return h.ClientCount() > 0 }, time.Second, 5*time.Millisecond)
	return done
}

func TestHub_PublishReachesWatchers(t *testing.T) {
	h := New(nil)
	conn := newFakeConn()
	done := serve(t, h, conn)

	env := envelope.New(envelope.ActionUserLogin, "auth", "alice", "user")
	require.NoError(t, h.Publish(context.Background(), env))

	got := conn.sent()
	require.Len(t, got, 1)
	require.Equal(t, env.ID, got[0].ID)

	close(conn.in)
	<-done
	require.Zero(t, h.ClientCount())
	require.True(t, conn.closed)
}

func TestHub_PingPong(t *testing.T) {
	h := New(nil)
	conn := newFakeConn()
	done := serve(t, h, conn)

	conn.in <- []byte(`not json`)
	conn.in <- []byte(`{"action":"ping"}`)
	require.Eventually(t, func() bool { return len(conn.sent()) == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, "pong", conn.sent()[0].Action)

	close(conn.in)
	<-done
}

func TestHub_TextPing(t *testing.T) {
	h := New(nil)
	conn := newFakeConn()
	done := serve(t, h, conn)

	conn.in <- []byte("ping\n")
	conn.in <- []byte("pong")
	require.Eventually(t, func() bool { return len(conn.raw()) == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, []string{"pong"}, conn.raw())

	close(conn.in)
	<-done
}

func TestHub_PublishWithoutWatchers(t *testing.T) {
	h := New(nil)
	require.NoError(t, h.Publish(context.Background(), envelope.New(envelope.ActionUserLogout, "auth", "bob", "user")))
	require.NoError(t, h.Close())
}

func TestUpgrade_RejectsPlainHTTP(t *testing.T) {
	app := fiber.New()
	app.Get("/events", Upgrade, func(c *fiber.Ctx) error { return c.SendString("unreachable") })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/events", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}
