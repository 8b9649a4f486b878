package cache

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// memRedis answers GET, SET, DEL and SCAN from a map inside a client hook,
// so commands never reach the network.
type memRedis struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
	err  error
}

func newMemRedis(t *testing.T) (*memRedis, *redis.Client) {
	t.Helper()
	m := &memRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	client.AddHook(m)
	t.Cleanup(func() { client.Close() })
	return m, client
}

func (m *memRedis) DialHook(next redis.DialHook) redis.DialHook {
	return func(context.Context, string, string) (net.Conn, error) {
		return nil, errors.New("memRedis does not dial")
	}
}

func (m *memRedis) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func (m *memRedis) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.err != nil {
			cmd.SetErr(m.err)
			return m.err
		}

		args := cmd.Args()
		switch c := cmd.(type) {
		case *redis.StringCmd:
			val, ok := m.data[str(args[1])]
			if !ok {
				c.SetErr(redis.Nil)
				return redis.Nil
			}
			c.SetVal(val)
		case *redis.StatusCmd:
			key := str(args[1])
			m.data[key] = str(args[2])
			if len(args) == 5 {
				n := args[4].(int64)
				if str(args[3]) == "px" {
					m.ttls[key] = time.Duration(n) * time.Millisecond
				} else {
					m.ttls[key] = time.Duration(n) * time.Second
				}
			}
			c.SetVal("OK")
		case *redis.IntCmd:
			var n int64
			for _, k := range args[1:] {
				if _, ok := m.data[str(k)]; ok {
					delete(m.data, str(k))
					n++
				}
			}
			c.SetVal(n)
		case *redis.ScanCmd:
			prefix := strings.TrimSuffix(str(args[3]), "*")
			var keys []string
			for k := range m.data {
				if strings.HasPrefix(k, prefix) {
					keys = append(keys, k)
				}
			}
			c.SetVal(keys, 0)
		default:
			return next(ctx, cmd)
		}
		return nil
	}
}

func str(v any) string {
	switch v := v.(type) {
	case []byte:
		return string(v)
	case string:
		return v
	}
	return ""
}

type record struct {
	Name string `json:"name"`
	Hits int    `json:"hits"`
}

func TestRedis_SetGetDel(t *testing.T) {
	m, client := newMemRedis(t)
	store := New(client)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "user:alice", record{Name: "alice", Hits: 3}, 5*time.Minute))
	require.Equal(t, 5*time.Minute, m.ttls["user:alice"])

	var got record
	require.NoError(t, store.Get(ctx, "user:alice", &got))
	require.Equal(t, record{Name: "alice", Hits: 3}, got)

	require.NoError(t, store.Del(ctx, "user:alice"))
	require.ErrorIs(t, store.Get(ctx, "user:alice", &got), ErrMiss)
}

func TestRedis_GetMissAndFailure(t *testing.T) {
	m, client := newMemRedis(t)
	store := New(client)
	ctx := context.Background()

	var got record
	require.ErrorIs(t, store.Get(ctx, "user:ghost", &got), ErrMiss)

	m.err = errors.New("connection reset")
	err := store.Get(ctx, "user:ghost", &got)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrMiss)
	require.Error(t, store.Set(ctx, "user:ghost", record{}, time.Minute))
}

func TestSessionStorage(t *testing.T) {
	m, client := newMemRedis(t)
	sessions := New(client).Sessions("flash:")

	val, err := sessions.Get("abc")
	require.NoError(t, err)
	require.Nil(t, val)

	require.NoError(t, sessions.Set("abc", []byte("gob-bytes"), 10*time.Minute))
	require.NoError(t, sessions.Set("empty", nil, time.Minute))
	require.Equal(t, "gob-bytes", m.data["flash:abc"])
	require.NotContains(t, m.data, "flash:empty")

	val, err = sessions.Get("abc")
	require.NoError(t, err)
	require.Equal(t, []byte("gob-bytes"), val)

	require.NoError(t, sessions.Delete("abc"))
	require.NotContains(t, m.data, "flash:abc")

	m.data["flash:one"] = "1"
	m.data["flash:two"] = "2"
	m.data["user:alice"] = "{}"
	require.NoError(t, sessions.Reset())
	require.Equal(t, map[string]string{"user:alice": "{}"}, m.data)
	require.NoError(t, sessions.Close())
}

func TestNop(t *testing.T) {
	var store Store = Nop{}
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "k", 1, time.Minute))
	require.ErrorIs(t, store.Get(ctx, "k", new(int)), ErrMiss)
	require.NoError(t, store.Del(ctx, "k"))
}
