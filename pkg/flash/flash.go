// Package flash carries one-shot user-facing messages across a redirect.
package flash

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
)

const (
	ClassInfo    = "alert alert-light rounded"
	ClassSuccess = "alert alert-success rounded"
	ClassWarning = "alert alert-warning rounded"

	keyClass = "flash_class"
	keyText  = "flash_text"
)

type Message struct {
	Class string `json:"class"`
	Text  string `json:"text"`
}

type Store struct {
	sessions *session.Store
}

type Option func(*session.Config)

// WithStorage keeps flash sessions in storage instead of process memory,
// so every instance behind a load balancer sees the same messages.
func WithStorage(storage fiber.Storage) Option {
	return func(cfg *session.Config) {
		cfg.Storage = storage
	}
}

func NewStore(secure bool, opts ...Option) *Store {
	cfg := session.Config{
		Expiration:     10 * time.Minute,
		KeyLookup:      "cookie:flash_session",
		CookiePath:     "/",
		CookieSecure:   secure,
		CookieHTTPOnly: true,
		CookieSameSite: fiber.CookieSameSiteLaxMode,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Store{sessions: session.New(cfg)}
}

// Set stores a message to be shown on the next page render.
func (s *Store) Set(c *fiber.Ctx, class, text string) error {
	sess, err := s.sessions.Get(c)
	if err != nil {
		return err
	}
	sess.Set(keyClass, class)
	sess.Set(keyText, text)
	return sess.Save()
}

// Pop returns and removes the pending message, or nil when there is none.
func (s *Store) Pop(c *fiber.Ctx) *Message {
	sess, err := s.sessions.Get(c)
	if err != nil {
		return nil
	}
	text, _ := sess.Get(keyText).(string)
	if text == "" {
		return nil
	}
	class, _ := sess.Get(keyClass).(string)
	sess.Delete(keyClass)
	sess.Delete(keyText)
	_ = sess.Save()
	return &Message{Class: class, Text: text}
}
