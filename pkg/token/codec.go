package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"webauth/pkg/models"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken         = errors.New("invalid token")
	ErrTokenExpired         = errors.New("token expired")
	ErrMissingSecret        = errors.New("signing secret is required")
	ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")
)

// Token is a decoded or freshly minted signed assertion.
type Token struct {
	Value     string
	Subject   string
	Role      models.Role
	Kind      models.TokenKind
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func (t Token) Identity() models.Identity {
	return models.Identity{Username: t.Subject, Role: t.Role}
}

// Remaining is the lifetime left at now, never negative.
func (t Token) Remaining(now time.Time) time.Duration {
	if d := t.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

type claims struct {
	Username string           `json:"username"`
	Role     models.Role      `json:"role"`
	Type     models.TokenKind `json:"type"`
	jwt.RegisteredClaims
}

// Codec signs and verifies tokens with a process-wide HMAC secret.
// It is immutable after construction and safe for concurrent use.
type Codec struct {
	secret []byte
	method jwt.SigningMethod
	now    func() time.Time
}

type Option func(*Codec)

// WithClock replaces the time source used for issuing and verifying.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

func NewCodec(secret, algorithm string, opts ...Option) (*Codec, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	method, ok := jwt.GetSigningMethod(strings.ToUpper(algorithm)).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, algorithm)
	}

	c := &Codec{
		secret: []byte(secret),
		method: method,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Codec) Now() time.Time {
	return c.now()
}

func (c *Codec) Encode(subject string, role models.Role, kind models.TokenKind, lifetime time.Duration) (Token, error) {
	if subject == "" {
		return Token{}, fmt.Errorf("encode: empty subject")
	}
	if !role.Valid() {
		return Token{}, fmt.Errorf("encode: unknown role %q", role)
	}
	if !kind.Valid() {
		return Token{}, fmt.Errorf("encode: unknown token kind %q", kind)
	}

	// JWT timestamps are whole seconds; truncate so decode round-trips exactly.
	issued := c.now().UTC().Truncate(time.Second)
	expires := issued.Add(lifetime)

	cl := claims{
		Username: subject,
		Role:     role,
		Type:     kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	signed, err := jwt.NewWithClaims(c.method, cl).SignedString(c.secret)
	if err != nil {
		return Token{}, fmt.Errorf("encode: sign: %w", err)
	}

	return Token{
		Value:     signed,
		Subject:   subject,
		Role:      role,
		Kind:      kind,
		IssuedAt:  issued,
		ExpiresAt: expires,
	}, nil
}

// Decode verifies raw and returns its contents. The signature is checked
// first, then the kind against expected, then expiry. Expiry yields
// ErrTokenExpired; every other failure yields ErrInvalidToken.
func (c *Codec) Decode(raw string, expected models.TokenKind) (Token, error) {
	raw = strings.TrimSpace(strings.TrimPrefix(raw, "Bearer "))
	if raw == "" {
		return Token{}, fmt.Errorf("%w: empty", ErrInvalidToken)
	}

	var cl claims
	parsed, err := jwt.ParseWithClaims(raw, &cl,
		func(t *jwt.Token) (interface{}, error) {
			if t.Method.Alg() != c.method.Alg() {
				return nil, ErrInvalidToken
			}
			return c.secret, nil
		},
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)

	expired := false
	if err != nil {
		// jwt/v5 validates claims only after the signature verified, so an
		// expiry error still carries trustworthy claims.
		if !errors.Is(err, jwt.ErrTokenExpired) || parsed == nil {
			return Token{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		expired = true
	}

	if cl.Type != expected {
		return Token{}, fmt.Errorf("%w: wrong token type", ErrInvalidToken)
	}
	if cl.Username == "" || !cl.Role.Valid() {
		return Token{}, fmt.Errorf("%w: malformed payload", ErrInvalidToken)
	}
	if expired {
		return Token{}, ErrTokenExpired
	}

	t := Token{
		Value:     raw,
		Subject:   cl.Username,
		Role:      cl.Role,
		Kind:      cl.Type,
		ExpiresAt: cl.ExpiresAt.Time.UTC(),
	}
	if cl.IssuedAt != nil {
		t.IssuedAt = cl.IssuedAt.Time.UTC()
	}
	return t, nil
}
