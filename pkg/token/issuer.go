package token

import (
	"errors"
	"fmt"
	"time"

	"webauth/pkg/models"
)

var (
	ErrRefreshExpired = errors.New("refresh token expired")
	ErrInvalidRefresh = errors.New("invalid refresh token")
)

// Issuer mints access and refresh tokens with independent lifetimes.
type Issuer struct {
	codec      *Codec
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewIssuer(codec *Codec, accessTTL, refreshTTL time.Duration) *Issuer {
	return &Issuer{codec: codec, accessTTL: accessTTL, refreshTTL: refreshTTL}
}

func (i *Issuer) Codec() *Codec {
	return i.codec
}

func (i *Issuer) IssueAccess(id models.Identity) (Token, error) {
	return i.codec.Encode(id.Username, id.Role, models.TokenAccess, i.accessTTL)
}

func (i *Issuer) IssueRefresh(id models.Identity) (Token, error) {
	return i.codec.Encode(id.Username, id.Role, models.TokenRefresh, i.refreshTTL)
}

// IssuePair mints both tokens, as done at login and registration.
func (i *Issuer) IssuePair(id models.Identity) (access, refresh Token, err error) {
	access, err = i.IssueAccess(id)
	if err != nil {
		return Token{}, Token{}, fmt.Errorf("issue access: %w", err)
	}
	refresh, err = i.IssueRefresh(id)
	if err != nil {
		return Token{}, Token{}, fmt.Errorf("issue refresh: %w", err)
	}
	return access, refresh, nil
}

// Refresh mints a new access token for the identity carried by a valid
// refresh token. The refresh token itself is returned to the caller
// unchanged; it stays valid until its own expiry.
func (i *Issuer) Refresh(refreshRaw string) (access Token, refresh Token, err error) {
	refresh, err = i.codec.Decode(refreshRaw, models.TokenRefresh)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return Token{}, Token{}, ErrRefreshExpired
		}
		return Token{}, Token{}, fmt.Errorf("%w: %v", ErrInvalidRefresh, err)
	}

	access, err = i.IssueAccess(refresh.Identity())
	if err != nil {
		return Token{}, Token{}, fmt.Errorf("%w: %v", ErrInvalidRefresh, err)
	}
	return access, refresh, nil
}
