package token

import (
	"testing"
	"time"

	"webauth/pkg/models"

	"github.com/stretchr/testify/require"
)

func newTestIssuer(t *testing.T, opts ...Option) *Issuer {
	t.Helper()
	return NewIssuer(newTestCodec(t, opts...), 30*time.Minute, 7*24*time.Hour)
}

func TestIssuePair_Lifetimes(t *testing.T) {
	is := newTestIssuer(t)
	id := models.Identity{Username: "bob", Role: models.RoleAdmin}

	access, refresh, err := is.IssuePair(id)
	require.NoError(t, err)
	require.Equal(t, models.TokenAccess, access.Kind)
	require.Equal(t, models.TokenRefresh, refresh.Kind)
	require.Equal(t, 30*time.Minute, access.ExpiresAt.Sub(access.IssuedAt))
	require.Equal(t, 7*24*time.Hour, refresh.ExpiresAt.Sub(refresh.IssuedAt))
	require.Equal(t, id, access.Identity())
	require.Equal(t, id, refresh.Identity())
}

func TestRefresh_Valid(t *testing.T) {
	is := newTestIssuer(t)
	refresh, err := is.IssueRefresh(models.Identity{Username: "bob", Role: models.RoleUser})
	require.NoError(t, err)

	now := time.Now()
	access, same, err := is.Refresh(refresh.Value)
	require.NoError(t, err)
	require.Equal(t, refresh.Value, same.Value)

	decoded, err := is.Codec().Decode(access.Value, models.TokenAccess)
	require.NoError(t, err)
	require.Equal(t, "bob", decoded.Subject)
	require.Equal(t, models.RoleUser, decoded.Role)
	require.True(t, decoded.ExpiresAt.After(now))
}

func TestRefresh_Expired(t *testing.T) {
	old := newTestIssuer(t, WithClock(fixedClock(time.Now().Add(-8*24*time.Hour))))
	refresh, err := old.IssueRefresh(models.Identity{Username: "bob", Role: models.RoleUser})
	require.NoError(t, err)

	_, _, err = newTestIssuer(t).Refresh(refresh.Value)
	require.ErrorIs(t, err, ErrRefreshExpired)
}

func TestRefresh_Invalid(t *testing.T) {
	is := newTestIssuer(t)

	_, _, err := is.Refresh("garbage")
	require.ErrorIs(t, err, ErrInvalidRefresh)

	access, err := is.IssueAccess(models.Identity{Username: "bob", Role: models.RoleUser})
	require.NoError(t, err)
	_, _, err = is.Refresh(access.Value)
	require.ErrorIs(t, err, ErrInvalidRefresh)
}
