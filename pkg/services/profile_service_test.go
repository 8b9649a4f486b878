package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"webauth/pkg/envelope"
	"webauth/pkg/models"
	"webauth/pkg/repository"

	"github.com/stretchr/testify/require"
)

type memProfiles struct {
	mu       sync.Mutex
	profiles map[int]models.Profile
	saves    int
}

func newMemProfiles(accounts ...string) *memProfiles {
	m := &memProfiles{profiles: map[int]models.Profile{}}
	for i, name := range accounts {
		m.profiles[i+1] = models.Profile{UserID: i + 1, Username: name}
	}
	return m
}

func (m *memProfiles) Get(_ context.Context, userID int) (models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return models.Profile{}, repository.ErrNotFound
	}
	return p, nil
}

func (m *memProfiles) Save(_ context.Context, p models.Profile) (models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[p.UserID]; !ok {
		return models.Profile{}, repository.ErrNotFound
	}
	for id, other := range m.profiles {
		if id != p.UserID && p.Email != "" && other.Email == p.Email {
			return models.Profile{}, repository.ErrConflict
		}
	}
	now := time.Now()
	p.UpdatedAt = &now
	m.profiles[p.UserID] = p
	m.saves++
	return p, nil
}

func ptr(s string) *string { return &s }

var (
	bob  = models.Identity{Username: "bob", Role: models.RoleUser}
	root = models.Identity{Username: "root", Role: models.RoleAdmin}
)

func TestProfileUpdate_Owner(t *testing.T) {
	profiles := newMemProfiles("root", "bob")
	events := &recorder{}
	svc := NewProfileService(profiles, events, nil)
	ctx := context.Background()

	p, err := svc.Update(ctx, bob, 2, models.ProfileUpdate{
		FirstName: ptr("  Bob "),
		Email:     ptr("Bob@Mail.test"),
	})
	require.NoError(t, err)
	require.Equal(t, "Bob", p.FirstName)
	require.Equal(t, "bob@mail.test", p.Email)
	require.NotNil(t, p.UpdatedAt)

	// Omitted fields keep their value; an empty one clears it.
	p, err = svc.Update(ctx, bob, 2, models.ProfileUpdate{LastName: ptr("Stone"), Email: ptr("")})
	require.NoError(t, err)
	require.Equal(t, "Bob", p.FirstName)
	require.Equal(t, "Stone", p.LastName)
	require.Empty(t, p.Email)

	require.Equal(t, []string{envelope.ActionProfileUpdated, envelope.ActionProfileUpdated}, events.actions())
	var change profileChange
	require.NoError(t, json.Unmarshal(events.events[0].Data, &change))
	require.Equal(t, profileChange{Fields: []string{"first_name", "email"}, By: "bob"}, change)
}

func TestProfileUpdate_AdminMayEditOthers(t *testing.T) {
	profiles := newMemProfiles("root", "bob")
	svc := NewProfileService(profiles, nil, nil)

	p, err := svc.Update(context.Background(), root, 2, models.ProfileUpdate{PhoneNumber: ptr("+1 (555) 010-0100")})
	require.NoError(t, err)
	require.Equal(t, "+1 (555) 010-0100", p.PhoneNumber)
	require.Equal(t, "bob", p.Username)
}

func TestProfileUpdate_OthersForbidden(t *testing.T) {
	profiles := newMemProfiles("root", "bob")
	svc := NewProfileService(profiles, nil, nil)

	_, err := svc.Update(context.Background(), bob, 1, models.ProfileUpdate{FirstName: ptr("Mallory")})
	require.ErrorIs(t, err, ErrForbidden)
	require.Zero(t, profiles.saves)
	require.Empty(t, profiles.profiles[1].FirstName)
}

func TestProfileUpdate_Validation(t *testing.T) {
	svc := NewProfileService(newMemProfiles("bob"), nil, nil)
	long := string(make([]rune, 101))

	cases := map[string]models.ProfileUpdate{
		"email":        {Email: ptr("not-an-address")},
		"phone_number": {PhoneNumber: ptr("call me")},
		"first_name":   {FirstName: ptr(long)},
	}
	for field, upd := range cases {
		_, err := svc.Update(context.Background(), bob, 1, upd)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr, field)
		require.Equal(t, field, verr.Field)
	}

	_, err := svc.Update(context.Background(), bob, 1, models.ProfileUpdate{PhoneNumber: ptr("12-34")})
	require.Error(t, err)
}

func TestProfileUpdate_Errors(t *testing.T) {
	profiles := newMemProfiles("root", "bob")
	profiles.profiles[1] = models.Profile{UserID: 1, Username: "root", Email: "root@mail.test"}
	svc := NewProfileService(profiles, nil, nil)
	ctx := context.Background()

	_, err := svc.Update(ctx, bob, 2, models.ProfileUpdate{Email: ptr("root@mail.test")})
	require.ErrorIs(t, err, ErrEmailTaken)

	_, err = svc.Update(ctx, root, 42, models.ProfileUpdate{FirstName: ptr("Ghost")})
	require.ErrorIs(t, err, ErrUserNotFound)

	_, err = svc.Get(ctx, 42)
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestProfileUpdate_NoChangeSkipsSave(t *testing.T) {
	profiles := newMemProfiles("bob")
	events := &recorder{}
	svc := NewProfileService(profiles, events, nil)

	p, err := svc.Update(context.Background(), bob, 1, models.ProfileUpdate{FirstName: ptr("")})
	require.NoError(t, err)
	require.Equal(t, "bob", p.Username)
	require.Zero(t, profiles.saves)
	require.Empty(t, events.actions())
}
