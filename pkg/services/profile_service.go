package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"

	"webauth/pkg/broker"
	"webauth/pkg/envelope"
	"webauth/pkg/models"
	"webauth/pkg/repository"

	"go.uber.org/zap"
)

var (
	ErrForbidden  = errors.New("not allowed to edit this profile")
	ErrEmailTaken = errors.New("email already registered")
)

const (
	maxNameLen  = 100
	maxEmailLen = 254
	minPhoneLen = 7
	maxPhoneLen = 20
)

type ProfileService struct {
	profiles repository.ProfileRepository
	events   broker.Publisher
	log      *zap.Logger
}

func NewProfileService(profiles repository.ProfileRepository, events broker.Publisher, log *zap.Logger) *ProfileService {
	if events == nil {
		events = broker.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ProfileService{profiles: profiles, events: events, log: log}
}

func (s *ProfileService) Get(ctx context.Context, userID int) (models.Profile, error) {
	p, err := s.profiles.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return models.Profile{}, ErrUserNotFound
	}
	return p, err
}

type profileChange struct {
	Fields []string `json:"fields"`
	By     string   `json:"by"`
}

// Update applies upd to the profile of userID. Only the owner or an admin
// may edit it.
func (s *ProfileService) Update(ctx context.Context, actor models.Identity, userID int, upd models.ProfileUpdate) (models.Profile, error) {
	current, err := s.Get(ctx, userID)
	if err != nil {
		return models.Profile{}, err
	}
	if current.Username != actor.Username && !actor.IsAdmin() {
		s.log.Warn("profile edit refused",
			zap.String("user", current.Username),
			zap.String("by", actor.Username),
		)
		return models.Profile{}, ErrForbidden
	}

	next, fields, err := applyProfile(current, upd)
	if err != nil {
		return models.Profile{}, err
	}
	if len(fields) == 0 {
		return current, nil
	}

	saved, err := s.profiles.Save(ctx, next)
	switch {
	case errors.Is(err, repository.ErrConflict):
		return models.Profile{}, ErrEmailTaken
	case errors.Is(err, repository.ErrNotFound):
		return models.Profile{}, ErrUserNotFound
	case err != nil:
		return models.Profile{}, err
	}

	emit(ctx, s.events, s.log, envelope.ActionProfileUpdated, saved.Username, "",
		profileChange{Fields: fields, By: actor.Username})
	s.log.Info("profile updated",
		zap.String("user", saved.Username),
		zap.Strings("fields", fields),
		zap.String("by", actor.Username),
	)
	return saved, nil
}

// applyProfile validates upd and merges it into p. It reports the names of
// the fields whose value changed.
func applyProfile(p models.Profile, upd models.ProfileUpdate) (models.Profile, []string, error) {
	var changed []string
	set := func(field string, dst *string, src *string, check func(string) (string, error)) error {
		if src == nil {
			return nil
		}
		v, err := check(strings.TrimSpace(*src))
		if err != nil {
			return err
		}
		if v != *dst {
			*dst = v
			changed = append(changed, field)
		}
		return nil
	}

	if err := set("first_name", &p.FirstName, upd.FirstName, nameCheck("first_name")); err != nil {
		return p, nil, err
	}
	if err := set("last_name", &p.LastName, upd.LastName, nameCheck("last_name")); err != nil {
		return p, nil, err
	}
	if err := set("phone_number", &p.PhoneNumber, upd.PhoneNumber, checkPhone); err != nil {
		return p, nil, err
	}
	if err := set("email", &p.Email, upd.Email, checkEmail); err != nil {
		return p, nil, err
	}
	return p, changed, nil
}

func nameCheck(field string) func(string) (string, error) {
	return func(v string) (string, error) {
		if utf8.RuneCountInString(v) > maxNameLen {
			return "", &ValidationError{Field: field, Message: "too long (max 100)"}
		}
		return v, nil
	}
}

func checkPhone(v string) (string, error) {
	if v == "" {
		return v, nil
	}
	digits := 0
	for _, r := range v {
		switch {
		case unicode.IsDigit(r):
			digits++
		case strings.ContainsRune(" +-()", r):
		default:
			return "", &ValidationError{Field: "phone_number", Message: "may only contain digits, spaces and + - ( )"}
		}
	}
	if digits < minPhoneLen || len(v) > maxPhoneLen {
		return "", &ValidationError{Field: "phone_number", Message: "needs at least 7 digits and at most 20 characters"}
	}
	return v, nil
}

func checkEmail(v string) (string, error) {
	if v == "" {
		return v, nil
	}
	addr, err := mail.ParseAddress(v)
	if err != nil || addr.Address != v || len(v) > maxEmailLen {
		return "", &ValidationError{Field: "email", Message: "is not a valid address"}
	}
	return strings.ToLower(v), nil
}
