package repository

import (
	"context"
	"errors"
	"time"

	"webauth/pkg/cache"
	"webauth/pkg/models"

	"go.uber.org/zap"
)

// cachedUser keeps the password hash, which models.User hides from JSON.
type cachedUser struct {
	models.User
	HashedPassword string `json:"hashed_password"`
}

type cachedUserRepository struct {
	UserRepository
	store cache.Store
	ttl   time.Duration
	log   *zap.Logger
}

// NewCachedUserRepository serves FindByUsername from store and drops the
// entry whenever the record changes. Cache failures fall through to inner.
func NewCachedUserRepository(inner UserRepository, store cache.Store, ttl time.Duration, log *zap.Logger) UserRepository {
	if log == nil {
		log = zap.NewNop()
	}
	return &cachedUserRepository{UserRepository: inner, store: store, ttl: ttl, log: log}
}

func userKey(username string) string {
	return "user:" + normalize(username)
}

func (r *cachedUserRepository) FindByUsername(ctx context.Context, username string) (models.User, error) {
	key := userKey(username)

	var hit cachedUser
	err := r.store.Get(ctx, key, &hit)
	if err == nil {
		hit.User.HashedPassword = hit.HashedPassword
		return hit.User, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		r.log.Warn("user cache read failed", zap.String("key", key), zap.Error(err))
	}

	user, err := r.UserRepository.FindByUsername(ctx, username)
	if err != nil {
		return user, err
	}
	if err := r.store.Set(ctx, key, cachedUser{User: user, HashedPassword: user.HashedPassword}, r.ttl); err != nil {
		r.log.Warn("user cache write failed", zap.String("key", key), zap.Error(err))
	}
	return user, nil
}

func (r *cachedUserRepository) UpdateRole(ctx context.Context, username string, role models.Role) (models.User, error) {
	user, err := r.UserRepository.UpdateRole(ctx, username, role)
	if err != nil {
		return user, err
	}
	r.evict(ctx, username)
	return user, nil
}

func (r *cachedUserRepository) Create(ctx context.Context, username, hashedPassword string, role models.Role) (models.User, error) {
	user, err := r.UserRepository.Create(ctx, username, hashedPassword, role)
	if err != nil {
		return user, err
	}
	r.evict(ctx, username)
	return user, nil
}

func (r *cachedUserRepository) evict(ctx context.Context, username string) {
	if err := r.store.Del(ctx, userKey(username)); err != nil {
		r.log.Warn("user cache evict failed", zap.String("username", username), zap.Error(err))
	}
}
