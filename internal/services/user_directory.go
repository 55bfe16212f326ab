package services

import (
	"context"

	"github.com/abdojat/fbcloneapi/internal/cache"
	"github.com/abdojat/fbcloneapi/internal/models"
	"github.com/abdojat/fbcloneapi/internal/repositories"
	"github.com/abdojat/fbcloneapi/pkg/logger"
	"go.uber.org/zap"
)

// UserDirectory resolves user display snapshots, reading through the redis cache when one is configured.
type UserDirectory struct {
	users repositories.UserRepository
	cache *cache.UserCache
}

func NewUserDirectory(users repositories.UserRepository, c *cache.UserCache) *UserDirectory {
	return &UserDirectory{users: users, cache: c}
}

// Summaries returns snapshots for the ids that exist. Unknown ids are absent from the map.
func (d *UserDirectory) Summaries(ctx context.Context, ids []uint) (map[uint]models.UserSummary, error) {
	ids = uniqueIDs(ids)
	out := make(map[uint]models.UserSummary, len(ids))
	missing := ids

	if d.cache != nil {
		found, miss, err := d.cache.GetMany(ctx, ids)
		if err != nil {
			logger.Warn("user cache read failed", zap.Error(err))
		}
		for id, s := range found {
			out[id] = s
		}
		missing = miss
	}
	if len(missing) == 0 {
		return out, nil
	}

	users, err := d.users.GetUsersByIDs(ctx, missing)
	if err != nil {
		return nil, err
	}
	loaded := make([]models.UserSummary, 0, len(users))
	for i := range users {
		s := users[i].Summary()
		out[s.ID] = s
		loaded = append(loaded, s)
	}

	if d.cache != nil {
		if err := d.cache.SetMany(ctx, loaded); err != nil {
			logger.Warn("user cache write failed", zap.Error(err))
		}
	}
	return out, nil
}

// Summary returns one snapshot and whether the user exists.
func (d *UserDirectory) Summary(ctx context.Context, id uint) (models.UserSummary, bool, error) {
	m, err := d.Summaries(ctx, []uint{id})
	if err != nil {
		return models.UserSummary{}, false, err
	}
	s, ok := m[id]
	return s, ok, nil
}

// Invalidate drops a cached snapshot after a profile change.
func (d *UserDirectory) Invalidate(ctx context.Context, id uint) {
	if d.cache == nil {
		return
	}
	if err := d.cache.Invalidate(ctx, id); err != nil {
		logger.Warn("user cache invalidate failed", zap.Uint("userId", id), zap.Error(err))
	}
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
