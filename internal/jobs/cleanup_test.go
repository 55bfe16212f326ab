package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/abdojat/fbcloneapi/internal/models"
	"github.com/abdojat/fbcloneapi/internal/repositories"
	"github.com/abdojat/fbcloneapi/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEvicter struct{ calls int }

func (c *countingEvicter) Evict() int {
	c.calls++
	return 1
}

func TestCleanupJobs(t *testing.T) {
	db := testutil.NewDB(t)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tokens := repositories.NewPostgresRevokedTokenRepository(db)
	require.NoError(t, tokens.Revoke(context.Background(), "expired", 1, now.Add(-time.Hour)))
	require.NoError(t, tokens.Revoke(context.Background(), "live", 1, now.Add(time.Hour)))

	readAt := now.Add(-100 * 24 * time.Hour)
	require.NoError(t, db.Create(&[]models.Notification{
		{RecipientID: 1, SenderID: 2, Type: models.NotificationLike, IsRead: true, ReadAt: &readAt, CreatedAt: readAt},
		{RecipientID: 1, SenderID: 2, Type: models.NotificationLike, IsRead: false, CreatedAt: readAt},
		{RecipientID: 1, SenderID: 2, Type: models.NotificationLike, IsRead: true, ReadAt: &now, CreatedAt: now},
	}).Error)

	evicter := &countingEvicter{}
	j := NewCleanup(tokens, repositories.NewPostgresNotificationRepository(db), evicter)
	j.now = func() time.Time { return now }

	j.PurgeRevokedTokens()
	j.PurgeReadNotifications()
	j.EvictIdleVisitors()

	var tokenCount int64
	require.NoError(t, db.Model(&models.RevokedToken{}).Count(&tokenCount).Error)
	assert.EqualValues(t, 1, tokenCount)

	revoked, err := tokens.IsRevoked(context.Background(), "live")
	require.NoError(t, err)
	assert.True(t, revoked)

	var remaining []models.Notification
	require.NoError(t, db.Order("id").Find(&remaining).Error)
	require.Len(t, remaining, 2)
	assert.False(t, remaining[0].IsRead)
	assert.Equal(t, 1, evicter.calls)
}

func TestCleanupStartAndStop(t *testing.T) {
	db := testutil.NewDB(t)
	j := NewCleanup(
		repositories.NewPostgresRevokedTokenRepository(db),
		repositories.NewPostgresNotificationRepository(db),
		nil,
	)

	require.NoError(t, j.Start())
	assert.Len(t, j.cron.Entries(), 2)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	j.Stop(ctx)
}
