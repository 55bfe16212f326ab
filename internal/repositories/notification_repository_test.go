package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/abdojat/fbcloneapi/internal/models"
	"github.com/abdojat/fbcloneapi/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationGroupingAndReads(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := NewPostgresNotificationRepository(db)
	now := time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC)

	at := func(d time.Duration) time.Time { return now.Add(-d) }
	seed := []models.Notification{
		{RecipientID: 1, SenderID: 2, Type: models.NotificationMessage, CreatedAt: at(time.Hour)},
		{RecipientID: 1, SenderID: 2, Type: models.NotificationLike, CreatedAt: at(20 * time.Hour)},
		{RecipientID: 1, SenderID: 3, Type: models.NotificationMessage, CreatedAt: at(3 * 24 * time.Hour)},
		{RecipientID: 1, SenderID: 3, Type: models.NotificationComment, CreatedAt: at(30 * 24 * time.Hour)},
		{RecipientID: 2, SenderID: 1, Type: models.NotificationMessage, CreatedAt: at(time.Hour)},
	}
	for i := range seed {
		require.NoError(t, repo.CreateNotification(ctx, &seed[i]))
	}

	today, yesterday, week, older, err := repo.GetGrouped(ctx, 1, now)
	require.NoError(t, err)
	assert.Len(t, today, 1)
	assert.Len(t, yesterday, 1)
	assert.Len(t, week, 1)
	assert.Len(t, older, 1)

	page, total, err := repo.GetByRecipientID(ctx, 1, 1, 3)
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	require.Len(t, page, 3)
	assert.Equal(t, seed[0].ID, page[0].ID)

	// only message notifications from that sender are mirrored
	mirrored, err := repo.MarkMessageNotificationsRead(ctx, 2, 1, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, mirrored)

	unread, err := repo.GetUnreadCount(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 3, unread)

	require.NoError(t, repo.MarkAsRead(ctx, seed[1].ID, now))
	n, err := repo.GetByID(ctx, seed[1].ID)
	require.NoError(t, err)
	assert.True(t, n.IsRead)
	require.NotNil(t, n.ReadAt)

	marked, err := repo.MarkAllAsRead(ctx, 1, now)
	require.NoError(t, err)
	assert.EqualValues(t, 2, marked)

	deleted, err := repo.DeleteReadBefore(ctx, now.Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	unread, err = repo.GetUnreadCount(ctx, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 1, unread)
}
