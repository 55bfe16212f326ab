package repositories

import (
	"context"
	"errors"
	"testing"

	"github.com/abdojat/fbcloneapi/internal/models"
	"github.com/abdojat/fbcloneapi/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestPairLifecycle(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := NewPostgresFriendshipRepository(db)

	incoming, err := repo.CreateRequestPair(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, uint(2), incoming.UserID)
	assert.Equal(t, models.RequestDirectionIncoming, incoming.Direction)

	out, err := repo.FindPending(ctx, 1, 2, models.RequestDirectionOutgoing)
	require.NoError(t, err)
	assert.Equal(t, uint(2), out.PeerID)

	peers, err := repo.PendingOutgoingPeerIDs(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint{2}, peers)

	// the reverse direction has nothing pending
	closed, err := repo.CloseRequestPair(ctx, 2, 1, models.RequestStatusCanceled)
	require.NoError(t, err)
	assert.Zero(t, closed)

	closed, err = repo.CloseRequestPair(ctx, 1, 2, models.RequestStatusRejected)
	require.NoError(t, err)
	assert.EqualValues(t, 2, closed)

	pending, err := repo.PendingRequests(ctx, 2, models.RequestDirectionIncoming)
	require.NoError(t, err)
	assert.Empty(t, pending)

	var archived []models.FriendRequest
	require.NoError(t, db.Unscoped().Find(&archived).Error)
	require.Len(t, archived, 2)
	for _, r := range archived {
		assert.Equal(t, models.RequestStatusRejected, r.Status)
		assert.True(t, r.DeletedAt.Valid)
	}
}

func TestFriendshipRows(t *testing.T) {
	ctx := context.Background()
	repo := NewPostgresFriendshipRepository(testutil.NewDB(t))

	require.NoError(t, repo.AddFriendship(ctx, 1, 2))
	require.NoError(t, repo.AddFriendship(ctx, 1, 3))

	for _, pair := range [][2]uint{{1, 2}, {2, 1}, {3, 1}} {
		ok, err := repo.AreFriends(ctx, pair[0], pair[1])
		require.NoError(t, err)
		assert.True(t, ok, pair)
	}

	ids, err := repo.FriendIDs(ctx, 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{2, 3}, ids)

	removed, err := repo.RemoveFriendship(ctx, 2, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 2, removed)

	ok, err := repo.AreFriends(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFriendshipTransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	repo := NewPostgresFriendshipRepository(testutil.NewDB(t))
	boom := errors.New("boom")

	err := repo.Transaction(ctx, func(tx FriendshipRepository) error {
		if err := tx.AddFriendship(ctx, 1, 2); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	ok, err := repo.AreFriends(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, ok)
}
