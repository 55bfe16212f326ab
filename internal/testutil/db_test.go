package testutil

import (
	"testing"

	"github.com/abdojat/fbcloneapi/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedUsers(t *testing.T) {
	db := NewDB(t)

	assert.Empty(t, SeedUsers(t, db, 0))

	users := SeedUsers(t, db, 2)
	require.Len(t, users, 2)
	assert.NotZero(t, users[0].ID)
	assert.Equal(t, "user2", users[1].Username)

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}
