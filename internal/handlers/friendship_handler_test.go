package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/abdojat/fbcloneapi/internal/models"
	"github.com/abdojat/fbcloneapi/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func friendAction(t *testing.T, s *testServer, actor uint, body map[string]any) int {
	t.Helper()
	return s.do(t, http.MethodPost, "/api/friends/action", body, actor).Code
}

func TestFriendRequestLifecycle(t *testing.T) {
	s := newTestServer(t, 3)
	a, b, c := s.users[0].ID, s.users[1].ID, s.users[2].ID

	rec := s.do(t, http.MethodPost, "/api/friends/action", map[string]any{"action": "add", "targetUserId": b}, a)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result services.FriendActionResult
	decodeData(t, rec, &result)
	assert.Equal(t, services.ActionAdd, result.Action)
	assert.Equal(t, b, result.TargetUserID)

	assert.Equal(t, http.StatusConflict, friendAction(t, s, a, map[string]any{"action": "add", "targetUserId": b}))

	rec = s.do(t, http.MethodGet, "/api/friends/sentFriendRequests", nil, a)
	require.Equal(t, http.StatusOK, rec.Code)
	var sent []models.FriendRequestView
	decodeData(t, rec, &sent)
	require.Len(t, sent, 1)
	assert.Equal(t, b, sent[0].User.ID)

	rec = s.do(t, http.MethodGet, "/api/friends/requests", nil, b)
	require.Equal(t, http.StatusOK, rec.Code)
	var incoming []models.FriendRequestView
	decodeData(t, rec, &incoming)
	require.Len(t, incoming, 1)
	assert.Equal(t, a, incoming[0].User.ID)

	// only the recipient can accept
	assert.Equal(t, http.StatusNotFound, friendAction(t, s, c, map[string]any{"action": "accept", "requestId": incoming[0].ID}))
	assert.Equal(t, http.StatusOK, friendAction(t, s, b, map[string]any{"action": "accept", "requestId": incoming[0].ID}))

	for _, pair := range [][2]uint{{a, b}, {b, a}} {
		rec = s.do(t, http.MethodGet, "/api/friends", nil, pair[0])
		require.Equal(t, http.StatusOK, rec.Code)
		var friends []models.UserSummary
		decodeData(t, rec, &friends)
		assert.Equal(t, []uint{pair[1]}, summaryIDs(friends))
	}

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/api/friends/%d/friends", a), nil, c)
	require.Equal(t, http.StatusOK, rec.Code)
	var ofA []models.UserSummary
	decodeData(t, rec, &ofA)
	assert.Equal(t, []uint{b}, summaryIDs(ofA))

	rec = s.do(t, http.MethodGet, "/api/friends/requests", nil, b)
	decodeData(t, rec, &incoming)
	assert.Empty(t, incoming)

	assert.Equal(t, http.StatusOK, friendAction(t, s, b, map[string]any{"action": "remove", "targetUserId": a}))
	assert.Equal(t, http.StatusConflict, friendAction(t, s, b, map[string]any{"action": "remove", "targetUserId": a}))
}

func TestFriendActionValidation(t *testing.T) {
	s := newTestServer(t, 1)
	me := s.users[0].ID

	assert.Equal(t, http.StatusBadRequest, friendAction(t, s, me, map[string]any{"action": "poke", "targetUserId": 2}))
	assert.Equal(t, http.StatusBadRequest, friendAction(t, s, me, map[string]any{"action": "add", "targetUserId": me}))
	assert.Equal(t, http.StatusNotFound, friendAction(t, s, me, map[string]any{"action": "add", "targetUserId": 99}))

	rec := s.do(t, http.MethodGet, "/api/friends/99/friends", nil, me)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(t, http.MethodGet, "/api/friends/abc/friends", nil, me)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFriendSuggestionsExcludeKnownPeople(t *testing.T) {
	s := newTestServer(t, 4)
	me, friend, pending, stranger := s.users[0].ID, s.users[1].ID, s.users[2].ID, s.users[3].ID

	require.NoError(t, s.db.Create(&[]models.Friendship{
		{UserID: me, FriendID: friend},
		{UserID: friend, FriendID: me},
	}).Error)
	require.Equal(t, http.StatusOK, friendAction(t, s, me, map[string]any{"action": "add", "targetUserId": pending}))

	rec := s.do(t, http.MethodGet, "/api/friends/suggestions", nil, me)
	require.Equal(t, http.StatusOK, rec.Code)
	var suggestions []models.UserSummary
	decodeData(t, rec, &suggestions)
	assert.Equal(t, []uint{stranger}, summaryIDs(suggestions))
}
