package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/abdojat/fbcloneapi/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sendMessage(t *testing.T, s *testServer, from, to uint, text string) models.Message {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/chat", map[string]any{"recipient": to, "text": text}, from)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var msg models.Message
	decodeData(t, rec, &msg)
	return msg
}

func TestSendAndReadHistory(t *testing.T) {
	s := newTestServer(t, 2)
	a, b := s.users[0].ID, s.users[1].ID

	first := sendMessage(t, s, a, b, "hi")
	assert.Equal(t, a, first.SenderID)
	assert.Equal(t, models.MessageStatusSent, first.Status)
	sendMessage(t, s, b, a, "hello back")

	rec := s.do(t, http.MethodGet, fmt.Sprintf("/api/chat/%d", b), nil, a)
	require.Equal(t, http.StatusOK, rec.Code)
	var history []models.Message
	decodeData(t, rec, &history)
	require.Len(t, history, 2)
	assert.Equal(t, "hi", history[0].Text)
	assert.Equal(t, "hello back", history[1].Text)

	rec = s.do(t, http.MethodGet, "/api/chat/recent", nil, b)
	require.Equal(t, http.StatusOK, rec.Code)
	var recent []models.Conversation
	decodeData(t, rec, &recent)
	require.Len(t, recent, 1)
	assert.Equal(t, a, recent[0].PartnerID)
	assert.Equal(t, "hello back", recent[0].LastMessage)
	assert.EqualValues(t, 1, recent[0].UnreadCount)
}

func TestSendMessageValidation(t *testing.T) {
	s := newTestServer(t, 1)
	me := s.users[0].ID

	rec := s.do(t, http.MethodPost, "/api/chat", map[string]any{"recipient": 2, "text": "  "}, me)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, http.MethodPost, "/api/chat", map[string]any{"recipient": 42, "text": "anyone?"}, me)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMessageOwnershipRules(t *testing.T) {
	s := newTestServer(t, 3)
	a, b, c := s.users[0].ID, s.users[1].ID, s.users[2].ID
	msg := sendMessage(t, s, a, b, "original")
	base := fmt.Sprintf("/api/chat/%d", msg.ID)

	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPatch, base+"/edit", map[string]string{"text": "x"}, b).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPatch, base+"/edit", map[string]string{"text": " "}, a).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPatch, base+"/read", nil, a).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPatch, base+"/read", nil, c).Code)

	rec := s.do(t, http.MethodPatch, base+"/edit", map[string]string{"text": "revised"}, a)
	require.Equal(t, http.StatusOK, rec.Code)
	var edited models.Message
	decodeData(t, rec, &edited)
	assert.True(t, edited.Edited)
	assert.Equal(t, "revised", edited.Text)

	rec = s.do(t, http.MethodPatch, base+"/read", nil, b)
	require.Equal(t, http.StatusOK, rec.Code)
	var read models.Message
	decodeData(t, rec, &read)
	assert.True(t, read.Read)
	assert.NotNil(t, read.ReadAt)
	assert.Equal(t, models.MessageStatusSeen, read.Status)

	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodDelete, base+"/delete", nil, b).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodDelete, base+"/delete", nil, a).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, base+"/delete", nil, a).Code)
}

func TestMarkThreadReadClearsMessageNotifications(t *testing.T) {
	s := newTestServer(t, 2)
	a, b := s.users[0].ID, s.users[1].ID
	sendMessage(t, s, a, b, "one")
	sendMessage(t, s, a, b, "two")

	rec := s.do(t, http.MethodPatch, fmt.Sprintf("/api/chat/thread/%d/read", a), nil, b)
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Updated int64 `json:"updated"`
	}
	decodeData(t, rec, &out)
	assert.EqualValues(t, 2, out.Updated)

	for _, n := range s.notificationsFor(t, b) {
		assert.Equal(t, models.NotificationMessage, n.Type)
		assert.True(t, n.IsRead)
	}
}
