package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gaurabsunargs-sudo/HMS-sub002/internal/auth"
	"github.com/gaurabsunargs-sudo/HMS-sub002/internal/domain"
	"github.com/gaurabsunargs-sudo/HMS-sub002/internal/hub"
	"github.com/gaurabsunargs-sudo/HMS-sub002/internal/presence"
	"github.com/gaurabsunargs-sudo/HMS-sub002/internal/repository"
	"github.com/gaurabsunargs-sudo/HMS-sub002/internal/service"
	"github.com/gaurabsunargs-sudo/HMS-sub002/internal/ws"
)

type apiRig struct {
	app     *fiber.App
	jv      *auth.Validator
	store   *repository.MemoryStore
	tracker *presence.Tracker
}

func newAPIRig(t *testing.T) *apiRig {
	t.Helper()
	log := zap.NewNop().Sugar()
	h := hub.New()
	tracker := presence.NewTracker(nil)
	store := repository.NewMemoryStore()
	chat := service.NewChat(store, nil, nil, h, log)
	jv := auth.NewValidator("test-signing-secret")
	wsrv := ws.NewServer(h, tracker, chat, jv, ws.Options{}, log)
	return &apiRig{
		app:     NewServer(chat, tracker, wsrv, jv, log),
		jv:      jv,
		store:   store,
		tracker: tracker,
	}
}

func (r *apiRig) request(t *testing.T, method, path, userID string, body any) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		token, err := r.jv.Sign(userID)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := r.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestRequiresAuth(t *testing.T) {
	r := newAPIRig(t)
	resp := r.request(t, http.MethodPost, "/v1/messages", "", fiber.Map{"receiverId": "2", "content": "x"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSendMessageFallback(t *testing.T) {
	r := newAPIRig(t)
	resp := r.request(t, http.MethodPost, "/v1/messages", "1", fiber.Map{"receiverId": "2", "content": "hello"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decode[struct {
		Data domain.Message `json:"data"`
	}](t, resp)
	assert.Equal(t, "1", body.Data.SenderID)
	assert.Equal(t, "2", body.Data.ReceiverID)
	assert.Equal(t, "hello", body.Data.Content)
	assert.NotEmpty(t, body.Data.ID)
}

func TestSendMessageRejectsEmptyContent(t *testing.T) {
	r := newAPIRig(t)
	resp := r.request(t, http.MethodPost, "/v1/messages", "1", fiber.Map{"receiverId": "2"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestConversationAndReadFlow(t *testing.T) {
	r := newAPIRig(t)
	resp := r.request(t, http.MethodPost, "/v1/messages", "1", fiber.Map{"receiverId": "2", "content": "a"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = r.request(t, http.MethodPost, "/v1/messages", "2", fiber.Map{"receiverId": "1", "content": "b"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = r.request(t, http.MethodGet, "/v1/conversations/2/messages", "1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	conv := decode[struct {
		Data []domain.Message `json:"data"`
	}](t, resp)
	require.Len(t, conv.Data, 2)
	assert.Equal(t, "b", conv.Data[0].Content, "newest first")

	// user 2 marks user 1's messages read
	resp = r.request(t, http.MethodPost, "/v1/conversations/1/read", "2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	receipt := decode[struct {
		Data struct {
			MessageIDs []string `json:"messageIds"`
		} `json:"data"`
	}](t, resp)
	assert.Len(t, receipt.Data.MessageIDs, 1)

	// only the 1 -> 2 message gained readAt
	resp = r.request(t, http.MethodGet, "/v1/conversations/2/messages", "1", nil)
	conv = decode[struct {
		Data []domain.Message `json:"data"`
	}](t, resp)
	for _, m := range conv.Data {
		if m.SenderID == "1" {
			assert.NotNil(t, m.ReadAt)
		} else {
			assert.Nil(t, m.ReadAt)
		}
	}
}

func TestUnreadCount(t *testing.T) {
	r := newAPIRig(t)
	r.request(t, http.MethodPost, "/v1/messages", "1", fiber.Map{"receiverId": "2", "content": "a"})
	r.request(t, http.MethodPost, "/v1/messages", "3", fiber.Map{"receiverId": "2", "content": "b"})

	resp := r.request(t, http.MethodGet, "/v1/messages/unread-count", "2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[struct {
		Count int64 `json:"count"`
	}](t, resp)
	assert.EqualValues(t, 2, body.Count)
}

func TestPresenceSnapshotEndpoint(t *testing.T) {
	r := newAPIRig(t)
	r.tracker.MarkOnline("7")

	resp := r.request(t, http.MethodGet, "/v1/presence", "1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[struct {
		UserIDs []string `json:"userIds"`
	}](t, resp)
	assert.Equal(t, []string{"7"}, body.UserIDs)
}

func TestHealth(t *testing.T) {
	r := newAPIRig(t)
	resp := r.request(t, http.MethodGet, "/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
