package api

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/gaurabsunargs-sudo/HMS-sub002/internal/metrics"
	"github.com/gaurabsunargs-sudo/HMS-sub002/internal/presence"
	"github.com/gaurabsunargs-sudo/HMS-sub002/internal/service"
)

type handlers struct {
	chat    *service.Chat
	tracker *presence.Tracker
	log     *zap.SugaredLogger
}

func newHandlers(chat *service.Chat, tracker *presence.Tracker, log *zap.SugaredLogger) *handlers {
	return &handlers{chat: chat, tracker: tracker, log: log}
}

func callerID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}

// sendMessage is the REST fallback path: same logical payload as the
// send-message socket event, used when the client has no live connection.
func (h *handlers) sendMessage(c *fiber.Ctx) error {
	var req struct {
		ReceiverID string `json:"receiverId"`
		Content    string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()
	m, err := h.chat.Send(ctx, callerID(c), req.ReceiverID, req.Content)
	if err != nil {
		if errors.Is(err, service.ErrBadRequest) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		h.log.Errorw("rest send failed", "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to send"})
	}
	metrics.MessagesSent.WithLabelValues("rest").Inc()
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"status": "ok", "data": m})
}

func (h *handlers) conversation(c *fiber.Ctx) error {
	peer := c.Params("peer_id")
	limit := int64(c.QueryInt("limit", 50))

	msgs, err := h.chat.Conversation(c.Context(), callerID(c), peer, limit)
	if err != nil {
		h.log.Errorw("conversation fetch failed", "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load conversation"})
	}
	return c.JSON(fiber.Map{"status": "ok", "data": msgs})
}

// markRead is the REST twin of the mark-messages-read socket event: the
// caller marks the peer's messages to them as read.
func (h *handlers) markRead(c *fiber.Ctx) error {
	peer := c.Params("peer_id")
	receipt, err := h.chat.MarkRead(c.Context(), peer, callerID(c))
	if err != nil {
		if errors.Is(err, service.ErrBadRequest) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		h.log.Errorw("mark read failed", "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to update read state"})
	}
	return c.JSON(fiber.Map{"status": "ok", "data": receipt})
}

func (h *handlers) unreadCount(c *fiber.Ctx) error {
	n, err := h.chat.UnreadCount(c.Context(), callerID(c))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to count"})
	}
	return c.JSON(fiber.Map{"status": "ok", "count": n})
}

func (h *handlers) presenceSnapshot(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "userIds": h.tracker.Snapshot()})
}
