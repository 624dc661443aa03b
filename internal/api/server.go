package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	fiberws "github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/gaurabsunargs-sudo/HMS-sub002/internal/auth"
	"github.com/gaurabsunargs-sudo/HMS-sub002/internal/metrics"
	"github.com/gaurabsunargs-sudo/HMS-sub002/internal/presence"
	"github.com/gaurabsunargs-sudo/HMS-sub002/internal/service"
	"github.com/gaurabsunargs-sudo/HMS-sub002/internal/ws"
)

// NewServer wires the REST fallback endpoints, the websocket upgrade, and the
// operational endpoints into one fiber app.
func NewServer(chat *service.Chat, tracker *presence.Tracker, wsrv *ws.Server, jv *auth.Validator, log *zap.SugaredLogger) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(recover.New())
	app.Use(fiberlogger.New())

	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	h := newHandlers(chat, tracker, log)

	v1 := app.Group("/v1")
	v1.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// websocket upgrade authenticates inside the handler (token query param)
	v1.Get("/ws", func(c *fiber.Ctx) error {
		if fiberws.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}, fiberws.New(wsrv.Handle()))

	v1.Use(requireAuth(jv))
	v1.Post("/messages", h.sendMessage)
	v1.Get("/messages/unread-count", h.unreadCount)
	v1.Get("/conversations/:peer_id/messages", h.conversation)
	v1.Post("/conversations/:peer_id/read", h.markRead)
	v1.Get("/presence", h.presenceSnapshot)

	return app
}

func requireAuth(jv *auth.Validator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := auth.ParseBearer(c.Get("Authorization"))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing or malformed authorization"})
		}
		userID, err := jv.Validate(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
		}
		c.Locals("user_id", userID)
		return c.Next()
	}
}
