package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"

	"github.com/yourorg/institute-portal/internal/auth"
	"github.com/yourorg/institute-portal/internal/config"
	"github.com/yourorg/institute-portal/internal/handlers"
)

func NewServer(cfg *config.Config, h *handlers.SyncHandler) *fiber.App {
	app := fiber.New()
	app.Use(logger.New())

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/v1")
	api.Use(JWTAuthMiddleware(cfg.JWT.Secret))

	api.Get("/rooms", h.ListRooms)
	api.Get("/rooms/:id/messages", h.GetMessages)
	api.Post("/rooms/:id/messages", h.SendMessage)
	api.Post("/rooms/:id/read", h.MarkRoomRead)

	api.Get("/notifications", h.ListNotifications)
	api.Get("/notifications/counts", h.NotificationCounts)
	api.Post("/notifications", h.CreateNotification)
	api.Post("/notifications/read", h.MarkAllNotificationsRead)
	api.Post("/notifications/:category/read", h.MarkCategoryRead)

	api.Use("/ws/notifications", upgradeRequired)
	api.Get("/ws/notifications", h.StreamNotifications())
	api.Use("/ws/:room_id", upgradeRequired)
	api.Get("/ws/:room_id", h.Stream())

	return app
}

func upgradeRequired(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		c.Locals("allowed", true)
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

func JWTAuthMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		// websocket clients cannot set headers; accept ?token= there
		token := c.Query("token")
		if header != "" {
			var err error
			token, err = auth.ParseBearerToken(header)
			if err != nil {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
			}
		}
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing auth"})
		}
		claims, err := auth.ParseAndValidateToken(secret, token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
		}
		c.Locals("user_id", claims.UserID)
		c.Locals("role", claims.ActorRole())
		return c.Next()
	}
}
