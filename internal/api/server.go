package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/Debayan00100101/chatt/internal/metrics"
	"github.com/Debayan00100101/chatt/internal/service"
)

// NewServer wires the chat façade behind HTTP. Identity arrives as an
// already-authenticated username in the X-Username header; how it was
// authenticated is the front-end's concern.
func NewServer(svc *service.ChatService, log *zap.SugaredLogger) *fiber.App {
	app := fiber.New(fiber.Config{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		BodyLimit:    32 * 1024 * 1024,
	})
	app.Use(recover.New())
	app.Use(requestLogger(log))
	app.Use(limiter.New(limiter.Config{Max: 300, Expiration: time.Minute}))

	app.Get("/healthz", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	h := NewHandlers(svc, log)
	v1 := app.Group("/v1")

	v1.Use(func(c *fiber.Ctx) error {
		u := c.Get("X-Username")
		if u == "" {
			return JSONError(c, fiber.StatusUnauthorized, "missing username")
		}
		c.Locals("username", u)
		return c.Next()
	})

	v1.Post("/users", h.registerUser)
	v1.Post("/messages", h.postMessage)
	v1.Get("/messages", h.listMessages)
	v1.Delete("/messages/:id", h.deleteMessage)
	v1.Get("/blobs/:key", h.getBlob)
	v1.Post("/heartbeat", h.heartbeat)
	v1.Post("/logout", h.logout)
	v1.Get("/online", h.onlineUsers)
	v1.Get("/alerts", h.listAlerts)
	v1.Post("/alerts/:id/dismiss", h.dismissAlert)
	v1.Delete("/alerts/:id", h.purgeAlert)

	return app
}

func requestLogger(log *zap.SugaredLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		log.Infow("request",
			"method", c.Method(),
			"path", c.OriginalURL(),
			"status", c.Response().StatusCode(),
			"duration", time.Since(start),
		)
		return err
	}
}
