package server

import (
	"errors"

	"webauth/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

func NewApp(name, corsOrigins string, log *zap.Logger) *fiber.App {
	if log == nil {
		log = zap.NewNop()
	}

	// Values read from the request are kept by stores past the handler,
	// so they must not alias fasthttp's reused buffers.
	app := fiber.New(fiber.Config{
		AppName:           name,
		Immutable:         true,
		ReduceMemoryUsage: true,
		ErrorHandler:      errorHandler(log),
	})

	app.Use(recover.New())
	app.Use(compress.New(compress.Config{Level: compress.LevelBestSpeed}))
	app.Use(cors.New(middleware.CORSConfig(corsOrigins)))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": name})
	})

	return app
}

func errorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}
		if code >= fiber.StatusInternalServerError {
			log.Error("request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(err),
			)
		}
		msg := "internal error"
		if fe != nil && code < fiber.StatusInternalServerError {
			msg = fe.Message
		}
		return c.Status(code).JSON(fiber.Map{"error": msg})
	}
}
