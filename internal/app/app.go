package app

import (
	"carbone2pdf/internal/handlers"
	u "carbone2pdf/internal/utils"

	"github.com/gofiber/fiber/v2"
)

// SetupApp creates and configures the HTTP front of the dispatcher.
func SetupApp(cfg u.Config, svc *handlers.DocumentService) *fiber.App {
	app := fiber.New(fiber.Config{
		Prefork:               cfg.Server.Prefork,
		DisableStartupMessage: true,
		BodyLimit:             cfg.Server.BodyLimitBytes,
		ErrorHandler:          jsonErrorHandler,
	})

	RegisterMiddleware(app, cfg)
	RegisterRoutes(app, svc)

	// Every unmatched route answers with the JSON error envelope.
	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "Not Found")
	})

	return app
}

// RegisterRoutes mounts the document endpoints.
func RegisterRoutes(app *fiber.App, svc *handlers.DocumentService) {
	v1 := app.Group("/v1")

	v1.Post("/documents", svc.HandleCreate)
	v1.Get("/documents/:id", svc.HandleGet)
}

func jsonErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		msg = e.Message
	}

	u.Warn("Request failed", "path", c.Path(), "status", code, "message", msg)

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    code,
			"message": msg,
		},
	})
}
