package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/tillpoint/tillpoint/app/controllers"
	"github.com/tillpoint/tillpoint/internal/pkg/constants"
	"github.com/tillpoint/tillpoint/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(limiter.Config{
		Max: 120,
		// The webhook endpoint receives bursts of provider retries; rate
		// limiting by client IP must not drop legitimate redeliveries.
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == constants.APIPaymentWebhookRoute
		},
	}))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "TillPoint API",
		})
	})

	v1 := api.Group("/v1")

	payments := v1.Group("/payments")
	payments.Post("/initialize", middleware.APIKeyAuthMiddleware(), controllers.HandleInitializePayment)
	// Redirect target after hosted checkout; carries no API credential.
	payments.Get("/verify/:reference", controllers.HandleVerifyPayment)
	// Authenticated by the provider signature, not by an API key.
	payments.Post("/webhook", controllers.HandlePaystackWebhook)

	subscriptions := v1.Group("/subscriptions", middleware.APIKeyAuthMiddleware())
	subscriptions.Get("/current", controllers.HandleGetCurrentSubscription)

	organizations := v1.Group("/organizations", middleware.APIKeyAuthMiddleware())
	organizations.Post("/api-key/rotate", controllers.HandleRotateAPIKey)
	organizations.Delete("/api-key", controllers.HandleRevokeAPIKey)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
