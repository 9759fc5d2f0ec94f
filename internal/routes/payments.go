package routes

import (
    "github.com/gofiber/fiber/v2"

    "github.com/joy-platform/joy_token/internal/payments"
)

// RegisterPaymentRoutes wires payment endpoints.
func RegisterPaymentRoutes(r fiber.Router, h *payments.Handler) {
    r.Post("/payments/transfer", h.Transfer)
}

