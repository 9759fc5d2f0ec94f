package routes

import (
    "github.com/gofiber/fiber/v2"

    "github.com/joy-platform/joy_token/internal/identity"
    "github.com/joy-platform/joy_token/internal/middleware"
    "github.com/joy-platform/joy_token/internal/wallet"
)

// RegisterWalletRoutes wires wallet-related endpoints. CE awards are an
// internal operation reserved for operator accounts.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler) {
    r.Post("/wallet/credit-ce", middleware.RequireRole(identity.RoleOperator), h.CreditCE)
    r.Get("/wallets/:walletId/transactions", h.Transactions)
}
