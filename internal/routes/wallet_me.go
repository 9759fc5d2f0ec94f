package routes

import (
    "net/http"

    "github.com/gofiber/fiber/v2"

    "github.com/joy-platform/joy_token/internal/identity"
    "github.com/joy-platform/joy_token/internal/wallet"
)

// RegisterWalletMeRoute exposes a GET endpoint to view the current user's wallet and profile.
func RegisterWalletMeRoute(r fiber.Router, wallets *wallet.Service, idRepo identity.Repository) {
    r.Get("/wallet", func(c *fiber.Ctx) error {
        uid, _ := c.Locals("user_id").(string)
        if uid == "" {
            return fiber.NewError(http.StatusUnauthorized, "unauthorized")
        }
        user, err := idRepo.FindByID(c.UserContext(), uid)
        if err != nil {
            return fiber.NewError(http.StatusNotFound, "user not found")
        }
        w, err := wallets.GetByOwner(c.UserContext(), uid)
        if err != nil {
            return fiber.NewError(http.StatusNotFound, "wallet not found")
        }
        bal, err := wallets.Balances(c.UserContext(), w.ID)
        if err != nil {
            return fiber.NewError(http.StatusInternalServerError, err.Error())
        }
        return c.Status(http.StatusOK).JSON(fiber.Map{
            "user": fiber.Map{
                "id":         user.ID,
                "email":      user.Email,
                "username":   user.Username,
                "role":       user.Role,
                "created_at": user.CreatedAt,
            },
            "wallet": fiber.Map{
                "id":             w.ID,
                "address":        w.Address,
                "ce_points":      bal.CEPoints,
                "joy_tokens":     bal.JoyTokens,
                "staked_balance": bal.StakedBalance,
                "total_balance":  bal.TotalBalance,
                "created_at":     w.CreatedAt,
                "as_of":          bal.AsOf,
            },
        })
    })
}
