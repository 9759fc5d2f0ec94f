package routes

import (
    "log/slog"
    "net/http"

    "github.com/gofiber/fiber/v2"

    "github.com/joy-platform/joy_token/internal/identity"
    "github.com/joy-platform/joy_token/internal/wallet"
)

// RegisterIdentityRoutes wires identity endpoints and auto‑provisions a wallet on registration.
func RegisterIdentityRoutes(r fiber.Router, ids *identity.Service, wallets *wallet.Service, logger *slog.Logger) {
    // Register with auto-provisioned wallet
    r.Post("/identity/register", func(c *fiber.Ctx) error {
        var req struct {
            Email    string `json:"email"`
            Username string `json:"username"`
            Password string `json:"password"`
        }
        if err := c.BodyParser(&req); err != nil {
            return fiber.NewError(http.StatusBadRequest, err.Error())
        }
        user, err := ids.Register(c.UserContext(), identity.Credentials{Email: req.Email, Username: req.Username, Password: req.Password})
        if err != nil {
            return fiber.NewError(http.StatusBadRequest, err.Error())
        }
        var walletID string
        if wallets != nil {
            w, _ := wallets.Create(c.UserContext(), user.ID)
            walletID = w.ID
        }
        if logger != nil {
            logger.Info("identity.register completed",
                slog.String("user_id", user.ID),
                slog.String("email", user.Email),
                slog.String("wallet_id", walletID),
                slog.Int("status", http.StatusCreated),
            )
        }
        return c.Status(http.StatusCreated).JSON(fiber.Map{
            "user_id":   user.ID,
            "email":     user.Email,
            "username":  user.Username,
            "role":      user.Role,
            "wallet_id": walletID,
        })
    })

    // Plain authenticate (no tokens) remains for compatibility
    h := identity.NewHandler(ids)
    r.Post("/identity/authenticate", h.Authenticate)
}
