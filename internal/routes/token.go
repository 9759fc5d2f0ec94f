package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/joy-platform/joy_token/internal/identity"
	"github.com/joy-platform/joy_token/internal/middleware"
	"github.com/joy-platform/joy_token/internal/token"
)

// RegisterTokenRoutes wires token economics endpoints. Revenue deposits are
// restricted to operator accounts.
func RegisterTokenRoutes(r fiber.Router, h *token.Handler) {
	group := r.Group("/token")

	group.Post("/convert", h.Convert)
	group.Get("/convert/preview", h.PreviewConvert)

	group.Post("/stake", h.Stake)
	group.Post("/unstake/request", h.RequestUnstake)
	group.Post("/unstake", h.Unstake)
	group.Post("/rewards/claim", h.ClaimRewards)

	group.Post("/revenue", middleware.RequireRole(identity.RoleOperator), h.DepositRevenue)

	group.Get("/stake-info", h.StakeInfo)
	group.Get("/staking-stats", h.StakingStats)
	group.Get("/yield-pool", h.YieldPoolStatus)
	group.Get("/stats", h.TokenStats)
}
