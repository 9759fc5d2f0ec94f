package wallet

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/joy-platform/joy_token/internal/ledger"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type creditRequest struct {
	UserID string `json:"user_id"`
	Points int64  `json:"points"`
	Reason string `json:"reason"`
}

// CreditCE awards engagement points. Restricted to operator accounts by the
// route configuration.
func (h *Handler) CreditCE(c *fiber.Ctx) error {
	var req creditRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	w, err := h.service.CreditCE(c.UserContext(), req.UserID, req.Points, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidAmount):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ledger.ErrWalletNotFound):
			return fiber.NewError(http.StatusNotFound, "wallet not found")
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"wallet_id": w.ID,
		"ce_points": w.CEPoints,
	})
}

// Transactions lists recent ledger rows for a wallet.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	walletID := c.Params("walletId")
	limit := c.QueryInt("limit", 50)
	txs, err := h.service.Transactions(c.UserContext(), walletID, limit)
	if err != nil {
		if errors.Is(err, ledger.ErrWalletNotFound) {
			return fiber.NewError(http.StatusNotFound, "wallet not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	out := make([]fiber.Map, 0, len(txs))
	for _, tx := range txs {
		out = append(out, fiber.Map{
			"id":         tx.ID,
			"type":       tx.Type,
			"amount":     tx.Amount,
			"status":     tx.Status,
			"tx_hash":    tx.TxHash,
			"metadata":   tx.Metadata,
			"created_at": tx.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"wallet_id": walletID, "transactions": out})
}
