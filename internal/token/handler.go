package token

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/joy-platform/joy_token/internal/chain"
	"github.com/joy-platform/joy_token/internal/ledger"
)

// Handler exposes token economics endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a token handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type convertRequest struct {
	CEPoints   int64  `json:"ce_points"`
	ClientTxID string `json:"client_tx_id"`
}

// Convert exchanges the caller's CE points for JY tokens.
func (h *Handler) Convert(c *fiber.Ctx) error {
	var req convertRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals("user_id").(string)

	res, err := h.service.Convert(c.UserContext(), uid, req.CEPoints, req.ClientTxID)
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicateTransaction) && res.TxHash != "" {
			// Replay of a completed conversion: answer with the original result.
			return c.Status(http.StatusOK).JSON(conversionJSON(res))
		}
		return mapTokenError(err)
	}
	return c.Status(http.StatusCreated).JSON(conversionJSON(res))
}

// PreviewConvert reports what a conversion would yield without executing it.
func (h *Handler) PreviewConvert(c *fiber.Ctx) error {
	cePoints := c.QueryInt("ce_points", -1)
	if cePoints < 0 {
		return fiber.NewError(http.StatusBadRequest, "invalid CE point amount")
	}
	preview := h.service.PreviewConversion(int64(cePoints))
	return c.JSON(fiber.Map{
		"ce_points":       cePoints,
		"jy_units":        preview.JYUnits,
		"jy_tokens":       FormatUnits(preview.JYUnits),
		"conversion_rate": preview.ConversionRate,
		"minimum_ce":      preview.MinimumCE,
		"valid":           preview.Valid,
		"message":         preview.Message,
	})
}

type stakeRequest struct {
	AmountUnits int64  `json:"amount_units"`
	ClientTxID  string `json:"client_tx_id"`
}

// Stake bonds liquid JY into the staking pool.
func (h *Handler) Stake(c *fiber.Ctx) error {
	var req stakeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals("user_id").(string)

	res, err := h.service.Stake(c.UserContext(), uid, req.AmountUnits, req.ClientTxID)
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicateTransaction) && res.TxHash != "" {
			return c.Status(http.StatusOK).JSON(stakeJSON(res))
		}
		return mapTokenError(err)
	}
	return c.Status(http.StatusCreated).JSON(stakeJSON(res))
}

// RequestUnstake starts the unstake cooldown.
func (h *Handler) RequestUnstake(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)

	res, err := h.service.RequestUnstake(c.UserContext(), uid)
	if err != nil {
		return mapTokenError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"tx_hash":     res.TxHash,
		"unlock_time": res.UnlockTime.Format(time.RFC3339),
	})
}

type unstakeRequest struct {
	ClientTxID string `json:"client_tx_id"`
}

// Unstake releases staked principal plus rewards after the cooldown.
func (h *Handler) Unstake(c *fiber.Ctx) error {
	var req unstakeRequest
	if err := c.BodyParser(&req); err != nil && !errors.Is(err, fiber.ErrUnprocessableEntity) {
		req = unstakeRequest{}
	}
	uid, _ := c.Locals("user_id").(string)

	res, err := h.service.Unstake(c.UserContext(), uid, req.ClientTxID)
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicateTransaction) && res.TxHash != "" {
			return c.Status(http.StatusOK).JSON(unstakeJSON(res))
		}
		return mapTokenError(err)
	}
	return c.Status(http.StatusCreated).JSON(unstakeJSON(res))
}

// ClaimRewards pays out pending staking rewards.
func (h *Handler) ClaimRewards(c *fiber.Ctx) error {
	var req unstakeRequest
	if err := c.BodyParser(&req); err != nil && !errors.Is(err, fiber.ErrUnprocessableEntity) {
		req = unstakeRequest{}
	}
	uid, _ := c.Locals("user_id").(string)

	res, err := h.service.ClaimRewards(c.UserContext(), uid, req.ClientTxID)
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicateTransaction) && res.TxHash != "" {
			return c.Status(http.StatusOK).JSON(claimJSON(res))
		}
		return mapTokenError(err)
	}
	return c.Status(http.StatusCreated).JSON(claimJSON(res))
}

type revenueRequest struct {
	AmountUnits int64  `json:"amount_units"`
	Source      string `json:"source"`
	ClientTxID  string `json:"client_tx_id"`
}

// DepositRevenue funds the yield pool. Restricted to operator accounts by the
// route configuration.
func (h *Handler) DepositRevenue(c *fiber.Ctx) error {
	var req revenueRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	txHash, err := h.service.DepositRevenue(c.UserContext(), req.AmountUnits, req.Source, req.ClientTxID)
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicateTransaction) && txHash != "" {
			return c.Status(http.StatusOK).JSON(fiber.Map{"tx_hash": txHash})
		}
		return mapTokenError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"tx_hash": txHash})
}

// StakeInfo returns the caller's staking position.
func (h *Handler) StakeInfo(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)

	info, err := h.service.StakeInfo(c.UserContext(), uid)
	if err != nil {
		return mapTokenError(err)
	}
	return c.JSON(fiber.Map{
		"amount_units":         info.AmountUnits,
		"amount":               FormatUnits(info.AmountUnits),
		"start_time":           timeOrNil(info.StartTime),
		"last_claim_time":      timeOrNil(info.LastClaimTime),
		"pending_reward_units": info.PendingRewardUnits,
		"pending_rewards":      FormatUnits(info.PendingRewardUnits),
		"unstake_request_time": timeOrNil(info.UnstakeRequestTime),
		"unstake_unlock_time":  timeOrNil(info.UnstakeUnlockTime),
	})
}

// StakingStats returns pool-wide staking metrics.
func (h *Handler) StakingStats(c *fiber.Ctx) error {
	stats, err := h.service.StakingStats(c.UserContext())
	if err != nil {
		return mapTokenError(err)
	}
	return c.JSON(fiber.Map{
		"total_staked_units":      chain.FromWei(stats.TotalStaked),
		"total_stakers":           stats.TotalStakers,
		"current_apr_bps":         stats.CurrentAPR,
		"yield_distributed_units": chain.FromWei(stats.TotalYieldDistributed),
		"yield_pool_units":        chain.FromWei(stats.AvailableYieldPool),
	})
}

// YieldPoolStatus returns yield pool sustainability metrics.
func (h *Handler) YieldPoolStatus(c *fiber.Ctx) error {
	status, err := h.service.YieldPoolStatus(c.UserContext())
	if err != nil {
		return mapTokenError(err)
	}
	return c.JSON(fiber.Map{
		"available_units":   chain.FromWei(status.Available),
		"deposited_units":   chain.FromWei(status.TotalDeposited),
		"distributed_units": chain.FromWei(status.TotalDistributed),
		"current_apr_bps":   status.CurrentAPR,
		"projected_days":    status.ProjectedDays,
	})
}

// TokenStats returns supply-level token metrics.
func (h *Handler) TokenStats(c *fiber.Ctx) error {
	stats, err := h.service.TokenStats(c.UserContext())
	if err != nil {
		return mapTokenError(err)
	}
	return c.JSON(fiber.Map{
		"total_supply_units":     chain.FromWei(stats.TotalSupply),
		"circulating_units":      chain.FromWei(stats.CirculatingSupply),
		"burned_units":           chain.FromWei(stats.TotalBurned),
		"total_staked_units":     chain.FromWei(stats.TotalStaked),
		"contract_balance_units": chain.FromWei(stats.ContractBalance),
	})
}

func mapTokenError(err error) error {
	switch {
	case errors.Is(err, ledger.ErrWalletNotFound):
		return fiber.NewError(http.StatusNotFound, "wallet not found")
	case errors.Is(err, ErrBelowMinimum),
		errors.Is(err, ErrInsufficientPoints),
		errors.Is(err, ErrInsufficientBalance),
		errors.Is(err, ErrNoStake),
		errors.Is(err, ErrUnstakeNotRequested),
		errors.Is(err, ErrNoRewards):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrCooldownActive):
		return fiber.NewError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrInsufficientLiquidity):
		return fiber.NewError(http.StatusServiceUnavailable, "contract liquidity exhausted, try again later")
	case errors.Is(err, ledger.ErrDuplicateTransaction):
		return fiber.NewError(http.StatusConflict, "duplicate transaction in flight")
	case errors.Is(err, chain.ErrTxReverted):
		return fiber.NewError(http.StatusBadGateway, "chain transaction reverted")
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}

func conversionJSON(res ConversionResult) fiber.Map {
	return fiber.Map{
		"jy_units":       res.JYUnits,
		"jy_tokens":      FormatUnits(res.JYUnits),
		"ce_points_used": res.CEPointsUsed,
		"tx_hash":        res.TxHash,
		"timestamp":      res.Timestamp,
	}
}

func stakeJSON(res StakeResult) fiber.Map {
	return fiber.Map{
		"tx_hash":        res.TxHash,
		"staked_units":   res.StakedUnits,
		"joy_tokens":     res.JoyTokens,
		"staked_balance": res.StakedBalance,
	}
}

func unstakeJSON(res UnstakeResult) fiber.Map {
	return fiber.Map{
		"tx_hash":         res.TxHash,
		"principal_units": res.PrincipalUnits,
		"reward_units":    res.RewardUnits,
		"joy_tokens":      res.JoyTokens,
	}
}

func claimJSON(res ClaimResult) fiber.Map {
	return fiber.Map{
		"tx_hash":      res.TxHash,
		"reward_units": res.RewardUnits,
	}
}

func timeOrNil(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Format(time.RFC3339)
}
