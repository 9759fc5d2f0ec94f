package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joy-platform/joy_token/internal/chain"
	"github.com/joy-platform/joy_token/internal/ledger"
	"github.com/joy-platform/joy_token/internal/notification"
)

const (
	// ConversionRate is the fixed CE-to-JY exchange: 100 CE points buy 1 JY.
	ConversionRate int64 = 100

	// MinimumConversionCE is the smallest convertible CE amount.
	MinimumConversionCE int64 = 100

	// MinimumStakeUnits is the smallest stakeable amount: 10 JY.
	MinimumStakeUnits = 10 * chain.UnitsPerToken
)

// Service orchestrates token economics: conversions, the staking lifecycle,
// reward claims and revenue deposits. Every chain-mutating operation follows
// the same saga: persist an intent, call the contract, then commit the
// matching ledger posting. Per-wallet locks serialize the whole sequence.
type Service struct {
	store          ledger.Store
	chain          chain.Client
	notifier       notification.Notifier
	locks          *walletLocks
	logger         *slog.Logger
	confirmTimeout time.Duration
	now            func() time.Time
}

// NewService constructs a token service instance.
func NewService(store ledger.Store, chainClient chain.Client, notifier notification.Notifier, logger *slog.Logger, confirmTimeout time.Duration) *Service {
	if confirmTimeout <= 0 {
		confirmTimeout = 90 * time.Second
	}
	return &Service{
		store:          store,
		chain:          chainClient,
		notifier:       notifier,
		locks:          newWalletLocks(),
		logger:         logger,
		confirmTimeout: confirmTimeout,
		now:            time.Now,
	}
}

// ConversionResult describes a completed CE-to-JY conversion.
type ConversionResult struct {
	JYUnits      int64
	CEPointsUsed int64
	TxHash       string
	Timestamp    time.Time
}

// ConversionPreview reports what a conversion would yield without executing it.
type ConversionPreview struct {
	JYUnits        int64
	ConversionRate int64
	MinimumCE      int64
	Valid          bool
	Message        string
}

// StakeResult describes a completed stake.
type StakeResult struct {
	TxHash        string
	StakedUnits   int64
	JoyTokens     int64
	StakedBalance int64
}

// UnstakeRequestResult carries the cooldown unlock time.
type UnstakeRequestResult struct {
	TxHash     string
	UnlockTime time.Time
}

// UnstakeResult describes a completed unstake payout.
type UnstakeResult struct {
	TxHash         string
	PrincipalUnits int64
	RewardUnits    int64
	JoyTokens      int64
}

// ClaimResult describes a completed reward claim.
type ClaimResult struct {
	TxHash      string
	RewardUnits int64
}

// StakeInfoResult is the per-user staking position in off-chain units.
type StakeInfoResult struct {
	AmountUnits        int64
	StartTime          time.Time
	LastClaimTime      time.Time
	PendingRewardUnits int64
	UnstakeRequestTime time.Time
	UnstakeUnlockTime  time.Time
}

// Convert exchanges CE points for JY at the fixed rate. The exchange is exact:
// jyUnits = cePoints * UnitsPerToken / ConversionRate with no rounding loss.
func (s *Service) Convert(ctx context.Context, userID string, cePoints int64, clientTxID string) (ConversionResult, error) {
	if cePoints < MinimumConversionCE {
		return ConversionResult{}, fmt.Errorf("%w: minimum %d CE points required for conversion", ErrBelowMinimum, MinimumConversionCE)
	}

	wallet, err := s.store.WalletByUser(ctx, userID)
	if err != nil {
		return ConversionResult{}, err
	}

	unlock := s.locks.acquire(wallet.ID)
	defer unlock()

	wallet, err = s.store.WalletByID(ctx, wallet.ID)
	if err != nil {
		return ConversionResult{}, err
	}
	if wallet.CEPoints < cePoints {
		return ConversionResult{}, fmt.Errorf("%w: have %d, need %d", ErrInsufficientPoints, wallet.CEPoints, cePoints)
	}

	jyUnits := cePoints * chain.UnitsPerToken / ConversionRate

	contractBalance, err := s.chain.ContractBalance(ctx)
	if err != nil {
		return ConversionResult{}, fmt.Errorf("check contract liquidity: %w", err)
	}
	if contractBalance.Cmp(chain.ToWei(jyUnits)) < 0 {
		return ConversionResult{}, ErrInsufficientLiquidity
	}

	if clientTxID == "" {
		clientTxID = uuid.NewString()
	}
	intent, err := s.store.CreateIntent(ctx, ledger.Intent{
		ID:          uuid.NewString(),
		Kind:        ledger.IntentKindConversion,
		ClientTxID:  clientTxID,
		WalletID:    wallet.ID,
		UserID:      userID,
		CEDelta:     -cePoints,
		LiquidDelta: jyUnits,
		Amount:      jyUnits,
		Metadata:    map[string]any{"ce_points": cePoints, "conversion_rate": ConversionRate},
	})
	if errors.Is(err, ledger.ErrDuplicateTransaction) {
		return conversionFromIntent(intent), err
	}
	if err != nil {
		return ConversionResult{}, err
	}

	beneficiary := chain.BeneficiaryAddress(wallet.ID)
	receipt, err := s.executeChainCall(ctx, intent.ID, func(callCtx context.Context) (chain.Receipt, error) {
		return s.chain.ConvertCEPoints(callCtx, beneficiary, cePoints)
	})
	if err != nil {
		return ConversionResult{}, fmt.Errorf("conversion: %w", err)
	}

	if _, err := s.store.CompleteIntent(ctx, intent.ID); err != nil && !errors.Is(err, ledger.ErrIntentCompleted) {
		// The chain transfer is final; the reconciler will replay this posting.
		s.logger.Error("conversion ledger commit failed", "intent_id", intent.ID, "error", err)
		return ConversionResult{}, fmt.Errorf("record conversion: %w", err)
	}

	s.logger.Info("converted CE points",
		"user_id", userID, "ce_points", cePoints, "jy_units", jyUnits, "tx_hash", receipt.TxHash)
	s.notify(ctx, notification.KindConversion, userID,
		fmt.Sprintf("Converted %d CE points to %s JY", cePoints, FormatUnits(jyUnits)))

	return ConversionResult{JYUnits: jyUnits, CEPointsUsed: cePoints, TxHash: receipt.TxHash, Timestamp: s.now().UTC()}, nil
}

// PreviewConversion reports the outcome of a conversion without state changes.
func (s *Service) PreviewConversion(cePoints int64) ConversionPreview {
	preview := ConversionPreview{
		JYUnits:        cePoints * chain.UnitsPerToken / ConversionRate,
		ConversionRate: ConversionRate,
		MinimumCE:      MinimumConversionCE,
		Valid:          cePoints >= MinimumConversionCE,
	}
	if preview.Valid {
		preview.Message = "conversion available"
	} else {
		preview.Message = fmt.Sprintf("minimum %d CE points required", MinimumConversionCE)
		preview.JYUnits = 0
	}
	return preview
}

// Stake bonds liquid JY into the staking pool.
func (s *Service) Stake(ctx context.Context, userID string, units int64, clientTxID string) (StakeResult, error) {
	if units < MinimumStakeUnits {
		return StakeResult{}, fmt.Errorf("%w: minimum stake is %s JY", ErrBelowMinimum, FormatUnits(MinimumStakeUnits))
	}

	wallet, err := s.store.WalletByUser(ctx, userID)
	if err != nil {
		return StakeResult{}, err
	}

	unlock := s.locks.acquire(wallet.ID)
	defer unlock()

	wallet, err = s.store.WalletByID(ctx, wallet.ID)
	if err != nil {
		return StakeResult{}, err
	}
	if wallet.JoyTokens < units {
		return StakeResult{}, fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance,
			FormatUnits(wallet.JoyTokens), FormatUnits(units))
	}

	if clientTxID == "" {
		clientTxID = uuid.NewString()
	}
	intent, err := s.store.CreateIntent(ctx, ledger.Intent{
		ID:          uuid.NewString(),
		Kind:        ledger.IntentKindStake,
		ClientTxID:  clientTxID,
		WalletID:    wallet.ID,
		UserID:      userID,
		LiquidDelta: -units,
		StakedDelta: units,
		Amount:      units,
	})
	if errors.Is(err, ledger.ErrDuplicateTransaction) {
		return stakeFromIntent(intent), err
	}
	if err != nil {
		return StakeResult{}, err
	}

	beneficiary := chain.BeneficiaryAddress(wallet.ID)
	receipt, err := s.executeChainCall(ctx, intent.ID, func(callCtx context.Context) (chain.Receipt, error) {
		return s.chain.Stake(callCtx, beneficiary, chain.ToWei(units))
	})
	if err != nil {
		return StakeResult{}, fmt.Errorf("stake: %w", err)
	}

	updated, err := s.store.CompleteIntent(ctx, intent.ID)
	if err != nil && !errors.Is(err, ledger.ErrIntentCompleted) {
		s.logger.Error("stake ledger commit failed", "intent_id", intent.ID, "error", err)
		return StakeResult{}, fmt.Errorf("record stake: %w", err)
	}

	s.logger.Info("staked JY", "user_id", userID, "jy_units", units, "tx_hash", receipt.TxHash)
	s.notify(ctx, notification.KindStake, userID, fmt.Sprintf("Staked %s JY", FormatUnits(units)))

	return StakeResult{
		TxHash:        receipt.TxHash,
		StakedUnits:   units,
		JoyTokens:     updated.JoyTokens,
		StakedBalance: updated.StakedBalance,
	}, nil
}

// RequestUnstake starts the unstake cooldown for the user's staked position.
func (s *Service) RequestUnstake(ctx context.Context, userID string) (UnstakeRequestResult, error) {
	wallet, err := s.store.WalletByUser(ctx, userID)
	if err != nil {
		return UnstakeRequestResult{}, err
	}

	unlock := s.locks.acquire(wallet.ID)
	defer unlock()

	beneficiary := chain.BeneficiaryAddress(wallet.ID)
	info, err := s.chain.GetStakeInfo(ctx, beneficiary)
	if err != nil {
		return UnstakeRequestResult{}, fmt.Errorf("read stake info: %w", err)
	}
	if info.Amount == nil || info.Amount.Sign() == 0 {
		return UnstakeRequestResult{}, ErrNoStake
	}

	intent, err := s.store.CreateIntent(ctx, ledger.Intent{
		ID:         uuid.NewString(),
		Kind:       ledger.IntentKindUnstakeRequest,
		ClientTxID: uuid.NewString(),
		UserID:     userID,
	})
	if err != nil {
		return UnstakeRequestResult{}, err
	}

	receipt, err := s.executeChainCall(ctx, intent.ID, func(callCtx context.Context) (chain.Receipt, error) {
		return s.chain.RequestUnstake(callCtx, beneficiary)
	})
	if err != nil {
		return UnstakeRequestResult{}, fmt.Errorf("request unstake: %w", err)
	}
	if _, err := s.store.CompleteIntent(ctx, intent.ID); err != nil && !errors.Is(err, ledger.ErrIntentCompleted) {
		s.logger.Error("unstake request audit commit failed", "intent_id", intent.ID, "error", err)
	}

	unlockTime := s.now().UTC().Add(chain.CooldownPeriod)
	if info, err := s.chain.GetStakeInfo(ctx, beneficiary); err == nil && !info.UnstakeUnlockTime.IsZero() {
		unlockTime = info.UnstakeUnlockTime
	}

	s.logger.Info("unstake requested", "user_id", userID, "unlock_time", unlockTime, "tx_hash", receipt.TxHash)
	return UnstakeRequestResult{TxHash: receipt.TxHash, UnlockTime: unlockTime}, nil
}

// Unstake releases the staked principal plus accrued rewards once the
// cooldown has elapsed.
func (s *Service) Unstake(ctx context.Context, userID string, clientTxID string) (UnstakeResult, error) {
	wallet, err := s.store.WalletByUser(ctx, userID)
	if err != nil {
		return UnstakeResult{}, err
	}

	unlock := s.locks.acquire(wallet.ID)
	defer unlock()

	beneficiary := chain.BeneficiaryAddress(wallet.ID)
	info, err := s.chain.GetStakeInfo(ctx, beneficiary)
	if err != nil {
		return UnstakeResult{}, fmt.Errorf("read stake info: %w", err)
	}
	if info.Amount == nil || info.Amount.Sign() == 0 {
		return UnstakeResult{}, ErrNoStake
	}
	if info.UnstakeUnlockTime.IsZero() {
		return UnstakeResult{}, ErrUnstakeNotRequested
	}
	if s.now().Before(info.UnstakeUnlockTime) {
		return UnstakeResult{}, fmt.Errorf("%w: unlocks at %s", ErrCooldownActive, info.UnstakeUnlockTime.Format(time.RFC3339))
	}

	principal := chain.FromWei(info.Amount)
	rewards := chain.FromWei(info.PendingRewards)

	if clientTxID == "" {
		clientTxID = uuid.NewString()
	}
	intent, err := s.store.CreateIntent(ctx, ledger.Intent{
		ID:          uuid.NewString(),
		Kind:        ledger.IntentKindUnstake,
		ClientTxID:  clientTxID,
		WalletID:    wallet.ID,
		UserID:      userID,
		LiquidDelta: principal + rewards,
		StakedDelta: -principal,
		Amount:      principal + rewards,
		Metadata:    map[string]any{"principal_units": principal, "reward_units": rewards},
	})
	if errors.Is(err, ledger.ErrDuplicateTransaction) {
		return unstakeFromIntent(intent), err
	}
	if err != nil {
		return UnstakeResult{}, err
	}

	receipt, err := s.executeChainCall(ctx, intent.ID, func(callCtx context.Context) (chain.Receipt, error) {
		return s.chain.Unstake(callCtx, beneficiary)
	})
	if err != nil {
		return UnstakeResult{}, fmt.Errorf("unstake: %w", err)
	}

	updated, err := s.store.CompleteIntent(ctx, intent.ID)
	if err != nil && !errors.Is(err, ledger.ErrIntentCompleted) {
		s.logger.Error("unstake ledger commit failed", "intent_id", intent.ID, "error", err)
		return UnstakeResult{}, fmt.Errorf("record unstake: %w", err)
	}

	s.logger.Info("unstaked JY", "user_id", userID,
		"principal_units", principal, "reward_units", rewards, "tx_hash", receipt.TxHash)
	s.notify(ctx, notification.KindUnstake, userID,
		fmt.Sprintf("Unstaked %s JY (+%s rewards)", FormatUnits(principal), FormatUnits(rewards)))

	return UnstakeResult{
		TxHash:         receipt.TxHash,
		PrincipalUnits: principal,
		RewardUnits:    rewards,
		JoyTokens:      updated.JoyTokens,
	}, nil
}

// ClaimRewards pays out pending staking rewards without unstaking.
func (s *Service) ClaimRewards(ctx context.Context, userID string, clientTxID string) (ClaimResult, error) {
	wallet, err := s.store.WalletByUser(ctx, userID)
	if err != nil {
		return ClaimResult{}, err
	}

	unlock := s.locks.acquire(wallet.ID)
	defer unlock()

	beneficiary := chain.BeneficiaryAddress(wallet.ID)
	pending, err := s.chain.PendingRewards(ctx, beneficiary)
	if err != nil {
		return ClaimResult{}, fmt.Errorf("read pending rewards: %w", err)
	}
	rewards := chain.FromWei(pending)
	if rewards == 0 {
		return ClaimResult{}, ErrNoRewards
	}

	if clientTxID == "" {
		clientTxID = uuid.NewString()
	}
	intent, err := s.store.CreateIntent(ctx, ledger.Intent{
		ID:          uuid.NewString(),
		Kind:        ledger.IntentKindClaim,
		ClientTxID:  clientTxID,
		WalletID:    wallet.ID,
		UserID:      userID,
		LiquidDelta: rewards,
		Amount:      rewards,
	})
	if errors.Is(err, ledger.ErrDuplicateTransaction) {
		return claimFromIntent(intent), err
	}
	if err != nil {
		return ClaimResult{}, err
	}

	receipt, err := s.executeChainCall(ctx, intent.ID, func(callCtx context.Context) (chain.Receipt, error) {
		return s.chain.ClaimRewards(callCtx, beneficiary)
	})
	if err != nil {
		return ClaimResult{}, fmt.Errorf("claim rewards: %w", err)
	}

	if _, err := s.store.CompleteIntent(ctx, intent.ID); err != nil && !errors.Is(err, ledger.ErrIntentCompleted) {
		s.logger.Error("claim ledger commit failed", "intent_id", intent.ID, "error", err)
		return ClaimResult{}, fmt.Errorf("record claim: %w", err)
	}

	s.logger.Info("claimed rewards", "user_id", userID, "reward_units", rewards, "tx_hash", receipt.TxHash)
	s.notify(ctx, notification.KindRewardClaim, userID, fmt.Sprintf("Claimed %s JY rewards", FormatUnits(rewards)))

	return ClaimResult{TxHash: receipt.TxHash, RewardUnits: rewards}, nil
}

// DepositRevenue funds the shared yield pool with protocol revenue. This is a
// pool-level operation: no wallet balances change, only an audit trail is
// written.
func (s *Service) DepositRevenue(ctx context.Context, units int64, source, clientTxID string) (string, error) {
	if units <= 0 {
		return "", fmt.Errorf("%w: amount must be positive", ErrBelowMinimum)
	}
	if clientTxID == "" {
		clientTxID = uuid.NewString()
	}
	intent, err := s.store.CreateIntent(ctx, ledger.Intent{
		ID:         uuid.NewString(),
		Kind:       ledger.IntentKindRevenue,
		ClientTxID: clientTxID,
		Amount:     units,
		Metadata:   map[string]any{"source": source},
	})
	if errors.Is(err, ledger.ErrDuplicateTransaction) {
		return intent.TxHash, err
	}
	if err != nil {
		return "", err
	}

	receipt, err := s.executeChainCall(ctx, intent.ID, func(callCtx context.Context) (chain.Receipt, error) {
		return s.chain.DepositRevenue(callCtx, chain.ToWei(units), source)
	})
	if err != nil {
		return "", fmt.Errorf("deposit revenue: %w", err)
	}
	if _, err := s.store.CompleteIntent(ctx, intent.ID); err != nil && !errors.Is(err, ledger.ErrIntentCompleted) {
		s.logger.Error("revenue audit commit failed", "intent_id", intent.ID, "error", err)
	}

	s.logger.Info("deposited revenue", "jy_units", units, "source", source, "tx_hash", receipt.TxHash)
	return receipt.TxHash, nil
}

// StakeInfo reads the user's staking position from the contract.
func (s *Service) StakeInfo(ctx context.Context, userID string) (StakeInfoResult, error) {
	wallet, err := s.store.WalletByUser(ctx, userID)
	if err != nil {
		return StakeInfoResult{}, err
	}
	info, err := s.chain.GetStakeInfo(ctx, chain.BeneficiaryAddress(wallet.ID))
	if err != nil {
		return StakeInfoResult{}, err
	}
	return StakeInfoResult{
		AmountUnits:        chain.FromWei(info.Amount),
		StartTime:          info.StartTime,
		LastClaimTime:      info.LastClaimTime,
		PendingRewardUnits: chain.FromWei(info.PendingRewards),
		UnstakeRequestTime: info.UnstakeRequestTime,
		UnstakeUnlockTime:  info.UnstakeUnlockTime,
	}, nil
}

// StakingStats reads pool-wide staking metrics.
func (s *Service) StakingStats(ctx context.Context) (chain.StakingStats, error) {
	return s.chain.GetStakingStats(ctx)
}

// YieldPoolStatus reads yield pool sustainability metrics.
func (s *Service) YieldPoolStatus(ctx context.Context) (chain.YieldPoolStatus, error) {
	return s.chain.GetYieldPoolStatus(ctx)
}

// TokenStats reads supply-level token metrics.
func (s *Service) TokenStats(ctx context.Context) (chain.TokenStats, error) {
	return s.chain.GetTokenStats(ctx)
}

// executeChainCall runs a contract write under the confirmation timeout and
// advances the intent according to the outcome: confirmed on success,
// submitted when the receipt is still outstanding (left for the reconciler),
// failed on a revert or a submission error.
func (s *Service) executeChainCall(ctx context.Context, intentID string, call func(context.Context) (chain.Receipt, error)) (chain.Receipt, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.confirmTimeout)
	defer cancel()

	receipt, err := call(callCtx)
	if err != nil {
		if receipt.TxHash != "" && !errors.Is(err, chain.ErrTxReverted) {
			if markErr := s.store.MarkIntentSubmitted(ctx, intentID, receipt.TxHash); markErr != nil {
				s.logger.Error("mark intent submitted failed", "intent_id", intentID, "error", markErr)
			}
		} else if markErr := s.store.MarkIntentFailed(ctx, intentID, err.Error()); markErr != nil {
			s.logger.Error("mark intent failed failed", "intent_id", intentID, "error", markErr)
		}
		return chain.Receipt{}, err
	}
	if err := s.store.MarkIntentConfirmed(ctx, intentID, receipt.TxHash); err != nil {
		return chain.Receipt{}, fmt.Errorf("mark intent confirmed: %w", err)
	}
	return receipt, nil
}

func (s *Service) notify(ctx context.Context, kind, userID, body string) {
	if s.notifier == nil {
		return
	}
	_ = s.notifier.Send(ctx, notification.Message{Kind: kind, Destination: userID, Body: body})
}

func conversionFromIntent(intent ledger.Intent) ConversionResult {
	if intent.Status != ledger.IntentStatusCompleted {
		return ConversionResult{}
	}
	return ConversionResult{
		JYUnits:      intent.LiquidDelta,
		CEPointsUsed: -intent.CEDelta,
		TxHash:       intent.TxHash,
		Timestamp:    intent.UpdatedAt,
	}
}

func stakeFromIntent(intent ledger.Intent) StakeResult {
	if intent.Status != ledger.IntentStatusCompleted {
		return StakeResult{}
	}
	return StakeResult{TxHash: intent.TxHash, StakedUnits: intent.StakedDelta}
}

func unstakeFromIntent(intent ledger.Intent) UnstakeResult {
	if intent.Status != ledger.IntentStatusCompleted {
		return UnstakeResult{}
	}
	// Metadata numbers come back as float64 after a jsonb round trip, so the
	// split is rebuilt from the deltas: the staked delta is the principal and
	// the rest of the liquid credit is rewards.
	principal := -intent.StakedDelta
	rewards := intent.LiquidDelta - principal
	return UnstakeResult{TxHash: intent.TxHash, PrincipalUnits: principal, RewardUnits: rewards}
}

func claimFromIntent(intent ledger.Intent) ClaimResult {
	if intent.Status != ledger.IntentStatusCompleted {
		return ClaimResult{}
	}
	return ClaimResult{TxHash: intent.TxHash, RewardUnits: intent.LiquidDelta}
}

// FormatUnits renders a micro-JY amount as a decimal token string.
func FormatUnits(units int64) string {
	whole := units / chain.UnitsPerToken
	frac := units % chain.UnitsPerToken
	if frac == 0 {
		return fmt.Sprintf("%d", whole)
	}
	return fmt.Sprintf("%d.%06d", whole, frac)
}
