package token

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/joy-platform/joy_token/internal/chain"
	"github.com/joy-platform/joy_token/internal/ledger"
	"github.com/joy-platform/joy_token/internal/logging"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	svc    *Service
	store  ledger.Store
	mem    *chain.MemoryClient
	clock  *testClock
	wallet ledger.Wallet
	userID string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := &testClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	store := ledger.NewInMemory()
	mem := chain.NewMemory(clock.Now)

	svc := NewService(store, mem, nil, logging.Discard(), 5*time.Second)
	svc.now = clock.Now

	userID := uuid.NewString()
	w := ledger.Wallet{ID: uuid.NewString(), UserID: userID, CreatedAt: clock.Now(), UpdatedAt: clock.Now()}
	w.Address = chain.BeneficiaryAddress(w.ID).Hex()
	if err := store.CreateWallet(context.Background(), w); err != nil {
		t.Fatalf("create wallet: %v", err)
	}

	return &fixture{svc: svc, store: store, mem: mem, clock: clock, wallet: w, userID: userID}
}

func (f *fixture) walletNow(t *testing.T) ledger.Wallet {
	t.Helper()
	w, err := f.store.WalletByID(context.Background(), f.wallet.ID)
	if err != nil {
		t.Fatalf("read wallet: %v", err)
	}
	return w
}

func TestConvertSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ledger.SeedBalances(f.store, f.wallet.ID, 1_000, 0, 0)
	chain.SeedLiquidity(f.mem, 100*chain.UnitsPerToken)

	res, err := f.svc.Convert(ctx, f.userID, 1_000, "")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if res.JYUnits != 10*chain.UnitsPerToken {
		t.Fatalf("expected 10 JY, got %d units", res.JYUnits)
	}
	if res.TxHash == "" {
		t.Fatalf("expected a tx hash")
	}

	w := f.walletNow(t)
	if w.CEPoints != 0 {
		t.Fatalf("expected CE points spent, got %d", w.CEPoints)
	}
	if w.JoyTokens != 10*chain.UnitsPerToken {
		t.Fatalf("expected 10 JY liquid, got %d", w.JoyTokens)
	}

	txs, err := f.store.Transactions(ctx, f.wallet.ID, 10)
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(txs) != 1 || txs[0].Type != ledger.TxTypeConversion {
		t.Fatalf("expected one conversion row, got %+v", txs)
	}
	if txs[0].TxHash != res.TxHash {
		t.Fatalf("ledger row hash %s does not match receipt %s", txs[0].TxHash, res.TxHash)
	}

	events := ledger.AuditEvents(f.store)
	if len(events) != 1 || events[0].Type != ledger.AuditTokenConversion {
		t.Fatalf("expected one conversion audit event, got %+v", events)
	}
}

func TestConvertLeavesRemainingPoints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ledger.SeedBalances(f.store, f.wallet.ID, 250, 0, 0)
	chain.SeedLiquidity(f.mem, 100*chain.UnitsPerToken)

	res, err := f.svc.Convert(ctx, f.userID, 200, "")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if res.JYUnits != 2*chain.UnitsPerToken {
		t.Fatalf("expected 2 JY, got %d units", res.JYUnits)
	}

	w := f.walletNow(t)
	if w.CEPoints != 50 {
		t.Fatalf("expected 50 CE points left, got %d", w.CEPoints)
	}
	if w.JoyTokens != 2*chain.UnitsPerToken {
		t.Fatalf("expected 2 JY liquid, got %d", w.JoyTokens)
	}

	txs, _ := f.store.Transactions(ctx, f.wallet.ID, 10)
	if len(txs) != 1 || txs[0].Type != ledger.TxTypeConversion {
		t.Fatalf("expected one conversion row, got %+v", txs)
	}
	events := ledger.AuditEvents(f.store)
	if len(events) != 1 || events[0].Type != ledger.AuditTokenConversion {
		t.Fatalf("expected one conversion audit event, got %+v", events)
	}
}

func TestConvertBelowMinimum(t *testing.T) {
	f := newFixture(t)
	ledger.SeedBalances(f.store, f.wallet.ID, 1_000, 0, 0)

	if _, err := f.svc.Convert(context.Background(), f.userID, 50, ""); !errors.Is(err, ErrBelowMinimum) {
		t.Fatalf("expected ErrBelowMinimum, got %v", err)
	}
}

func TestConvertInsufficientPoints(t *testing.T) {
	f := newFixture(t)
	ledger.SeedBalances(f.store, f.wallet.ID, 150, 0, 0)
	chain.SeedLiquidity(f.mem, 100*chain.UnitsPerToken)

	if _, err := f.svc.Convert(context.Background(), f.userID, 200, ""); !errors.Is(err, ErrInsufficientPoints) {
		t.Fatalf("expected ErrInsufficientPoints, got %v", err)
	}
	if w := f.walletNow(t); w.CEPoints != 150 {
		t.Fatalf("balance should be untouched, got %d", w.CEPoints)
	}
}

func TestConvertInsufficientLiquidity(t *testing.T) {
	f := newFixture(t)
	ledger.SeedBalances(f.store, f.wallet.ID, 1_000, 0, 0)
	// Contract holds less than the 10 JY the conversion needs.
	chain.SeedLiquidity(f.mem, 5*chain.UnitsPerToken)

	if _, err := f.svc.Convert(context.Background(), f.userID, 1_000, ""); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected ErrInsufficientLiquidity, got %v", err)
	}
}

func TestConvertDuplicateClientTxID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ledger.SeedBalances(f.store, f.wallet.ID, 2_000, 0, 0)
	chain.SeedLiquidity(f.mem, 100*chain.UnitsPerToken)

	first, err := f.svc.Convert(ctx, f.userID, 1_000, "client-1")
	if err != nil {
		t.Fatalf("first convert: %v", err)
	}

	second, err := f.svc.Convert(ctx, f.userID, 1_000, "client-1")
	if !errors.Is(err, ledger.ErrDuplicateTransaction) {
		t.Fatalf("expected duplicate transaction, got %v", err)
	}
	if second.TxHash != first.TxHash {
		t.Fatalf("replay should return original hash %s, got %s", first.TxHash, second.TxHash)
	}

	// The second call must not have spent more points.
	if w := f.walletNow(t); w.CEPoints != 1_000 {
		t.Fatalf("expected 1000 CE points left, got %d", w.CEPoints)
	}
}

func TestConvertSerializesPerWallet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ledger.SeedBalances(f.store, f.wallet.ID, 1_000, 0, 0)
	chain.SeedLiquidity(f.mem, 100*chain.UnitsPerToken)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Convert(ctx, f.userID, 600, "")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var failures int
	for err := range errs {
		if err != nil {
			if !errors.Is(err, ErrInsufficientPoints) {
				t.Fatalf("unexpected error: %v", err)
			}
			failures++
		}
	}
	if failures != 1 {
		t.Fatalf("expected exactly one loser, got %d", failures)
	}
	if w := f.walletNow(t); w.CEPoints != 400 {
		t.Fatalf("expected 400 CE points left, got %d", w.CEPoints)
	}
}

func TestPreviewConversion(t *testing.T) {
	f := newFixture(t)

	preview := f.svc.PreviewConversion(250)
	if !preview.Valid || preview.JYUnits != 2_500_000 {
		t.Fatalf("unexpected preview: %+v", preview)
	}

	preview = f.svc.PreviewConversion(50)
	if preview.Valid || preview.JYUnits != 0 {
		t.Fatalf("expected invalid preview below minimum: %+v", preview)
	}
}

func TestStakeBelowMinimum(t *testing.T) {
	f := newFixture(t)
	ledger.SeedBalances(f.store, f.wallet.ID, 0, 50*chain.UnitsPerToken, 0)

	if _, err := f.svc.Stake(context.Background(), f.userID, 5*chain.UnitsPerToken, ""); !errors.Is(err, ErrBelowMinimum) {
		t.Fatalf("expected ErrBelowMinimum, got %v", err)
	}
}

func TestStakeInsufficientBalance(t *testing.T) {
	f := newFixture(t)
	ledger.SeedBalances(f.store, f.wallet.ID, 0, 5*chain.UnitsPerToken, 0)

	if _, err := f.svc.Stake(context.Background(), f.userID, 20*chain.UnitsPerToken, ""); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestStakingLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ledger.SeedBalances(f.store, f.wallet.ID, 0, 50*chain.UnitsPerToken, 0)

	res, err := f.svc.Stake(ctx, f.userID, 20*chain.UnitsPerToken, "")
	if err != nil {
		t.Fatalf("stake: %v", err)
	}
	if res.JoyTokens != 30*chain.UnitsPerToken || res.StakedBalance != 20*chain.UnitsPerToken {
		t.Fatalf("unexpected balances after stake: %+v", res)
	}

	// Unstake without a prior request is rejected.
	if _, err := f.svc.Unstake(ctx, f.userID, ""); !errors.Is(err, ErrUnstakeNotRequested) {
		t.Fatalf("expected ErrUnstakeNotRequested, got %v", err)
	}

	req, err := f.svc.RequestUnstake(ctx, f.userID)
	if err != nil {
		t.Fatalf("request unstake: %v", err)
	}
	wantUnlock := f.clock.Now().Add(chain.CooldownPeriod)
	if !req.UnlockTime.Equal(wantUnlock) {
		t.Fatalf("expected unlock at %s, got %s", wantUnlock, req.UnlockTime)
	}

	// One second shy of the unlock is still inside the cooldown window.
	f.clock.Advance(chain.CooldownPeriod - time.Second)
	if _, err := f.svc.Unstake(ctx, f.userID, ""); !errors.Is(err, ErrCooldownActive) {
		t.Fatalf("expected ErrCooldownActive, got %v", err)
	}

	// Exactly at the unlock time the unstake goes through.
	f.clock.Advance(time.Second)
	out, err := f.svc.Unstake(ctx, f.userID, "")
	if err != nil {
		t.Fatalf("unstake: %v", err)
	}
	if out.PrincipalUnits != 20*chain.UnitsPerToken {
		t.Fatalf("expected 20 JY principal, got %d", out.PrincipalUnits)
	}

	w := f.walletNow(t)
	if w.StakedBalance != 0 || w.JoyTokens != 50*chain.UnitsPerToken {
		t.Fatalf("expected all JY back to liquid, got %+v", w)
	}
}

func TestRequestUnstakeWithoutStake(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.RequestUnstake(context.Background(), f.userID); !errors.Is(err, ErrNoStake) {
		t.Fatalf("expected ErrNoStake, got %v", err)
	}
}

func TestUnstakeIncludesPendingRewards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ledger.SeedBalances(f.store, f.wallet.ID, 0, 20*chain.UnitsPerToken, 0)

	if _, err := f.svc.Stake(ctx, f.userID, 20*chain.UnitsPerToken, ""); err != nil {
		t.Fatalf("stake: %v", err)
	}
	beneficiary := chain.BeneficiaryAddress(f.wallet.ID)
	chain.SetPendingRewards(f.mem, beneficiary, 3*chain.UnitsPerToken)

	if _, err := f.svc.RequestUnstake(ctx, f.userID); err != nil {
		t.Fatalf("request unstake: %v", err)
	}
	f.clock.Advance(chain.CooldownPeriod + time.Second)

	out, err := f.svc.Unstake(ctx, f.userID, "")
	if err != nil {
		t.Fatalf("unstake: %v", err)
	}
	if out.RewardUnits != 3*chain.UnitsPerToken {
		t.Fatalf("expected 3 JY rewards, got %d", out.RewardUnits)
	}
	if w := f.walletNow(t); w.JoyTokens != 23*chain.UnitsPerToken {
		t.Fatalf("expected 23 JY liquid, got %d", w.JoyTokens)
	}
}

func TestUnstakeResultRebuiltFromIntent(t *testing.T) {
	// The postgres store hands metadata back through jsonb, which turns every
	// number into a float64. The rebuilt duplicate result must come out of the
	// intent deltas, not the metadata types.
	raw, err := json.Marshal(map[string]any{
		"principal_units": int64(20 * chain.UnitsPerToken),
		"reward_units":    int64(3 * chain.UnitsPerToken),
	})
	if err != nil {
		t.Fatalf("marshal metadata: %v", err)
	}
	var meta map[string]any
	if err := json.Unmarshal(raw, &meta); err != nil {
		t.Fatalf("unmarshal metadata: %v", err)
	}

	intent := ledger.Intent{
		Status:      ledger.IntentStatusCompleted,
		TxHash:      "0xfeed",
		LiquidDelta: 23 * chain.UnitsPerToken,
		StakedDelta: -20 * chain.UnitsPerToken,
		Metadata:    meta,
	}
	got := unstakeFromIntent(intent)
	if got.PrincipalUnits != 20*chain.UnitsPerToken {
		t.Fatalf("expected 20 JY principal, got %d", got.PrincipalUnits)
	}
	if got.RewardUnits != 3*chain.UnitsPerToken {
		t.Fatalf("expected 3 JY rewards, got %d", got.RewardUnits)
	}
	if got.TxHash != "0xfeed" {
		t.Fatalf("expected original tx hash, got %q", got.TxHash)
	}

	// An unfinished intent rebuilds to nothing.
	intent.Status = ledger.IntentStatusSubmitted
	if got := unstakeFromIntent(intent); got != (UnstakeResult{}) {
		t.Fatalf("expected zero result for unfinished intent, got %+v", got)
	}
}

func TestClaimRewards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ledger.SeedBalances(f.store, f.wallet.ID, 0, 20*chain.UnitsPerToken, 0)

	if _, err := f.svc.Stake(ctx, f.userID, 10*chain.UnitsPerToken, ""); err != nil {
		t.Fatalf("stake: %v", err)
	}

	// Nothing accrued yet.
	if _, err := f.svc.ClaimRewards(ctx, f.userID, ""); !errors.Is(err, ErrNoRewards) {
		t.Fatalf("expected ErrNoRewards, got %v", err)
	}

	beneficiary := chain.BeneficiaryAddress(f.wallet.ID)
	chain.SetPendingRewards(f.mem, beneficiary, 2*chain.UnitsPerToken)

	res, err := f.svc.ClaimRewards(ctx, f.userID, "")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if res.RewardUnits != 2*chain.UnitsPerToken {
		t.Fatalf("expected 2 JY rewards, got %d", res.RewardUnits)
	}
	if w := f.walletNow(t); w.JoyTokens != 12*chain.UnitsPerToken {
		t.Fatalf("expected 12 JY liquid, got %d", w.JoyTokens)
	}

	// A second claim finds nothing.
	if _, err := f.svc.ClaimRewards(ctx, f.userID, ""); !errors.Is(err, ErrNoRewards) {
		t.Fatalf("expected ErrNoRewards on second claim, got %v", err)
	}
}

func TestDepositRevenue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	txHash, err := f.svc.DepositRevenue(ctx, 100*chain.UnitsPerToken, "ad_revenue", "")
	if err != nil {
		t.Fatalf("deposit revenue: %v", err)
	}
	if txHash == "" {
		t.Fatalf("expected tx hash")
	}

	status, err := f.svc.YieldPoolStatus(ctx)
	if err != nil {
		t.Fatalf("yield pool: %v", err)
	}
	if chain.FromWei(status.TotalDeposited) != 100*chain.UnitsPerToken {
		t.Fatalf("expected 100 JY deposited, got %d", chain.FromWei(status.TotalDeposited))
	}

	events := ledger.AuditEvents(f.store)
	if len(events) == 0 {
		t.Fatalf("expected an audit event for the deposit")
	}

	if _, err := f.svc.DepositRevenue(ctx, 0, "ad_revenue", ""); !errors.Is(err, ErrBelowMinimum) {
		t.Fatalf("expected ErrBelowMinimum for zero amount, got %v", err)
	}
}

func TestStakeInfoView(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ledger.SeedBalances(f.store, f.wallet.ID, 0, 20*chain.UnitsPerToken, 0)

	if _, err := f.svc.Stake(ctx, f.userID, 15*chain.UnitsPerToken, ""); err != nil {
		t.Fatalf("stake: %v", err)
	}

	info, err := f.svc.StakeInfo(ctx, f.userID)
	if err != nil {
		t.Fatalf("stake info: %v", err)
	}
	if info.AmountUnits != 15*chain.UnitsPerToken {
		t.Fatalf("expected 15 JY staked, got %d", info.AmountUnits)
	}
	if !info.UnstakeUnlockTime.IsZero() {
		t.Fatalf("unlock time should be unset before a request")
	}
}

func TestFormatUnits(t *testing.T) {
	cases := []struct {
		units int64
		want  string
	}{
		{0, "0"},
		{chain.UnitsPerToken, "1"},
		{2_500_000, "2.500000"},
		{10_000, "0.010000"},
	}
	for _, tc := range cases {
		if got := FormatUnits(tc.units); got != tc.want {
			t.Fatalf("FormatUnits(%d) = %s, want %s", tc.units, got, tc.want)
		}
	}
}
