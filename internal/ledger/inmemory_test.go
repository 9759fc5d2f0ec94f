package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestWallet(t *testing.T, store Store) Wallet {
	t.Helper()
	w := Wallet{ID: uuid.NewString(), UserID: uuid.NewString(), CreatedAt: time.Now().UTC()}
	if err := store.CreateWallet(context.Background(), w); err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	return w
}

func TestCompleteIntentAppliesDeltasOnce(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	w := newTestWallet(t, store)
	SeedBalances(store, w.ID, 1_000, 0, 0)

	intent, err := store.CreateIntent(ctx, Intent{
		ID:          uuid.NewString(),
		Kind:        IntentKindConversion,
		ClientTxID:  "c1",
		WalletID:    w.ID,
		UserID:      w.UserID,
		CEDelta:     -1_000,
		LiquidDelta: 10_000_000,
		Amount:      10_000_000,
	})
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}
	if err := store.MarkIntentConfirmed(ctx, intent.ID, "0xabc"); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	updated, err := store.CompleteIntent(ctx, intent.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if updated.CEPoints != 0 || updated.JoyTokens != 10_000_000 {
		t.Fatalf("unexpected balances: %+v", updated)
	}

	// Completing again must not double-apply.
	if _, err := store.CompleteIntent(ctx, intent.ID); !errors.Is(err, ErrIntentCompleted) {
		t.Fatalf("expected ErrIntentCompleted, got %v", err)
	}
	w2, _ := store.WalletByID(ctx, w.ID)
	if w2.JoyTokens != 10_000_000 {
		t.Fatalf("balance double-applied: %+v", w2)
	}

	txs, _ := store.Transactions(ctx, w.ID, 10)
	if len(txs) != 1 || txs[0].ID != intent.ID {
		t.Fatalf("expected one ledger row reusing intent id, got %+v", txs)
	}
}

func TestCompleteIntentRequiresConfirmation(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	w := newTestWallet(t, store)

	intent, err := store.CreateIntent(ctx, Intent{
		ID:         uuid.NewString(),
		Kind:       IntentKindStake,
		ClientTxID: "c1",
		WalletID:   w.ID,
		UserID:     w.UserID,
	})
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}

	if _, err := store.CompleteIntent(ctx, intent.ID); !errors.Is(err, ErrIntentNotConfirmable) {
		t.Fatalf("expected ErrIntentNotConfirmable, got %v", err)
	}
}

func TestCreateIntentDeduplicates(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	w := newTestWallet(t, store)

	first, err := store.CreateIntent(ctx, Intent{
		ID:         uuid.NewString(),
		Kind:       IntentKindStake,
		ClientTxID: "same",
		WalletID:   w.ID,
	})
	if err != nil {
		t.Fatalf("first intent: %v", err)
	}

	dup, err := store.CreateIntent(ctx, Intent{
		ID:         uuid.NewString(),
		Kind:       IntentKindStake,
		ClientTxID: "same",
		WalletID:   w.ID,
	})
	if !errors.Is(err, ErrDuplicateTransaction) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	if dup.ID != first.ID {
		t.Fatalf("duplicate should return the original intent")
	}

	// Same client id under a different kind is a distinct operation.
	if _, err := store.CreateIntent(ctx, Intent{
		ID:         uuid.NewString(),
		Kind:       IntentKindConversion,
		ClientTxID: "same",
		WalletID:   w.ID,
	}); err != nil {
		t.Fatalf("different kind should not collide: %v", err)
	}
}

func TestStalledIntents(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	w := newTestWallet(t, store)

	pending, _ := store.CreateIntent(ctx, Intent{ID: uuid.NewString(), Kind: IntentKindStake, ClientTxID: "a", WalletID: w.ID})
	submitted, _ := store.CreateIntent(ctx, Intent{ID: uuid.NewString(), Kind: IntentKindStake, ClientTxID: "b", WalletID: w.ID})
	_ = store.MarkIntentSubmitted(ctx, submitted.ID, "0x1")
	confirmed, _ := store.CreateIntent(ctx, Intent{ID: uuid.NewString(), Kind: IntentKindStake, ClientTxID: "c", WalletID: w.ID})
	_ = store.MarkIntentConfirmed(ctx, confirmed.ID, "0x2")
	failed, _ := store.CreateIntent(ctx, Intent{ID: uuid.NewString(), Kind: IntentKindStake, ClientTxID: "d", WalletID: w.ID})
	_ = store.MarkIntentFailed(ctx, failed.ID, "boom")

	stalled, err := store.StalledIntents(ctx, time.Now().UTC().Add(time.Minute), 10)
	if err != nil {
		t.Fatalf("stalled: %v", err)
	}
	got := map[string]bool{}
	for _, intent := range stalled {
		got[intent.ID] = true
	}
	if !got[pending.ID] || !got[submitted.ID] || !got[confirmed.ID] {
		t.Fatalf("expected pending, submitted and confirmed intents, got %+v", stalled)
	}
	if got[failed.ID] {
		t.Fatalf("failed intents are terminal and must not be swept")
	}
}

func TestTransferMovesLiquidOnly(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	from := newTestWallet(t, store)
	to := newTestWallet(t, store)
	SeedBalances(store, from.ID, 0, 5_000_000, 3_000_000)

	res, err := store.Transfer(ctx, from.ID, to.ID, 4_000_000, "t1")
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if res.FromBalance != 1_000_000 || res.ToBalance != 4_000_000 {
		t.Fatalf("unexpected balances: %+v", res)
	}

	// Staked balance cannot back a transfer.
	if _, err := store.Transfer(ctx, from.ID, to.ID, 2_000_000, "t2"); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
}
