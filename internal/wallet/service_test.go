package wallet

import (
    "context"
    "testing"

    "github.com/google/uuid"

    "github.com/joy-platform/joy_token/internal/ledger"
)

func TestServiceCreateAndBalances(t *testing.T) {
    store := ledger.NewInMemory()
    svc := NewService(store)

    ctx := context.Background()
    ownerID := uuid.NewString()
    w, err := svc.Create(ctx, ownerID)
    if err != nil {
        t.Fatalf("create wallet: %v", err)
    }
    if w.Address == "" {
        t.Fatalf("expected derived chain address")
    }

    fetched, err := svc.Get(ctx, w.ID)
    if err != nil {
        t.Fatalf("get wallet: %v", err)
    }
    if fetched.ID != w.ID || fetched.UserID != ownerID {
        t.Fatalf("expected wallet %s owned by %s, got %+v", w.ID, ownerID, fetched)
    }

    ledger.SeedBalances(store, w.ID, 500, 2_500_000, 1_000_000)

    bal, err := svc.Balances(ctx, w.ID)
    if err != nil {
        t.Fatalf("balances: %v", err)
    }
    if bal.CEPoints != 500 || bal.JoyTokens != 2_500_000 || bal.StakedBalance != 1_000_000 {
        t.Fatalf("unexpected balances: %+v", bal)
    }
    if bal.TotalBalance != 3_500_000 {
        t.Fatalf("expected total 3500000, got %d", bal.TotalBalance)
    }
}

func TestCreditCE(t *testing.T) {
    store := ledger.NewInMemory()
    svc := NewService(store)

    ctx := context.Background()
    ownerID := uuid.NewString()
    w, err := svc.Create(ctx, ownerID)
    if err != nil {
        t.Fatalf("create wallet: %v", err)
    }

    updated, err := svc.CreditCE(ctx, ownerID, 250, "article engagement")
    if err != nil {
        t.Fatalf("credit ce: %v", err)
    }
    if updated.CEPoints != 250 {
        t.Fatalf("expected 250 CE points, got %d", updated.CEPoints)
    }

    txs, err := svc.Transactions(ctx, w.ID, 10)
    if err != nil {
        t.Fatalf("transactions: %v", err)
    }
    if len(txs) != 1 || txs[0].Type != ledger.TxTypeCEAward {
        t.Fatalf("expected one CE award row, got %+v", txs)
    }

    if _, err := svc.CreditCE(ctx, ownerID, 0, "noop"); err != ErrInvalidAmount {
        t.Fatalf("expected ErrInvalidAmount, got %v", err)
    }
}
