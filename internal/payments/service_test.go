package payments

import (
    "context"
    "errors"
    "testing"

    "github.com/google/uuid"

    "github.com/joy-platform/joy_token/internal/ledger"
    "github.com/joy-platform/joy_token/internal/notification"
    "github.com/joy-platform/joy_token/internal/wallet"
)

type testNotifier struct {
    last notification.Message
}

func (n *testNotifier) Send(_ context.Context, msg notification.Message) error {
    n.last = msg
    return nil
}

func TestTransferSuccess(t *testing.T) {
    store := ledger.NewInMemory()
    walletSvc := wallet.NewService(store)
    notifier := &testNotifier{}
    svc := NewService(store, walletSvc, notifier)

    ctx := context.Background()
    from, _ := walletSvc.Create(ctx, uuid.NewString())
    to, _ := walletSvc.Create(ctx, uuid.NewString())

    ledger.SeedBalances(store, from.ID, 0, 10_000_000, 0)

    res, err := svc.Transfer(ctx, TransferInput{FromWalletID: from.ID, ToWalletID: to.ID, AmountUnits: 2_000_000, ClientTxID: "abc"})
    if err != nil {
        t.Fatalf("transfer failed: %v", err)
    }

    if res.FromBalance != 8_000_000 || res.ToBalance != 2_000_000 {
        t.Fatalf("unexpected balances: %+v", res)
    }

    if notifier.last.Kind != notification.KindTransfer {
        t.Fatalf("expected notification to be sent")
    }
}

func TestTransferInsufficientFunds(t *testing.T) {
    store := ledger.NewInMemory()
    walletSvc := wallet.NewService(store)
    svc := NewService(store, walletSvc, nil)

    ctx := context.Background()
    from, _ := walletSvc.Create(ctx, uuid.NewString())
    to, _ := walletSvc.Create(ctx, uuid.NewString())

    if _, err := svc.Transfer(ctx, TransferInput{FromWalletID: from.ID, ToWalletID: to.ID, AmountUnits: 1_000_000, ClientTxID: "abc"}); !errors.Is(err, ledger.ErrInsufficientFunds) {
        t.Fatalf("expected insufficient funds, got %v", err)
    }
}

func TestTransferNotOwner(t *testing.T) {
    store := ledger.NewInMemory()
    walletSvc := wallet.NewService(store)
    svc := NewService(store, walletSvc, nil)

    ctx := context.Background()
    from, _ := walletSvc.Create(ctx, uuid.NewString())
    to, _ := walletSvc.Create(ctx, uuid.NewString())
    ledger.SeedBalances(store, from.ID, 0, 5_000_000, 0)

    _, err := svc.Transfer(ctx, TransferInput{
        FromWalletID:    from.ID,
        ToWalletID:      to.ID,
        AmountUnits:     1_000_000,
        ClientTxID:      "abc",
        RequestorUserID: uuid.NewString(),
    })
    if !errors.Is(err, ErrNotOwner) {
        t.Fatalf("expected ErrNotOwner, got %v", err)
    }
}

func TestTransferDuplicateClientTxID(t *testing.T) {
    store := ledger.NewInMemory()
    walletSvc := wallet.NewService(store)
    svc := NewService(store, walletSvc, nil)

    ctx := context.Background()
    from, _ := walletSvc.Create(ctx, uuid.NewString())
    to, _ := walletSvc.Create(ctx, uuid.NewString())
    ledger.SeedBalances(store, from.ID, 0, 5_000_000, 0)

    if _, err := svc.Transfer(ctx, TransferInput{FromWalletID: from.ID, ToWalletID: to.ID, AmountUnits: 1_000_000, ClientTxID: "dup"}); err != nil {
        t.Fatalf("first transfer: %v", err)
    }
    if _, err := svc.Transfer(ctx, TransferInput{FromWalletID: from.ID, ToWalletID: to.ID, AmountUnits: 1_000_000, ClientTxID: "dup"}); !errors.Is(err, ledger.ErrDuplicateTransaction) {
        t.Fatalf("expected duplicate transaction, got %v", err)
    }
}
