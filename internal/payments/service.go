package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/joy-platform/joy_token/internal/ledger"
	"github.com/joy-platform/joy_token/internal/notification"
	"github.com/joy-platform/joy_token/internal/token"
	"github.com/joy-platform/joy_token/internal/wallet"
)

// Service posts off-chain JY transfers between platform wallets. Transfers
// move liquid balance only; staked JY cannot be transferred.
type Service struct {
	store         ledger.Store
	walletService *wallet.Service
	notifier      notification.Notifier
}

// NewService constructs a payment service.
func NewService(store ledger.Store, walletService *wallet.Service, notifier notification.Notifier) *Service {
	return &Service{store: store, walletService: walletService, notifier: notifier}
}

// TransferInput captures the data needed to move JY between wallets.
type TransferInput struct {
	FromWalletID    string
	ToWalletID      string
	AmountUnits     int64
	ClientTxID      string
	RequestorUserID string
}

// TransferResult describes the ledger outcome of a transfer.
type TransferResult struct {
	TransactionID string
	FromBalance   int64
	ToBalance     int64
	CompletedAt   time.Time
}

// ErrNotOwner indicates the caller does not own the source wallet.
var ErrNotOwner = errors.New("not owner of source wallet")

// Transfer posts a balanced ledger entry between two wallets.
func (s *Service) Transfer(ctx context.Context, input TransferInput) (TransferResult, error) {
	if input.AmountUnits <= 0 {
		return TransferResult{}, fmt.Errorf("amount must be positive")
	}
	if input.ClientTxID == "" {
		input.ClientTxID = uuid.New().String()
	}

	fromWallet, err := s.walletService.Get(ctx, input.FromWalletID)
	if err != nil {
		return TransferResult{}, err
	}
	if input.RequestorUserID != "" && fromWallet.UserID != input.RequestorUserID {
		return TransferResult{}, ErrNotOwner
	}
	toWallet, err := s.walletService.Get(ctx, input.ToWalletID)
	if err != nil {
		return TransferResult{}, err
	}

	res, err := s.store.Transfer(ctx, fromWallet.ID, toWallet.ID, input.AmountUnits, input.ClientTxID)
	if err != nil {
		return TransferResult{}, err
	}

	outcome := TransferResult{
		TransactionID: res.TransactionID,
		FromBalance:   res.FromBalance,
		ToBalance:     res.ToBalance,
		CompletedAt:   time.Now().UTC(),
	}

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindTransfer,
			Destination: toWallet.UserID,
			Body:        fmt.Sprintf("You received %s JY from wallet %s", token.FormatUnits(input.AmountUnits), input.FromWalletID),
		})
	}

	return outcome, nil
}
