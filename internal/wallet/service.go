package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/joy-platform/joy_token/internal/chain"
	"github.com/joy-platform/joy_token/internal/ledger"
)

// ErrInvalidAmount is returned for non-positive CE point awards.
var ErrInvalidAmount = errors.New("amount must be positive")

// Service exposes wallet operations backed by the ledger store.
type Service struct {
	store ledger.Store
}

// NewService builds a wallet service instance.
func NewService(store ledger.Store) *Service {
	return &Service{store: store}
}

// Create provisions a wallet for the given owner, deriving its bookkeeping
// chain address from the wallet id.
func (s *Service) Create(ctx context.Context, ownerID string) (ledger.Wallet, error) {
	if _, err := uuid.Parse(ownerID); err != nil {
		return ledger.Wallet{}, err
	}

	now := time.Now().UTC()
	w := ledger.Wallet{
		ID:        uuid.New().String(),
		UserID:    ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	w.Address = chain.BeneficiaryAddress(w.ID).Hex()

	if err := s.store.CreateWallet(ctx, w); err != nil {
		return ledger.Wallet{}, err
	}
	return w, nil
}

// Get retrieves a wallet by identifier.
func (s *Service) Get(ctx context.Context, id string) (ledger.Wallet, error) {
	return s.store.WalletByID(ctx, id)
}

// GetByOwner retrieves the wallet belonging to a user.
func (s *Service) GetByOwner(ctx context.Context, ownerID string) (ledger.Wallet, error) {
	return s.store.WalletByUser(ctx, ownerID)
}

// Balances returns the wallet's current holdings.
func (s *Service) Balances(ctx context.Context, id string) (Balances, error) {
	w, err := s.store.WalletByID(ctx, id)
	if err != nil {
		return Balances{}, err
	}
	return Balances{
		WalletID:      w.ID,
		CEPoints:      w.CEPoints,
		JoyTokens:     w.JoyTokens,
		StakedBalance: w.StakedBalance,
		TotalBalance:  w.TotalBalance,
		AsOf:          time.Now().UTC(),
	}, nil
}

// CreditCE awards engagement points to a user's wallet.
func (s *Service) CreditCE(ctx context.Context, userID string, points int64, reason string) (ledger.Wallet, error) {
	if points <= 0 {
		return ledger.Wallet{}, ErrInvalidAmount
	}
	w, err := s.store.WalletByUser(ctx, userID)
	if err != nil {
		return ledger.Wallet{}, err
	}
	return s.store.CreditCEPoints(ctx, w.ID, points, reason)
}

// Transactions lists the wallet's most recent ledger rows.
func (s *Service) Transactions(ctx context.Context, walletID string, limit int) ([]ledger.Transaction, error) {
	return s.store.Transactions(ctx, walletID, limit)
}
