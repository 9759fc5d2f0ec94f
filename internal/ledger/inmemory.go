package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type inMemoryStore struct {
	mu           sync.RWMutex
	wallets      map[string]Wallet
	transactions []Transaction
	intents      map[string]Intent
	intentByKey  map[string]string // kind + ":" + clientTxID -> intent id
	audits       []AuditEvent
}

// NewInMemory creates a concurrency-safe in-memory store useful for unit
// tests and Redis/Postgres-less development mode.
func NewInMemory() Store {
	return &inMemoryStore{
		wallets:     make(map[string]Wallet),
		intents:     make(map[string]Intent),
		intentByKey: make(map[string]string),
	}
}

func (s *inMemoryStore) CreateWallet(_ context.Context, wallet Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.wallets[wallet.ID]; exists {
		return fmt.Errorf("wallet exists")
	}
	wallet.TotalBalance = wallet.JoyTokens + wallet.StakedBalance
	s.wallets[wallet.ID] = wallet
	return nil
}

func (s *inMemoryStore) WalletByID(_ context.Context, id string) (Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wallet, ok := s.wallets[id]
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	return wallet, nil
}

func (s *inMemoryStore) WalletByUser(_ context.Context, userID string) (Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, wallet := range s.wallets {
		if wallet.UserID == userID {
			return wallet, nil
		}
	}
	return Wallet{}, ErrWalletNotFound
}

func (s *inMemoryStore) CreditCEPoints(_ context.Context, walletID string, points int64, reason string) (Wallet, error) {
	if points <= 0 {
		return Wallet{}, fmt.Errorf("points must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	wallet, ok := s.wallets[walletID]
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	now := time.Now().UTC()
	wallet.CEPoints += points
	wallet.LastTransactionAt = now
	wallet.UpdatedAt = now
	s.wallets[walletID] = wallet

	s.transactions = append(s.transactions, Transaction{
		ID:        uuid.NewString(),
		WalletID:  walletID,
		Type:      TxTypeCEAward,
		Amount:    points,
		Currency:  "CE",
		Status:    TxStatusCompleted,
		Metadata:  map[string]any{"reason": reason},
		CreatedAt: now,
	})
	s.audits = append(s.audits, AuditEvent{
		ID:        uuid.NewString(),
		Type:      AuditCEAward,
		Action:    "CE_POINTS_CREDITED",
		UserID:    wallet.UserID,
		Details:   map[string]any{"points": points, "reason": reason},
		CreatedAt: now,
	})
	return wallet, nil
}

func (s *inMemoryStore) Transactions(_ context.Context, walletID string, limit int) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = 50
	}
	var out []Transaction
	for _, tx := range s.transactions {
		if tx.WalletID == walletID {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *inMemoryStore) Transfer(_ context.Context, fromWalletID, toWalletID string, units int64, clientTxID string) (TransferResult, error) {
	if units <= 0 {
		return TransferResult{}, fmt.Errorf("amount must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tx := range s.transactions {
		if tx.Type == TxTypeTransfer && tx.ClientTxID == clientTxID {
			return TransferResult{
				TransactionID: tx.ID,
				FromBalance:   s.wallets[fromWalletID].JoyTokens,
				ToBalance:     s.wallets[toWalletID].JoyTokens,
			}, ErrDuplicateTransaction
		}
	}

	from, ok := s.wallets[fromWalletID]
	if !ok {
		return TransferResult{}, ErrWalletNotFound
	}
	to, ok := s.wallets[toWalletID]
	if !ok {
		return TransferResult{}, ErrWalletNotFound
	}
	if from.JoyTokens < units {
		return TransferResult{}, ErrInsufficientFunds
	}

	now := time.Now().UTC()
	from.JoyTokens -= units
	from.TotalBalance -= units
	from.LastTransactionAt = now
	from.UpdatedAt = now
	to.JoyTokens += units
	to.TotalBalance += units
	to.LastTransactionAt = now
	to.UpdatedAt = now
	s.wallets[fromWalletID] = from
	s.wallets[toWalletID] = to

	tx := Transaction{
		ID:         uuid.NewString(),
		WalletID:   fromWalletID,
		Type:       TxTypeTransfer,
		Amount:     units,
		Currency:   "JY",
		Status:     TxStatusCompleted,
		ClientTxID: clientTxID,
		Metadata:   map[string]any{"from_wallet_id": fromWalletID, "to_wallet_id": toWalletID},
		CreatedAt:  now,
	}
	s.transactions = append(s.transactions, tx)
	return TransferResult{TransactionID: tx.ID, FromBalance: from.JoyTokens, ToBalance: to.JoyTokens}, nil
}

func (s *inMemoryStore) CreateIntent(_ context.Context, intent Intent) (Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := intent.Kind + ":" + intent.ClientTxID
	if existingID, exists := s.intentByKey[key]; exists {
		return s.intents[existingID], ErrDuplicateTransaction
	}

	now := time.Now().UTC()
	intent.Status = IntentStatusPending
	intent.CreatedAt = now
	intent.UpdatedAt = now
	s.intents[intent.ID] = intent
	s.intentByKey[key] = intent.ID
	return intent, nil
}

func (s *inMemoryStore) IntentByID(_ context.Context, id string) (Intent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	intent, ok := s.intents[id]
	if !ok {
		return Intent{}, ErrIntentNotFound
	}
	return intent, nil
}

func (s *inMemoryStore) MarkIntentSubmitted(_ context.Context, id, txHash string) error {
	return s.advance(id, IntentStatusSubmitted, txHash, "", IntentStatusPending)
}

func (s *inMemoryStore) MarkIntentConfirmed(_ context.Context, id, txHash string) error {
	return s.advance(id, IntentStatusConfirmed, txHash, "", IntentStatusPending, IntentStatusSubmitted)
}

func (s *inMemoryStore) MarkIntentFailed(_ context.Context, id, reason string) error {
	return s.advance(id, IntentStatusFailed, "", reason,
		IntentStatusPending, IntentStatusSubmitted, IntentStatusConfirmed)
}

func (s *inMemoryStore) advance(id, status, txHash, reason string, from ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	intent, ok := s.intents[id]
	if !ok {
		return ErrIntentNotFound
	}
	allowed := false
	for _, f := range from {
		if intent.Status == f {
			allowed = true
			break
		}
	}
	if !allowed {
		return ErrIntentNotConfirmable
	}
	intent.Status = status
	if txHash != "" {
		intent.TxHash = txHash
	}
	intent.FailureReason = reason
	intent.UpdatedAt = time.Now().UTC()
	s.intents[id] = intent
	return nil
}

func (s *inMemoryStore) StalledIntents(_ context.Context, olderThan time.Time, limit int) ([]Intent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = 50
	}
	var out []Intent
	for _, intent := range s.intents {
		switch intent.Status {
		case IntentStatusPending, IntentStatusSubmitted, IntentStatusConfirmed:
			if intent.UpdatedAt.Before(olderThan) {
				out = append(out, intent)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *inMemoryStore) CompleteIntent(_ context.Context, id string) (Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	intent, ok := s.intents[id]
	if !ok {
		return Wallet{}, ErrIntentNotFound
	}
	switch intent.Status {
	case IntentStatusConfirmed:
	case IntentStatusCompleted:
		return Wallet{}, ErrIntentCompleted
	default:
		return Wallet{}, ErrIntentNotConfirmable
	}

	now := time.Now().UTC()
	var wallet Wallet
	if intent.WalletID != "" {
		wallet, ok = s.wallets[intent.WalletID]
		if !ok {
			return Wallet{}, ErrWalletNotFound
		}
		if wallet.CEPoints+intent.CEDelta < 0 ||
			wallet.JoyTokens+intent.LiquidDelta < 0 ||
			wallet.StakedBalance+intent.StakedDelta < 0 {
			return Wallet{}, ErrInsufficientFunds
		}
		wallet.CEPoints += intent.CEDelta
		wallet.JoyTokens += intent.LiquidDelta
		wallet.StakedBalance += intent.StakedDelta
		wallet.TotalBalance = wallet.JoyTokens + wallet.StakedBalance
		wallet.LastTransactionAt = now
		wallet.UpdatedAt = now
		s.wallets[intent.WalletID] = wallet
	}

	tx, audit := intentArtifacts(intent, now)
	if tx != nil {
		s.transactions = append(s.transactions, *tx)
	}
	if audit != nil {
		audit.ID = uuid.NewString()
		s.audits = append(s.audits, *audit)
	}

	intent.Status = IntentStatusCompleted
	intent.UpdatedAt = now
	s.intents[id] = intent
	return wallet, nil
}

func (s *inMemoryStore) RecordAudit(_ context.Context, event AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	event.ID = uuid.NewString()
	event.CreatedAt = time.Now().UTC()
	s.audits = append(s.audits, event)
	return nil
}
