package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrWalletNotFound occurs when no wallet exists for the requested id or user.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrInsufficientFunds occurs when applying a posting would drive a balance
	// below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrDuplicateTransaction indicates the provided client transaction
	// identifier already exists and the operation should be treated as
	// idempotent.
	ErrDuplicateTransaction = errors.New("duplicate transaction")

	// ErrIntentNotFound occurs when no intent exists for the requested id.
	ErrIntentNotFound = errors.New("intent not found")

	// ErrIntentCompleted indicates the intent's posting was already applied, so
	// a replay is a no-op.
	ErrIntentCompleted = errors.New("intent already completed")

	// ErrIntentNotConfirmable indicates the intent is in a state that does not
	// permit completion (failed, or never confirmed).
	ErrIntentNotConfirmable = errors.New("intent not confirmable")
)

// Transaction types recorded on the immutable ledger.
const (
	TxTypeConversion = "CONVERSION"
	TxTypeStake      = "STAKE"
	TxTypeUnstake    = "UNSTAKE"
	TxTypeReward     = "REWARD"
	TxTypeTransfer   = "TRANSFER"
	TxTypeCEAward    = "CE_AWARD"
)

// TxStatusCompleted is the only status a ledger row is ever written with:
// rows are created after the paired chain operation is confirmed, never before.
const TxStatusCompleted = "COMPLETED"

// Intent lifecycle states. An intent is persisted before the chain call and
// advanced as the operation progresses, so a crash at any point leaves a
// record the reconciler can act on.
const (
	IntentStatusPending   = "PENDING"
	IntentStatusSubmitted = "SUBMITTED"
	IntentStatusConfirmed = "CONFIRMED"
	IntentStatusCompleted = "COMPLETED"
	IntentStatusFailed    = "FAILED"
)

// Intent kinds, one per chain-mutating operation.
const (
	IntentKindConversion     = "conversion"
	IntentKindStake          = "stake"
	IntentKindUnstakeRequest = "unstake_request"
	IntentKindUnstake        = "unstake"
	IntentKindClaim          = "claim_rewards"
	IntentKindRevenue        = "revenue_deposit"
)

// Audit event types.
const (
	AuditTokenConversion  = "TOKEN_CONVERSION"
	AuditRevenueDeposit   = "REVENUE_DEPOSIT"
	AuditUnstakeRequested = "UNSTAKE_REQUESTED"
	AuditCEAward          = "CE_AWARD"
)

// Wallet is a user's balance record. JY amounts are fixed-point units of one
// millionth of a token; CE points are whole. TotalBalance is maintained by the
// store as JoyTokens + StakedBalance.
type Wallet struct {
	ID                string
	UserID            string
	Address           string
	CEPoints          int64
	JoyTokens         int64
	StakedBalance     int64
	TotalBalance      int64
	LastTransactionAt time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Transaction is an immutable ledger row describing one balance-affecting
// operation. Rows derived from an intent reuse the intent's id, which makes
// reconciliation replays naturally idempotent.
type Transaction struct {
	ID         string
	WalletID   string
	Type       string
	Amount     int64
	Currency   string
	Status     string
	TxHash     string
	ClientTxID string
	Metadata   map[string]any
	CreatedAt  time.Time
}

// AuditEvent is an append-only record of an administrative or financial
// action.
type AuditEvent struct {
	ID        string
	Type      string
	Action    string
	UserID    string
	Details   map[string]any
	CreatedAt time.Time
}

// Intent is the durable record of a chain-mutating operation. The balance
// deltas are fixed at creation so the posting can be replayed from the intent
// alone.
type Intent struct {
	ID            string
	Kind          string
	ClientTxID    string
	WalletID      string
	UserID        string
	CEDelta       int64
	LiquidDelta   int64
	StakedDelta   int64
	Amount        int64
	Status        string
	TxHash        string
	FailureReason string
	Metadata      map[string]any
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TransferResult captures the outcome of an off-chain wallet-to-wallet move.
type TransferResult struct {
	TransactionID string
	FromBalance   int64
	ToBalance     int64
}

// Store is the persistence contract implemented by the Postgres and in-memory
// backends. All multi-row writes are atomic.
type Store interface {
	CreateWallet(ctx context.Context, wallet Wallet) error
	WalletByID(ctx context.Context, id string) (Wallet, error)
	WalletByUser(ctx context.Context, userID string) (Wallet, error)
	CreditCEPoints(ctx context.Context, walletID string, points int64, reason string) (Wallet, error)
	Transactions(ctx context.Context, walletID string, limit int) ([]Transaction, error)
	Transfer(ctx context.Context, fromWalletID, toWalletID string, units int64, clientTxID string) (TransferResult, error)

	CreateIntent(ctx context.Context, intent Intent) (Intent, error)
	IntentByID(ctx context.Context, id string) (Intent, error)
	MarkIntentSubmitted(ctx context.Context, id, txHash string) error
	MarkIntentConfirmed(ctx context.Context, id, txHash string) error
	MarkIntentFailed(ctx context.Context, id, reason string) error
	StalledIntents(ctx context.Context, olderThan time.Time, limit int) ([]Intent, error)
	CompleteIntent(ctx context.Context, id string) (Wallet, error)

	RecordAudit(ctx context.Context, event AuditEvent) error
}

// intentArtifacts derives the ledger row and audit event a completed intent
// produces. Both store implementations share it so a reconciler replay writes
// exactly what the original request would have.
func intentArtifacts(intent Intent, now time.Time) (*Transaction, *AuditEvent) {
	var tx *Transaction
	var audit *AuditEvent

	switch intent.Kind {
	case IntentKindConversion:
		tx = &Transaction{
			ID:       intent.ID,
			WalletID: intent.WalletID,
			Type:     TxTypeConversion,
			Amount:   intent.LiquidDelta,
			Currency: "JY",
		}
		audit = &AuditEvent{
			Type:   AuditTokenConversion,
			Action: "CE_TO_JY_CONVERSION",
			UserID: intent.UserID,
			Details: map[string]any{
				"ce_points": -intent.CEDelta,
				"jy_units":  intent.LiquidDelta,
				"tx_hash":   intent.TxHash,
			},
		}
	case IntentKindStake:
		tx = &Transaction{
			ID:       intent.ID,
			WalletID: intent.WalletID,
			Type:     TxTypeStake,
			Amount:   intent.StakedDelta,
			Currency: "JY",
		}
	case IntentKindUnstake:
		tx = &Transaction{
			ID:       intent.ID,
			WalletID: intent.WalletID,
			Type:     TxTypeUnstake,
			Amount:   intent.LiquidDelta,
			Currency: "JY",
		}
	case IntentKindClaim:
		tx = &Transaction{
			ID:       intent.ID,
			WalletID: intent.WalletID,
			Type:     TxTypeReward,
			Amount:   intent.LiquidDelta,
			Currency: "JY",
		}
	case IntentKindUnstakeRequest:
		audit = &AuditEvent{
			Type:    AuditUnstakeRequested,
			Action:  "STAKE_COOLDOWN_STARTED",
			UserID:  intent.UserID,
			Details: map[string]any{"tx_hash": intent.TxHash},
		}
	case IntentKindRevenue:
		audit = &AuditEvent{
			Type:   AuditRevenueDeposit,
			Action: "JY_YIELD_FUNDING",
			Details: map[string]any{
				"jy_units": intent.Amount,
				"source":   intent.Metadata["source"],
				"tx_hash":  intent.TxHash,
			},
		}
	}

	if tx != nil {
		tx.Status = TxStatusCompleted
		tx.TxHash = intent.TxHash
		tx.ClientTxID = intent.ClientTxID
		tx.Metadata = intent.Metadata
		tx.CreatedAt = now
	}
	if audit != nil {
		audit.CreatedAt = now
	}
	return tx, audit
}
