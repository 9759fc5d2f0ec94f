package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists wallets, ledger rows, intents and audit events in
// PostgreSQL. Per-wallet serialization inside a posting relies on
// SELECT ... FOR UPDATE row locks spanning the balance check through commit.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const walletColumns = `id, user_id, address, ce_points, joy_tokens, staked_balance, total_balance, last_transaction_at, created_at, updated_at`

// CreateWallet inserts a wallet record.
func (s *PostgresStore) CreateWallet(ctx context.Context, wallet Wallet) error {
	walletID, err := uuid.Parse(wallet.ID)
	if err != nil {
		return err
	}
	userID, err := uuid.Parse(wallet.UserID)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `INSERT INTO wallets (id, user_id, address, ce_points, joy_tokens, staked_balance, total_balance, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
		walletID, userID, wallet.Address, wallet.CEPoints, wallet.JoyTokens, wallet.StakedBalance,
		wallet.JoyTokens+wallet.StakedBalance, wallet.CreatedAt.UTC())
	return err
}

// WalletByID fetches a wallet by identifier.
func (s *PostgresStore) WalletByID(ctx context.Context, id string) (Wallet, error) {
	walletID, err := uuid.Parse(id)
	if err != nil {
		return Wallet{}, ErrWalletNotFound
	}
	row := s.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1`, walletID)
	return scanWallet(row)
}

// WalletByUser fetches the wallet owned by the given user.
func (s *PostgresStore) WalletByUser(ctx context.Context, userID string) (Wallet, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return Wallet{}, ErrWalletNotFound
	}
	row := s.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1`, uid)
	return scanWallet(row)
}

// CreditCEPoints atomically awards engagement points to a wallet and records
// the matching ledger row and audit event.
func (s *PostgresStore) CreditCEPoints(ctx context.Context, walletID string, points int64, reason string) (Wallet, error) {
	if points <= 0 {
		return Wallet{}, fmt.Errorf("points must be positive")
	}
	wid, err := uuid.Parse(walletID)
	if err != nil {
		return Wallet{}, ErrWalletNotFound
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Wallet{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	wallet, err := lockWallet(ctx, tx, wid)
	if err != nil {
		return Wallet{}, err
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, `UPDATE wallets SET ce_points = ce_points + $1, last_transaction_at = $2, updated_at = $2 WHERE id = $3`,
		points, now, wid); err != nil {
		return Wallet{}, err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO wallet_transactions (id, wallet_id, type, amount, currency, status, metadata, created_at)
        VALUES ($1, $2, $3, $4, 'CE', $5, $6, $7)`,
		uuid.New(), wid, TxTypeCEAward, points, TxStatusCompleted, map[string]any{"reason": reason}, now); err != nil {
		return Wallet{}, err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO audit_events (id, type, action, user_id, details, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New(), AuditCEAward, "CE_POINTS_CREDITED", nullableUUID(wallet.UserID), map[string]any{"points": points, "reason": reason}, now); err != nil {
		return Wallet{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Wallet{}, err
	}

	return s.WalletByID(ctx, walletID)
}

// Transactions lists the most recent ledger rows for a wallet.
func (s *PostgresStore) Transactions(ctx context.Context, walletID string, limit int) ([]Transaction, error) {
	wid, err := uuid.Parse(walletID)
	if err != nil {
		return nil, ErrWalletNotFound
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `SELECT id, wallet_id, type, amount, currency, status,
        COALESCE(tx_hash, ''), COALESCE(client_tx_id, ''), metadata, created_at
        FROM wallet_transactions WHERE wallet_id = $1 ORDER BY created_at DESC LIMIT $2`, wid, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var t Transaction
		var id, wID uuid.UUID
		var createdAt time.Time
		if err := rows.Scan(&id, &wID, &t.Type, &t.Amount, &t.Currency, &t.Status, &t.TxHash, &t.ClientTxID, &t.Metadata, &createdAt); err != nil {
			return nil, err
		}
		t.ID = id.String()
		t.WalletID = wID.String()
		t.CreatedAt = createdAt.UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}

// Transfer moves liquid JY between two platform wallets. This is pure shadow
// accounting: custody of the pooled funds never changes, so no chain call is
// involved.
func (s *PostgresStore) Transfer(ctx context.Context, fromWalletID, toWalletID string, units int64, clientTxID string) (TransferResult, error) {
	if units <= 0 {
		return TransferResult{}, fmt.Errorf("amount must be positive")
	}
	fromID, err := uuid.Parse(fromWalletID)
	if err != nil {
		return TransferResult{}, ErrWalletNotFound
	}
	toID, err := uuid.Parse(toWalletID)
	if err != nil {
		return TransferResult{}, ErrWalletNotFound
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return TransferResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	// Lock in id order so concurrent opposing transfers cannot deadlock.
	first, second := fromID, toID
	if second.String() < first.String() {
		first, second = second, first
	}
	if _, err := lockWallet(ctx, tx, first); err != nil {
		return TransferResult{}, err
	}
	if _, err := lockWallet(ctx, tx, second); err != nil {
		return TransferResult{}, err
	}

	var existing uuid.UUID
	err = tx.QueryRow(ctx, `SELECT id FROM wallet_transactions WHERE client_tx_id = $1 AND type = $2`,
		clientTxID, TxTypeTransfer).Scan(&existing)
	if err == nil {
		fromWallet, lookErr := walletInTx(ctx, tx, fromID)
		if lookErr != nil {
			return TransferResult{}, lookErr
		}
		toWallet, lookErr := walletInTx(ctx, tx, toID)
		if lookErr != nil {
			return TransferResult{}, lookErr
		}
		return TransferResult{TransactionID: existing.String(), FromBalance: fromWallet.JoyTokens, ToBalance: toWallet.JoyTokens}, ErrDuplicateTransaction
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return TransferResult{}, err
	}

	fromWallet, err := walletInTx(ctx, tx, fromID)
	if err != nil {
		return TransferResult{}, err
	}
	if fromWallet.JoyTokens < units {
		return TransferResult{}, ErrInsufficientFunds
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, `UPDATE wallets SET joy_tokens = joy_tokens - $1, total_balance = total_balance - $1,
        last_transaction_at = $2, updated_at = $2 WHERE id = $3`, units, now, fromID); err != nil {
		return TransferResult{}, err
	}
	if _, err := tx.Exec(ctx, `UPDATE wallets SET joy_tokens = joy_tokens + $1, total_balance = total_balance + $1,
        last_transaction_at = $2, updated_at = $2 WHERE id = $3`, units, now, toID); err != nil {
		return TransferResult{}, err
	}

	txID := uuid.New()
	meta := map[string]any{"from_wallet_id": fromWalletID, "to_wallet_id": toWalletID}
	if _, err := tx.Exec(ctx, `INSERT INTO wallet_transactions (id, wallet_id, type, amount, currency, status, client_tx_id, metadata, created_at)
        VALUES ($1, $2, $3, $4, 'JY', $5, $6, $7, $8)`,
		txID, fromID, TxTypeTransfer, units, TxStatusCompleted, clientTxID, meta, now); err != nil {
		return TransferResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return TransferResult{}, err
	}

	fromAfter, err := s.WalletByID(ctx, fromWalletID)
	if err != nil {
		return TransferResult{}, err
	}
	toAfter, err := s.WalletByID(ctx, toWalletID)
	if err != nil {
		return TransferResult{}, err
	}
	return TransferResult{TransactionID: txID.String(), FromBalance: fromAfter.JoyTokens, ToBalance: toAfter.JoyTokens}, nil
}

// CreateIntent persists a new intent, enforcing one intent per (kind,
// client_tx_id). On a duplicate the existing intent is returned with
// ErrDuplicateTransaction.
func (s *PostgresStore) CreateIntent(ctx context.Context, intent Intent) (Intent, error) {
	intentID, err := uuid.Parse(intent.ID)
	if err != nil {
		return Intent{}, err
	}
	var walletID any
	if intent.WalletID != "" {
		wid, err := uuid.Parse(intent.WalletID)
		if err != nil {
			return Intent{}, ErrWalletNotFound
		}
		walletID = wid
	}

	now := time.Now().UTC()
	_, err = s.db.Exec(ctx, `INSERT INTO token_intents
        (id, kind, client_tx_id, wallet_id, user_id, ce_delta, liquid_delta, staked_delta, amount, status, metadata, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)`,
		intentID, intent.Kind, intent.ClientTxID, walletID, nullableUUID(intent.UserID),
		intent.CEDelta, intent.LiquidDelta, intent.StakedDelta, intent.Amount,
		IntentStatusPending, intent.Metadata, now)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			existing, lookErr := s.intentByClientTxID(ctx, intent.Kind, intent.ClientTxID)
			if lookErr != nil {
				return Intent{}, lookErr
			}
			return existing, ErrDuplicateTransaction
		}
		return Intent{}, err
	}

	intent.Status = IntentStatusPending
	intent.CreatedAt = now
	intent.UpdatedAt = now
	return intent, nil
}

// IntentByID fetches an intent by identifier.
func (s *PostgresStore) IntentByID(ctx context.Context, id string) (Intent, error) {
	intentID, err := uuid.Parse(id)
	if err != nil {
		return Intent{}, ErrIntentNotFound
	}
	row := s.db.QueryRow(ctx, intentQuery+` WHERE id = $1`, intentID)
	return scanIntent(row)
}

// MarkIntentSubmitted records the transaction hash once the chain accepted the
// submission.
func (s *PostgresStore) MarkIntentSubmitted(ctx context.Context, id, txHash string) error {
	return s.advanceIntent(ctx, id, IntentStatusSubmitted, txHash, "", []string{IntentStatusPending})
}

// MarkIntentConfirmed records receipt confirmation.
func (s *PostgresStore) MarkIntentConfirmed(ctx context.Context, id, txHash string) error {
	return s.advanceIntent(ctx, id, IntentStatusConfirmed, txHash, "", []string{IntentStatusPending, IntentStatusSubmitted})
}

// MarkIntentFailed terminates an intent that will never complete.
func (s *PostgresStore) MarkIntentFailed(ctx context.Context, id, reason string) error {
	return s.advanceIntent(ctx, id, IntentStatusFailed, "", reason,
		[]string{IntentStatusPending, IntentStatusSubmitted, IntentStatusConfirmed})
}

func (s *PostgresStore) advanceIntent(ctx context.Context, id, status, txHash, reason string, from []string) error {
	intentID, err := uuid.Parse(id)
	if err != nil {
		return ErrIntentNotFound
	}
	cmd, err := s.db.Exec(ctx, `UPDATE token_intents
        SET status = $1, tx_hash = COALESCE(NULLIF($2, ''), tx_hash), failure_reason = NULLIF($3, ''), updated_at = $4
        WHERE id = $5 AND status = ANY($6)`,
		status, txHash, reason, time.Now().UTC(), intentID, from)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrIntentNotConfirmable
	}
	return nil
}

// StalledIntents returns unfinished intents last touched before the cutoff,
// oldest first.
func (s *PostgresStore) StalledIntents(ctx context.Context, olderThan time.Time, limit int) ([]Intent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, intentQuery+` WHERE status = ANY($1) AND updated_at < $2 ORDER BY updated_at ASC LIMIT $3`,
		[]string{IntentStatusPending, IntentStatusSubmitted, IntentStatusConfirmed}, olderThan.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Intent
	for rows.Next() {
		intent, err := scanIntent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, intent)
	}
	return out, rows.Err()
}

// CompleteIntent applies a confirmed intent's balance deltas and writes its
// ledger row and audit event, all in one transaction. Replaying a completed
// intent returns ErrIntentCompleted without touching anything.
func (s *PostgresStore) CompleteIntent(ctx context.Context, id string) (Wallet, error) {
	intentID, err := uuid.Parse(id)
	if err != nil {
		return Wallet{}, ErrIntentNotFound
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Wallet{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	row := tx.QueryRow(ctx, intentQuery+` WHERE id = $1 FOR UPDATE`, intentID)
	intent, err := scanIntent(row)
	if err != nil {
		return Wallet{}, err
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
		wid, err := uuid.Parse(intent.WalletID)
		if err != nil {
			return Wallet{}, ErrWalletNotFound
		}
		wallet, err = lockWallet(ctx, tx, wid)
		if err != nil {
			return Wallet{}, err
		}
		if wallet.CEPoints+intent.CEDelta < 0 ||
			wallet.JoyTokens+intent.LiquidDelta < 0 ||
			wallet.StakedBalance+intent.StakedDelta < 0 {
			return Wallet{}, ErrInsufficientFunds
		}
		if _, err := tx.Exec(ctx, `UPDATE wallets SET
            ce_points = ce_points + $1,
            joy_tokens = joy_tokens + $2,
            staked_balance = staked_balance + $3,
            total_balance = joy_tokens + $2 + staked_balance + $3,
            last_transaction_at = $4, updated_at = $4
            WHERE id = $5`,
			intent.CEDelta, intent.LiquidDelta, intent.StakedDelta, now, wid); err != nil {
			return Wallet{}, err
		}
	}

	ledgerRow, audit := intentArtifacts(intent, now)
	if ledgerRow != nil {
		if _, err := tx.Exec(ctx, `INSERT INTO wallet_transactions (id, wallet_id, type, amount, currency, status, tx_hash, client_tx_id, metadata, created_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) ON CONFLICT (id) DO NOTHING`,
			uuid.MustParse(ledgerRow.ID), uuid.MustParse(ledgerRow.WalletID), ledgerRow.Type, ledgerRow.Amount,
			ledgerRow.Currency, ledgerRow.Status, ledgerRow.TxHash, nullableString(ledgerRow.ClientTxID),
			ledgerRow.Metadata, now); err != nil {
			return Wallet{}, err
		}
	}
	if audit != nil {
		if _, err := tx.Exec(ctx, `INSERT INTO audit_events (id, type, action, user_id, details, created_at)
            VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.New(), audit.Type, audit.Action, nullableUUID(audit.UserID), audit.Details, now); err != nil {
			return Wallet{}, err
		}
	}

	if _, err := tx.Exec(ctx, `UPDATE token_intents SET status = $1, updated_at = $2 WHERE id = $3`,
		IntentStatusCompleted, now, intentID); err != nil {
		return Wallet{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Wallet{}, err
	}

	if intent.WalletID == "" {
		return Wallet{}, nil
	}
	return s.WalletByID(ctx, intent.WalletID)
}

// RecordAudit appends an audit event.
func (s *PostgresStore) RecordAudit(ctx context.Context, event AuditEvent) error {
	_, err := s.db.Exec(ctx, `INSERT INTO audit_events (id, type, action, user_id, details, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New(), event.Type, event.Action, nullableUUID(event.UserID), event.Details, time.Now().UTC())
	return err
}

const intentQuery = `SELECT id, kind, client_tx_id, wallet_id, COALESCE(user_id::text, ''),
    ce_delta, liquid_delta, staked_delta, amount, status,
    COALESCE(tx_hash, ''), COALESCE(failure_reason, ''), metadata, created_at, updated_at
    FROM token_intents`

func (s *PostgresStore) intentByClientTxID(ctx context.Context, kind, clientTxID string) (Intent, error) {
	row := s.db.QueryRow(ctx, intentQuery+` WHERE kind = $1 AND client_tx_id = $2`, kind, clientTxID)
	return scanIntent(row)
}

func scanIntent(row pgx.Row) (Intent, error) {
	var intent Intent
	var id uuid.UUID
	var walletID *uuid.UUID
	var createdAt, updatedAt time.Time
	if err := row.Scan(&id, &intent.Kind, &intent.ClientTxID, &walletID, &intent.UserID,
		&intent.CEDelta, &intent.LiquidDelta, &intent.StakedDelta, &intent.Amount, &intent.Status,
		&intent.TxHash, &intent.FailureReason, &intent.Metadata, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Intent{}, ErrIntentNotFound
		}
		return Intent{}, err
	}
	intent.ID = id.String()
	if walletID != nil {
		intent.WalletID = walletID.String()
	}
	intent.CreatedAt = createdAt.UTC()
	intent.UpdatedAt = updatedAt.UTC()
	return intent, nil
}

func scanWallet(row pgx.Row) (Wallet, error) {
	var w Wallet
	var id, userID uuid.UUID
	var lastTx *time.Time
	var createdAt, updatedAt time.Time
	if err := row.Scan(&id, &userID, &w.Address, &w.CEPoints, &w.JoyTokens, &w.StakedBalance,
		&w.TotalBalance, &lastTx, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrWalletNotFound
		}
		return Wallet{}, err
	}
	w.ID = id.String()
	w.UserID = userID.String()
	if lastTx != nil {
		w.LastTransactionAt = lastTx.UTC()
	}
	w.CreatedAt = createdAt.UTC()
	w.UpdatedAt = updatedAt.UTC()
	return w, nil
}

func lockWallet(ctx context.Context, tx pgx.Tx, id uuid.UUID) (Wallet, error) {
	row := tx.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1 FOR UPDATE`, id)
	return scanWallet(row)
}

func walletInTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (Wallet, error) {
	row := tx.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1`, id)
	return scanWallet(row)
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableUUID(s string) any {
	id, err := uuid.Parse(s)
	if err != nil {
		return nil
	}
	return id
}
