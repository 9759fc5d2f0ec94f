package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/joy-platform/joy_token/internal/chain"
	"github.com/joy-platform/joy_token/internal/ledger"
)

const (
	// batchSize bounds how many stalled intents one sweep picks up.
	batchSize = 100

	// pendingGracePeriod is how long a PENDING intent may sit before the
	// sweep declares the chain call lost and fails it.
	pendingGracePeriod = 10 * time.Minute
)

// Reconciler repairs intents that crashed partway through the
// submit-confirm-commit sequence. It replays the ledger posting for confirmed
// intents, resolves submitted intents against the chain, and fails intents
// whose transaction was never submitted.
type Reconciler struct {
	store     ledger.Store
	chain     chain.Client
	logger    *slog.Logger
	interval  time.Duration
	scheduler gocron.Scheduler
}

// New constructs a reconciler sweeping at the given interval.
func New(store ledger.Store, chainClient chain.Client, logger *slog.Logger, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reconciler{store: store, chain: chainClient, logger: logger, interval: interval}
}

// Start schedules the periodic sweep. It returns once the job is registered;
// sweeps run in the scheduler's goroutines until Stop is called.
func (r *Reconciler) Start(ctx context.Context) error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(r.interval),
		gocron.NewTask(func() {
			if err := r.Sweep(ctx); err != nil {
				r.logger.Error("reconcile sweep failed", "error", err)
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	r.scheduler = scheduler
	scheduler.Start()
	r.logger.Info("reconciler started", "interval", r.interval.String())
	return nil
}

// Stop shuts the scheduler down, waiting for a running sweep to finish.
func (r *Reconciler) Stop() error {
	if r.scheduler == nil {
		return nil
	}
	return r.scheduler.Shutdown()
}

// Sweep processes one batch of stalled intents.
func (r *Reconciler) Sweep(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-pendingGracePeriod)
	intents, err := r.store.StalledIntents(ctx, cutoff, batchSize)
	if err != nil {
		return fmt.Errorf("list stalled intents: %w", err)
	}
	for _, intent := range intents {
		if err := r.resolve(ctx, intent); err != nil {
			r.logger.Error("reconcile intent failed",
				"intent_id", intent.ID, "kind", intent.Kind, "status", intent.Status, "error", err)
		}
	}
	return nil
}

func (r *Reconciler) resolve(ctx context.Context, intent ledger.Intent) error {
	switch intent.Status {
	case ledger.IntentStatusConfirmed:
		// Chain state is final; only the ledger posting is missing.
		return r.replay(ctx, intent)
	case ledger.IntentStatusSubmitted:
		return r.resolveSubmitted(ctx, intent)
	case ledger.IntentStatusPending:
		// The chain call never produced a hash. After the grace period the
		// transaction cannot still be in flight.
		return r.store.MarkIntentFailed(ctx, intent.ID, "abandoned before submission")
	default:
		return nil
	}
}

func (r *Reconciler) resolveSubmitted(ctx context.Context, intent ledger.Intent) error {
	status, err := r.chain.TransactionStatus(ctx, intent.TxHash)
	if err != nil {
		if errors.Is(err, chain.ErrTxNotFound) {
			return r.store.MarkIntentFailed(ctx, intent.ID, "transaction dropped from chain")
		}
		return fmt.Errorf("transaction status %s: %w", intent.TxHash, err)
	}
	switch status {
	case chain.TxStatusSuccess:
		if err := r.store.MarkIntentConfirmed(ctx, intent.ID, intent.TxHash); err != nil {
			return err
		}
		return r.replay(ctx, intent)
	case chain.TxStatusReverted:
		return r.store.MarkIntentFailed(ctx, intent.ID, "transaction reverted")
	default:
		// Still in the mempool; leave it for the next sweep.
		return nil
	}
}

func (r *Reconciler) replay(ctx context.Context, intent ledger.Intent) error {
	_, err := r.store.CompleteIntent(ctx, intent.ID)
	if err != nil && !errors.Is(err, ledger.ErrIntentCompleted) {
		return fmt.Errorf("replay intent %s: %w", intent.ID, err)
	}
	r.logger.Info("replayed intent", "intent_id", intent.ID, "kind", intent.Kind, "tx_hash", intent.TxHash)
	return nil
}
