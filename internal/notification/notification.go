package notification

import (
    "context"
    "log/slog"
)

const (
    // KindConversion indicates a CE-to-JY conversion event.
    KindConversion = "ce_conversion"
    // KindStake indicates a staking event.
    KindStake = "stake"
    // KindUnstake indicates an unstake payout event.
    KindUnstake = "unstake"
    // KindRewardClaim indicates a reward claim event.
    KindRewardClaim = "reward_claim"
    // KindTransfer indicates an off-chain JY transfer between wallets.
    KindTransfer = "jy_transfer"
)

// Message describes a notification payload.
type Message struct {
    Kind        string
    Destination string
    Body        string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
    Send(ctx context.Context, message Message) error
}

// LoggerNotifier is a stub implementation that writes notifications to the logger.
type LoggerNotifier struct {
    logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier stub.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
    return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
    if n == nil || n.logger == nil {
        return nil
    }
    n.logger.Info("notification", "kind", message.Kind, "destination", message.Destination, "body", message.Body)
    return nil
}
