package ledger

import "time"

// SeedBalances is a test helper that overwrites the balances of a wallet when
// using the in-memory store.
func SeedBalances(s Store, walletID string, cePoints, joyTokens, staked int64) {
	if mem, ok := s.(*inMemoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		wallet := mem.wallets[walletID]
		wallet.CEPoints = cePoints
		wallet.JoyTokens = joyTokens
		wallet.StakedBalance = staked
		wallet.TotalBalance = joyTokens + staked
		mem.wallets[walletID] = wallet
	}
}

// BackdateIntent is a test helper that rewinds an intent's update time when
// using the in-memory store, so it becomes eligible for reconciliation.
func BackdateIntent(s Store, id string, to time.Time) {
	if mem, ok := s.(*inMemoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		if intent, ok := mem.intents[id]; ok {
			intent.UpdatedAt = to
			mem.intents[id] = intent
		}
	}
}

// AuditEvents is a test helper exposing recorded audit events from the
// in-memory store.
func AuditEvents(s Store) []AuditEvent {
	if mem, ok := s.(*inMemoryStore); ok {
		mem.mu.RLock()
		defer mem.mu.RUnlock()
		out := make([]AuditEvent, len(mem.audits))
		copy(out, mem.audits)
		return out
	}
	return nil
}
