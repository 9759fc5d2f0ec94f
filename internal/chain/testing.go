package chain

import "github.com/ethereum/go-ethereum/common"

// SeedLiquidity is a test helper that funds the simulated contract with liquid
// tokens, expressed in off-chain units.
func SeedLiquidity(c Client, units int64) {
	if mem, ok := c.(*MemoryClient); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.contractBalance.Add(mem.contractBalance, ToWei(units))
	}
}

// SetPendingRewards is a test helper that assigns accrued rewards to a staked
// beneficiary on the simulated contract, expressed in off-chain units.
func SetPendingRewards(c Client, addr common.Address, units int64) {
	if mem, ok := c.(*MemoryClient); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		if stake, ok := mem.stakes[addr]; ok {
			stake.pendingRewards = ToWei(units)
		}
	}
}

// RecordTxStatus is a test helper that registers an arbitrary hash with the
// given mined outcome, for exercising reconciliation paths.
func RecordTxStatus(c Client, txHash string, status TxStatus) {
	if mem, ok := c.(*MemoryClient); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.txStatuses[txHash] = status
	}
}
