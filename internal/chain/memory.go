package chain

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// CooldownPeriod is the mandatory wait between requesting and completing an
// unstake, enforced by the contract.
const CooldownPeriod = 7 * 24 * time.Hour

type memStake struct {
	amount             *big.Int
	startTime          time.Time
	lastClaimTime      time.Time
	pendingRewards     *big.Int
	unstakeRequestTime time.Time
	unstakeUnlockTime  time.Time
}

// MemoryClient simulates the JY token contract in process. It honors the same
// state machine as the deployed contract (stake, cooldown, claim) and is the
// test double for everything above the chain boundary.
type MemoryClient struct {
	mu sync.Mutex

	now func() time.Time

	contractBalance  *big.Int
	balances         map[common.Address]*big.Int
	stakes           map[common.Address]*memStake
	txStatuses       map[string]TxStatus
	totalStakers     int64
	currentAPR       int64
	yieldAvailable   *big.Int
	yieldDeposited   *big.Int
	yieldDistributed *big.Int
	totalSupply      *big.Int
	totalBurned      *big.Int
}

// NewMemory creates a simulator using the provided clock; a nil clock means
// time.Now.
func NewMemory(now func() time.Time) *MemoryClient {
	if now == nil {
		now = time.Now
	}
	return &MemoryClient{
		now:              now,
		contractBalance:  new(big.Int),
		balances:         make(map[common.Address]*big.Int),
		stakes:           make(map[common.Address]*memStake),
		txStatuses:       make(map[string]TxStatus),
		currentAPR:       12,
		yieldAvailable:   new(big.Int),
		yieldDeposited:   new(big.Int),
		yieldDistributed: new(big.Int),
		totalSupply:      new(big.Int),
		totalBurned:      new(big.Int),
	}
}

// TokenBalance returns the simulated balance of addr.
func (m *MemoryClient) TokenBalance(_ context.Context, addr common.Address) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return new(big.Int).Set(m.balanceOf(addr)), nil
}

// ContractBalance returns the simulated contract liquidity.
func (m *MemoryClient) ContractBalance(_ context.Context) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return new(big.Int).Set(m.contractBalance), nil
}

// ConvertCEPoints moves converted tokens from contract liquidity to the
// beneficiary, reverting when liquidity cannot cover the transfer.
func (m *MemoryClient) ConvertCEPoints(_ context.Context, beneficiary common.Address, cePoints int64) (Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	wei := ToWei(cePoints * UnitsPerToken / 100)
	if m.contractBalance.Cmp(wei) < 0 {
		return m.revert()
	}
	m.contractBalance.Sub(m.contractBalance, wei)
	m.balanceOf(beneficiary).Add(m.balanceOf(beneficiary), wei)
	return m.mined()
}

// Stake bonds the amount under the beneficiary's position.
func (m *MemoryClient) Stake(_ context.Context, beneficiary common.Address, amount *big.Int) (Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if amount == nil || amount.Sign() <= 0 {
		return m.revert()
	}
	stake, ok := m.stakes[beneficiary]
	if !ok {
		stake = &memStake{amount: new(big.Int), pendingRewards: new(big.Int), startTime: m.now().UTC()}
		m.stakes[beneficiary] = stake
		m.totalStakers++
	}
	stake.amount.Add(stake.amount, amount)
	return m.mined()
}

// RequestUnstake starts the cooldown for the beneficiary's position.
func (m *MemoryClient) RequestUnstake(_ context.Context, beneficiary common.Address) (Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stake, ok := m.stakes[beneficiary]
	if !ok || stake.amount.Sign() == 0 {
		return m.revert()
	}
	now := m.now().UTC()
	stake.unstakeRequestTime = now
	stake.unstakeUnlockTime = now.Add(CooldownPeriod)
	return m.mined()
}

// Unstake releases principal plus rewards once the cooldown has elapsed.
func (m *MemoryClient) Unstake(_ context.Context, beneficiary common.Address) (Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stake, ok := m.stakes[beneficiary]
	if !ok || stake.unstakeUnlockTime.IsZero() || m.now().Before(stake.unstakeUnlockTime) {
		return m.revert()
	}
	payout := new(big.Int).Add(stake.amount, stake.pendingRewards)
	m.balanceOf(beneficiary).Add(m.balanceOf(beneficiary), payout)
	m.yieldDistributed.Add(m.yieldDistributed, stake.pendingRewards)
	delete(m.stakes, beneficiary)
	m.totalStakers--
	return m.mined()
}

// ClaimRewards pays out pending rewards, reverting when none have accrued.
func (m *MemoryClient) ClaimRewards(_ context.Context, beneficiary common.Address) (Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stake, ok := m.stakes[beneficiary]
	if !ok || stake.pendingRewards.Sign() == 0 {
		return m.revert()
	}
	m.balanceOf(beneficiary).Add(m.balanceOf(beneficiary), stake.pendingRewards)
	m.yieldDistributed.Add(m.yieldDistributed, stake.pendingRewards)
	m.yieldAvailable.Sub(m.yieldAvailable, stake.pendingRewards)
	stake.pendingRewards = new(big.Int)
	stake.lastClaimTime = m.now().UTC()
	return m.mined()
}

// DepositRevenue adds protocol revenue to the yield pool.
func (m *MemoryClient) DepositRevenue(_ context.Context, amount *big.Int, _ string) (Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if amount == nil || amount.Sign() <= 0 {
		return m.revert()
	}
	m.yieldAvailable.Add(m.yieldAvailable, amount)
	m.yieldDeposited.Add(m.yieldDeposited, amount)
	return m.mined()
}

// PendingRewards returns the unclaimed rewards for addr.
func (m *MemoryClient) PendingRewards(_ context.Context, addr common.Address) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if stake, ok := m.stakes[addr]; ok {
		return new(big.Int).Set(stake.pendingRewards), nil
	}
	return new(big.Int), nil
}

// GetStakeInfo reads the simulated staking position for addr.
func (m *MemoryClient) GetStakeInfo(_ context.Context, addr common.Address) (StakeInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stake, ok := m.stakes[addr]
	if !ok {
		return StakeInfo{Amount: new(big.Int), PendingRewards: new(big.Int)}, nil
	}
	return StakeInfo{
		Amount:             new(big.Int).Set(stake.amount),
		StartTime:          stake.startTime,
		LastClaimTime:      stake.lastClaimTime,
		PendingRewards:     new(big.Int).Set(stake.pendingRewards),
		UnstakeRequestTime: stake.unstakeRequestTime,
		UnstakeUnlockTime:  stake.unstakeUnlockTime,
	}, nil
}

// GetStakingStats aggregates the simulated pool state.
func (m *MemoryClient) GetStakingStats(_ context.Context) (StakingStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := new(big.Int)
	for _, stake := range m.stakes {
		total.Add(total, stake.amount)
	}
	return StakingStats{
		TotalStaked:           total,
		TotalStakers:          m.totalStakers,
		CurrentAPR:            m.currentAPR,
		TotalYieldDistributed: new(big.Int).Set(m.yieldDistributed),
		AvailableYieldPool:    new(big.Int).Set(m.yieldAvailable),
	}, nil
}

// GetYieldPoolStatus reports the simulated yield pool.
func (m *MemoryClient) GetYieldPoolStatus(_ context.Context) (YieldPoolStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return YieldPoolStatus{
		Available:        new(big.Int).Set(m.yieldAvailable),
		TotalDeposited:   new(big.Int).Set(m.yieldDeposited),
		TotalDistributed: new(big.Int).Set(m.yieldDistributed),
		CurrentAPR:       m.currentAPR,
		ProjectedDays:    0,
	}, nil
}

// GetTokenStats reports simulated supply metrics.
func (m *MemoryClient) GetTokenStats(_ context.Context) (TokenStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	staked := new(big.Int)
	for _, stake := range m.stakes {
		staked.Add(staked, stake.amount)
	}
	return TokenStats{
		TotalSupply:       new(big.Int).Set(m.totalSupply),
		CirculatingSupply: new(big.Int).Sub(m.totalSupply, m.totalBurned),
		TotalBurned:       new(big.Int).Set(m.totalBurned),
		TotalStaked:       staked,
		ContractBalance:   new(big.Int).Set(m.contractBalance),
	}, nil
}

// TransactionStatus reports the recorded outcome for a hash.
func (m *MemoryClient) TransactionStatus(_ context.Context, txHash string) (TxStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	status, ok := m.txStatuses[txHash]
	if !ok {
		return TxStatusUnknown, nil
	}
	return status, nil
}

func (m *MemoryClient) balanceOf(addr common.Address) *big.Int {
	bal, ok := m.balances[addr]
	if !ok {
		bal = new(big.Int)
		m.balances[addr] = bal
	}
	return bal
}

func (m *MemoryClient) mined() (Receipt, error) {
	hash := common.BytesToHash(keccak256([]byte(uuid.NewString()))).Hex()
	m.txStatuses[hash] = TxStatusSuccess
	return Receipt{TxHash: hash, BlockNumber: uint64(len(m.txStatuses))}, nil
}

func (m *MemoryClient) revert() (Receipt, error) {
	hash := common.BytesToHash(keccak256([]byte(uuid.NewString()))).Hex()
	m.txStatuses[hash] = TxStatusReverted
	return Receipt{TxHash: hash}, ErrTxReverted
}
