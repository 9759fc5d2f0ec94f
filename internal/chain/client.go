package chain

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrTxReverted indicates the contract rejected the transaction on-chain.
	ErrTxReverted = errors.New("transaction reverted")

	// ErrTxNotFound indicates no receipt exists for the requested hash.
	ErrTxNotFound = errors.New("transaction not found")
)

// TxStatus describes the on-chain outcome of a submitted transaction.
type TxStatus int

const (
	// TxStatusUnknown means the transaction is not yet mined or not known to the node.
	TxStatusUnknown TxStatus = iota
	// TxStatusSuccess means the transaction was mined and succeeded.
	TxStatusSuccess
	// TxStatusReverted means the transaction was mined but reverted.
	TxStatusReverted
)

// Receipt captures the confirmation of a contract write.
type Receipt struct {
	TxHash      string
	BlockNumber uint64
}

// StakeInfo mirrors the contract's per-beneficiary staking position. Times are
// zero when the corresponding lifecycle step has not happened.
type StakeInfo struct {
	Amount             *big.Int
	StartTime          time.Time
	LastClaimTime      time.Time
	PendingRewards     *big.Int
	UnstakeRequestTime time.Time
	UnstakeUnlockTime  time.Time
}

// StakingStats summarises the pool-wide staking state.
type StakingStats struct {
	TotalStaked           *big.Int
	TotalStakers          int64
	CurrentAPR            int64
	TotalYieldDistributed *big.Int
	AvailableYieldPool    *big.Int
}

// YieldPoolStatus reports the sustainability of the revenue-funded yield pool.
type YieldPoolStatus struct {
	Available        *big.Int
	TotalDeposited   *big.Int
	TotalDistributed *big.Int
	CurrentAPR       int64
	ProjectedDays    int64
}

// TokenStats reports supply-level token metrics.
type TokenStats struct {
	TotalSupply       *big.Int
	CirculatingSupply *big.Int
	TotalBurned       *big.Int
	TotalStaked       *big.Int
	ContractBalance   *big.Int
}

// Client is the boundary to the deployed JY token contract. All amounts cross
// this boundary as 18-decimal wei values. Every write is signed by the
// configured operator key; the beneficiary address identifies whose position a
// bookkeeping call applies to.
type Client interface {
	TokenBalance(ctx context.Context, addr common.Address) (*big.Int, error)
	ContractBalance(ctx context.Context) (*big.Int, error)

	ConvertCEPoints(ctx context.Context, beneficiary common.Address, cePoints int64) (Receipt, error)
	Stake(ctx context.Context, beneficiary common.Address, amount *big.Int) (Receipt, error)
	RequestUnstake(ctx context.Context, beneficiary common.Address) (Receipt, error)
	Unstake(ctx context.Context, beneficiary common.Address) (Receipt, error)
	ClaimRewards(ctx context.Context, beneficiary common.Address) (Receipt, error)
	DepositRevenue(ctx context.Context, amount *big.Int, source string) (Receipt, error)

	PendingRewards(ctx context.Context, addr common.Address) (*big.Int, error)
	GetStakeInfo(ctx context.Context, addr common.Address) (StakeInfo, error)
	GetStakingStats(ctx context.Context) (StakingStats, error)
	GetYieldPoolStatus(ctx context.Context) (YieldPoolStatus, error)
	GetTokenStats(ctx context.Context) (TokenStats, error)

	TransactionStatus(ctx context.Context, txHash string) (TxStatus, error)
}

// BeneficiaryAddress derives the deterministic bookkeeping address for a
// wallet. Positions are custodial: the operator signs every transaction and
// the contract tracks them per beneficiary address, so the address only needs
// to be stable, not spendable.
func BeneficiaryAddress(walletID string) common.Address {
	hash := common.BytesToHash(keccak256([]byte(walletID)))
	return common.BytesToAddress(hash[12:])
}
