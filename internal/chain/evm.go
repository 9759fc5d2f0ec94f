package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
)

const (
	submitAttempts     = 3
	submitBackoff      = 2 * time.Second
	receiptPollEvery   = 500 * time.Millisecond
	fallbackGasLimit   = 300_000
	gasLimitHeadroomPc = 20
)

// Backend is the subset of the Ethereum RPC client the contract client uses.
// *ethclient.Client satisfies it.
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
}

// EVMClient talks to the deployed JY token contract over JSON-RPC, signing all
// writes with the operator key (custodial pooled-signer model).
type EVMClient struct {
	backend  Backend
	abi      abi.ABI
	address  common.Address
	operator common.Address
	key      *ecdsa.PrivateKey
	chainID  *big.Int
}

// NewEVMClient builds a contract client from a connected backend, the contract
// address and the operator's hex-encoded private key.
func NewEVMClient(backend Backend, contractAddr, operatorKeyHex string, chainID int64) (*EVMClient, error) {
	if backend == nil {
		return nil, fmt.Errorf("ethereum backend is required")
	}
	if !common.IsHexAddress(contractAddr) {
		return nil, fmt.Errorf("invalid contract address %q", contractAddr)
	}
	key, err := gethcrypto.HexToECDSA(strings.TrimPrefix(operatorKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse operator key: %w", err)
	}
	parsed, err := abi.JSON(strings.NewReader(jyTokenABI))
	if err != nil {
		return nil, fmt.Errorf("parse token abi: %w", err)
	}
	return &EVMClient{
		backend:  backend,
		abi:      parsed,
		address:  common.HexToAddress(contractAddr),
		operator: gethcrypto.PubkeyToAddress(key.PublicKey),
		key:      key,
		chainID:  big.NewInt(chainID),
	}, nil
}

// TokenBalance returns the JY balance of the given address.
func (c *EVMClient) TokenBalance(ctx context.Context, addr common.Address) (*big.Int, error) {
	return c.callUint(ctx, "balanceOf", addr)
}

// ContractBalance returns the contract's own liquid JY balance, used as the
// liquidity check before conversions.
func (c *EVMClient) ContractBalance(ctx context.Context) (*big.Int, error) {
	return c.callUint(ctx, "balanceOf", c.address)
}

// ConvertCEPoints credits the beneficiary with converted tokens on-chain.
func (c *EVMClient) ConvertCEPoints(ctx context.Context, beneficiary common.Address, cePoints int64) (Receipt, error) {
	return c.transact(ctx, "convertCEPointsToJY", beneficiary, big.NewInt(cePoints))
}

// Stake bonds the amount for the beneficiary.
func (c *EVMClient) Stake(ctx context.Context, beneficiary common.Address, amount *big.Int) (Receipt, error) {
	return c.transact(ctx, "stake", beneficiary, amount)
}

// RequestUnstake starts the beneficiary's unstake cooldown.
func (c *EVMClient) RequestUnstake(ctx context.Context, beneficiary common.Address) (Receipt, error) {
	return c.transact(ctx, "requestUnstake", beneficiary)
}

// Unstake releases the beneficiary's principal and accrued rewards.
func (c *EVMClient) Unstake(ctx context.Context, beneficiary common.Address) (Receipt, error) {
	return c.transact(ctx, "unstake", beneficiary)
}

// ClaimRewards pays out the beneficiary's pending rewards.
func (c *EVMClient) ClaimRewards(ctx context.Context, beneficiary common.Address) (Receipt, error) {
	return c.transact(ctx, "claimRewards", beneficiary)
}

// DepositRevenue funds the shared yield pool with protocol revenue.
func (c *EVMClient) DepositRevenue(ctx context.Context, amount *big.Int, source string) (Receipt, error) {
	return c.transact(ctx, "depositRevenue", amount, source)
}

// PendingRewards returns the unclaimed rewards for the address.
func (c *EVMClient) PendingRewards(ctx context.Context, addr common.Address) (*big.Int, error) {
	return c.callUint(ctx, "calculateRewards", addr)
}

// GetStakeInfo reads the full staking position for the address.
func (c *EVMClient) GetStakeInfo(ctx context.Context, addr common.Address) (StakeInfo, error) {
	values, err := c.call(ctx, "getStakeInfo", addr)
	if err != nil {
		return StakeInfo{}, err
	}
	if len(values) != 6 {
		return StakeInfo{}, fmt.Errorf("getStakeInfo: unexpected output arity %d", len(values))
	}
	return StakeInfo{
		Amount:             asBig(values[0]),
		StartTime:          asUnixTime(values[1]),
		LastClaimTime:      asUnixTime(values[2]),
		PendingRewards:     asBig(values[3]),
		UnstakeRequestTime: asUnixTime(values[4]),
		UnstakeUnlockTime:  asUnixTime(values[5]),
	}, nil
}

// GetStakingStats reads pool-wide staking metrics.
func (c *EVMClient) GetStakingStats(ctx context.Context) (StakingStats, error) {
	values, err := c.call(ctx, "getStakingStats")
	if err != nil {
		return StakingStats{}, err
	}
	if len(values) != 5 {
		return StakingStats{}, fmt.Errorf("getStakingStats: unexpected output arity %d", len(values))
	}
	return StakingStats{
		TotalStaked:           asBig(values[0]),
		TotalStakers:          asBig(values[1]).Int64(),
		CurrentAPR:            asBig(values[2]).Int64(),
		TotalYieldDistributed: asBig(values[3]),
		AvailableYieldPool:    asBig(values[4]),
	}, nil
}

// GetYieldPoolStatus reads yield pool sustainability metrics.
func (c *EVMClient) GetYieldPoolStatus(ctx context.Context) (YieldPoolStatus, error) {
	values, err := c.call(ctx, "getYieldPoolStatus")
	if err != nil {
		return YieldPoolStatus{}, err
	}
	if len(values) != 5 {
		return YieldPoolStatus{}, fmt.Errorf("getYieldPoolStatus: unexpected output arity %d", len(values))
	}
	return YieldPoolStatus{
		Available:        asBig(values[0]),
		TotalDeposited:   asBig(values[1]),
		TotalDistributed: asBig(values[2]),
		CurrentAPR:       asBig(values[3]).Int64(),
		ProjectedDays:    asBig(values[4]).Int64(),
	}, nil
}

// GetTokenStats reads supply-level token metrics.
func (c *EVMClient) GetTokenStats(ctx context.Context) (TokenStats, error) {
	values, err := c.call(ctx, "getTokenStats")
	if err != nil {
		return TokenStats{}, err
	}
	if len(values) != 5 {
		return TokenStats{}, fmt.Errorf("getTokenStats: unexpected output arity %d", len(values))
	}
	return TokenStats{
		TotalSupply:       asBig(values[0]),
		CirculatingSupply: asBig(values[1]),
		TotalBurned:       asBig(values[2]),
		TotalStaked:       asBig(values[3]),
		ContractBalance:   asBig(values[4]),
	}, nil
}

// TransactionStatus reports the mined outcome of a previously submitted
// transaction, used by the reconciler.
func (c *EVMClient) TransactionStatus(ctx context.Context, txHash string) (TxStatus, error) {
	receipt, err := c.backend.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return TxStatusUnknown, nil
		}
		return TxStatusUnknown, fmt.Errorf("fetch receipt: %w", err)
	}
	if receipt == nil {
		return TxStatusUnknown, nil
	}
	if receipt.Status != gethtypes.ReceiptStatusSuccessful {
		return TxStatusReverted, nil
	}
	return TxStatusSuccess, nil
}

func (c *EVMClient) call(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	output, err := c.backend.CallContract(ctx, ethereum.CallMsg{From: c.operator, To: &c.address, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := c.abi.Unpack(method, output)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return values, nil
}

func (c *EVMClient) callUint(ctx context.Context, method string, args ...any) (*big.Int, error) {
	values, err := c.call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("%s: unexpected output arity %d", method, len(values))
	}
	return asBig(values[0]), nil
}

// transact packs, signs, submits and waits for a contract write. Submission is
// retried a bounded number of times on transient RPC failures; waiting for the
// receipt is governed entirely by the caller's context deadline.
func (c *EVMClient) transact(ctx context.Context, method string, args ...any) (Receipt, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return Receipt{}, fmt.Errorf("pack %s: %w", method, err)
	}

	var tx *gethtypes.Transaction
	var lastErr error
	for attempt := 0; attempt < submitAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Receipt{}, ctx.Err()
			case <-time.After(submitBackoff * time.Duration(attempt)):
			}
		}
		tx, lastErr = c.submitOnce(ctx, data)
		if lastErr == nil {
			break
		}
	}
	if lastErr != nil {
		return Receipt{}, fmt.Errorf("submit %s: %w", method, lastErr)
	}

	receipt, err := c.waitMined(ctx, tx.Hash())
	if err != nil {
		// Submission went through; hand the hash back so the caller can
		// track the transaction even without a receipt.
		return Receipt{TxHash: tx.Hash().Hex()}, fmt.Errorf("confirm %s: %w", method, err)
	}
	if receipt.Status != gethtypes.ReceiptStatusSuccessful {
		return Receipt{TxHash: tx.Hash().Hex(), BlockNumber: receipt.BlockNumber.Uint64()}, ErrTxReverted
	}
	return Receipt{TxHash: tx.Hash().Hex(), BlockNumber: receipt.BlockNumber.Uint64()}, nil
}

func (c *EVMClient) submitOnce(ctx context.Context, data []byte) (*gethtypes.Transaction, error) {
	nonce, err := c.backend.PendingNonceAt(ctx, c.operator)
	if err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("gas price: %w", err)
	}
	gasLimit, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{From: c.operator, To: &c.address, Data: data})
	if err != nil {
		gasLimit = fallbackGasLimit
	} else {
		gasLimit += gasLimit * gasLimitHeadroomPc / 100
	}

	tx := gethtypes.NewTx(&gethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &c.address,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := gethtypes.SignTx(tx, gethtypes.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return nil, err
	}
	return signed, nil
}

func (c *EVMClient) waitMined(ctx context.Context, hash common.Hash) (*gethtypes.Receipt, error) {
	ticker := time.NewTicker(receiptPollEvery)
	defer ticker.Stop()
	for {
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func asBig(v any) *big.Int {
	if b, ok := v.(*big.Int); ok && b != nil {
		return b
	}
	return new(big.Int)
}

func asUnixTime(v any) time.Time {
	seconds := asBig(v).Int64()
	if seconds == 0 {
		return time.Time{}
	}
	return time.Unix(seconds, 0).UTC()
}
