package chain

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryCooldownEnforced(t *testing.T) {
	current := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	mem := NewMemory(func() time.Time { return current })
	ctx := context.Background()
	addr := BeneficiaryAddress("w1")

	if _, err := mem.Stake(ctx, addr, ToWei(10*UnitsPerToken)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	if _, err := mem.Unstake(ctx, addr); !errors.Is(err, ErrTxReverted) {
		t.Fatalf("unstake without request should revert, got %v", err)
	}
	if _, err := mem.RequestUnstake(ctx, addr); err != nil {
		t.Fatalf("request unstake: %v", err)
	}
	if _, err := mem.Unstake(ctx, addr); !errors.Is(err, ErrTxReverted) {
		t.Fatalf("unstake inside cooldown should revert, got %v", err)
	}

	current = current.Add(CooldownPeriod + time.Second)
	if _, err := mem.Unstake(ctx, addr); err != nil {
		t.Fatalf("unstake after cooldown: %v", err)
	}

	bal, err := mem.TokenBalance(ctx, addr)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if FromWei(bal) != 10*UnitsPerToken {
		t.Fatalf("expected principal returned, got %d units", FromWei(bal))
	}
}

func TestMemoryConvertRequiresLiquidity(t *testing.T) {
	mem := NewMemory(nil)
	ctx := context.Background()
	addr := BeneficiaryAddress("w1")

	if _, err := mem.ConvertCEPoints(ctx, addr, 1_000); !errors.Is(err, ErrTxReverted) {
		t.Fatalf("conversion without liquidity should revert, got %v", err)
	}

	SeedLiquidity(mem, 100*UnitsPerToken)
	receipt, err := mem.ConvertCEPoints(ctx, addr, 1_000)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}

	status, err := mem.TransactionStatus(ctx, receipt.TxHash)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status != TxStatusSuccess {
		t.Fatalf("expected success status, got %v", status)
	}
}
