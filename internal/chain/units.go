package chain

import (
	"math/big"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"
)

const (
	// UnitsPerToken is the off-chain fixed-point scale: one JY is one million
	// units. Database balances and all service-level amounts use these units.
	UnitsPerToken int64 = 1_000_000
)

// weiPerUnit bridges the 6-decimal off-chain representation and the
// 18-decimal on-chain one.
var weiPerUnit = big.NewInt(1_000_000_000_000)

// ToWei converts an off-chain unit amount to its 18-decimal wei value.
func ToWei(units int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(units), weiPerUnit)
}

// FromWei converts a wei value to off-chain units, truncating dust below one
// unit toward zero. A nil input yields zero.
func FromWei(wei *big.Int) int64 {
	if wei == nil || wei.Sign() == 0 {
		return 0
	}
	return new(big.Int).Quo(wei, weiPerUnit).Int64()
}

func keccak256(data []byte) []byte {
	return gethcrypto.Keccak256(data)
}
