package chain

import (
	"math/big"
	"testing"
)

func TestWeiRoundTrip(t *testing.T) {
	cases := []int64{0, 1, UnitsPerToken, 2_500_000, 123_456_789}
	for _, units := range cases {
		if got := FromWei(ToWei(units)); got != units {
			t.Fatalf("round trip %d units, got %d", units, got)
		}
	}
}

func TestFromWeiTruncates(t *testing.T) {
	// One wei below a full unit truncates down.
	wei := new(big.Int).Sub(ToWei(1), big.NewInt(1))
	if got := FromWei(wei); got != 0 {
		t.Fatalf("expected truncation to 0, got %d", got)
	}
	if got := FromWei(nil); got != 0 {
		t.Fatalf("nil wei should read as 0, got %d", got)
	}
}

func TestBeneficiaryAddressDeterministic(t *testing.T) {
	a := BeneficiaryAddress("wallet-1")
	b := BeneficiaryAddress("wallet-1")
	if a != b {
		t.Fatalf("address derivation must be deterministic")
	}
	if a == BeneficiaryAddress("wallet-2") {
		t.Fatalf("distinct wallets must map to distinct addresses")
	}
}
