package wallet

import "time"

// Balances is the point-in-time view of a wallet's holdings. JY amounts are
// fixed-point units of one millionth of a token.
type Balances struct {
	WalletID      string
	CEPoints      int64
	JoyTokens     int64
	StakedBalance int64
	TotalBalance  int64
	AsOf          time.Time
}
