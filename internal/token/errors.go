package token

import "errors"

var (
	// ErrBelowMinimum occurs when the requested amount is under the operation's
	// floor (100 CE for conversion, 10 JY for staking).
	ErrBelowMinimum = errors.New("amount below minimum")

	// ErrInsufficientPoints occurs when the wallet holds fewer CE points than
	// the conversion requires.
	ErrInsufficientPoints = errors.New("insufficient CE points")

	// ErrInsufficientBalance occurs when the wallet's liquid JY cannot cover a
	// stake.
	ErrInsufficientBalance = errors.New("insufficient JY balance")

	// ErrInsufficientLiquidity occurs when the contract cannot cover the token
	// transfer a conversion requires.
	ErrInsufficientLiquidity = errors.New("insufficient JY in contract")

	// ErrNoStake occurs when an unstake is requested with nothing staked.
	ErrNoStake = errors.New("nothing staked")

	// ErrUnstakeNotRequested occurs when unstaking without a prior request.
	ErrUnstakeNotRequested = errors.New("unstake not requested")

	// ErrCooldownActive occurs when unstaking before the cooldown has elapsed.
	ErrCooldownActive = errors.New("cooldown period not completed")

	// ErrNoRewards occurs when claiming with zero pending rewards.
	ErrNoRewards = errors.New("no rewards to claim")
)
