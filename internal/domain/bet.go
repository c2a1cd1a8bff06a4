package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Bet is the cumulative position of one bettor in one market. It is created
// lazily on the first stake and accumulates on every subsequent stake; the
// claimed flag flips false -> true exactly once when the payout is settled.
type Bet struct {
	MarketID  int64
	Bettor    common.Address
	YesAmount *big.Int
	NoAmount  *big.Int
	Claimed   bool
	UpdatedAt time.Time
}

// Stake returns this bettor's cumulative stake on the given side.
func (b Bet) Stake(side Side) *big.Int {
	switch side {
	case SideYes:
		return b.YesAmount
	case SideNo:
		return b.NoAmount
	default:
		return new(big.Int)
	}
}

// Total returns the bettor's combined stake across both sides.
func (b Bet) Total() *big.Int {
	return new(big.Int).Add(b.YesAmount, b.NoAmount)
}
