package engine

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mucks/proofmarket/internal/domain"
)

func resolvedMarket(stake, yes, no int64, winning domain.Side) domain.Market {
	return domain.Market{
		CreatorStake: big.NewInt(stake),
		YesPool:      big.NewInt(yes),
		NoPool:       big.NewInt(no),
		State:        domain.StateResolved,
		WinningSide:  winning,
	}
}

func betOf(yes, no int64) domain.Bet {
	return domain.Bet{YesAmount: big.NewInt(yes), NoAmount: big.NewInt(no)}
}

func TestPayoutProportional(t *testing.T) {
	require := require.New(t)
	m := resolvedMarket(100, 200, 300, domain.SideYes)

	// Custody 600 split across the 200-wei winning pool.
	require.Equal(big.NewInt(150), Payout(m, betOf(50, 0)))
	require.Equal(big.NewInt(450), Payout(m, betOf(150, 0)))

	// Losing stakes contribute nothing, even when mixed with winners.
	require.Equal(big.NewInt(150), Payout(m, betOf(50, 300)))
	require.Zero(Payout(m, betOf(0, 300)).Sign())
	require.Zero(Payout(m, betOf(0, 0)).Sign())
}

func TestPayoutTruncates(t *testing.T) {
	require := require.New(t)
	m := resolvedMarket(7, 3, 0, domain.SideYes)

	// Custody 10 over a 3-wei pool: 3 + 6 claimed, 1 wei of dust remains.
	require.Equal(big.NewInt(3), Payout(m, betOf(1, 0)))
	require.Equal(big.NewInt(6), Payout(m, betOf(2, 0)))
}

func TestPayoutZeroWinningPool(t *testing.T) {
	require := require.New(t)
	m := resolvedMarket(100, 0, 300, domain.SideYes)

	// Settled at resolution time; no bettor can claim.
	require.Zero(Payout(m, betOf(0, 300)).Sign())
}

func TestPayoutLargeValuesDoNotOverflow(t *testing.T) {
	require := require.New(t)

	// Pools in the millions-of-ether range stay exact.
	ether := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	million := new(big.Int).Mul(big.NewInt(1_000_000), ether)

	m := domain.Market{
		CreatorStake: new(big.Int).Set(million),
		YesPool:      new(big.Int).Set(million),
		NoPool:       new(big.Int).Set(million),
		State:        domain.StateResolved,
		WinningSide:  domain.SideNo,
	}
	b := domain.Bet{YesAmount: new(big.Int), NoAmount: new(big.Int).Set(million)}

	// Sole winner takes the full 3M-ether custody.
	want := new(big.Int).Mul(big.NewInt(3_000_000), ether)
	require.Equal(want, Payout(m, b))
}
