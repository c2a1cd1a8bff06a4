package engine

import (
	"math/big"

	"github.com/mucks/proofmarket/internal/domain"
)

// TotalDistributable is the full custody of a market: both pools plus the
// creator stake. On resolution all of it belongs to the winning side; the
// losing pool and the creator stake are forfeited into the winners' share.
func TotalDistributable(m domain.Market) *big.Int {
	return m.TotalCustody()
}

// Payout computes the proportional claimable amount for one bettor in a
// resolved market:
//
//	payout = floor(totalDistributable * winningStake / winningPool)
//
// Stakes on the losing side contribute nothing. Integer division truncates;
// the truncation remainders across all claimants leave a small unclaimed
// residue (dust), which is accepted and not a conservation violation.
//
// The zero-winning-pool case is settled at resolution time (the whole
// custody goes to the creator), so Payout returns zero for it: by then no
// bettor holds a winning stake and nothing is claimable.
func Payout(m domain.Market, b domain.Bet) *big.Int {
	winningPool := m.Pool(m.WinningSide)
	if winningPool.Sign() == 0 {
		return new(big.Int)
	}

	stake := b.Stake(m.WinningSide)
	if stake.Sign() == 0 {
		return new(big.Int)
	}

	out := new(big.Int).Mul(TotalDistributable(m), stake)
	return out.Quo(out, winningPool)
}
