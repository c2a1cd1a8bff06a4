package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// MarketState is the lifecycle state of a market. States only move forward:
// Open -> Locked -> Resolved.
type MarketState uint8

const (
	StateOpen MarketState = iota
	StateLocked
	StateResolved
)

// String returns the lowercase state name used in JSON payloads and logs.
func (s MarketState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateLocked:
		return "locked"
	case StateResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// Side identifies which outcome of a binary market a stake backs.
type Side uint8

const (
	SideNone Side = iota
	SideYes
	SideNo
)

// String returns the lowercase side name used in JSON payloads and logs.
func (s Side) String() string {
	switch s {
	case SideYes:
		return "yes"
	case SideNo:
		return "no"
	default:
		return "none"
	}
}

// ParseSide maps the wire representation ("yes"/"no") onto a Side. Anything
// else, including "none", yields SideNone so callers can reject it with
// ErrInvalidSide.
func ParseSide(s string) Side {
	switch s {
	case "yes", "Yes", "YES":
		return SideYes
	case "no", "No", "NO":
		return SideNo
	default:
		return SideNone
	}
}

// Opposite returns the other betting side. Only meaningful for SideYes and
// SideNo.
func (s Side) Opposite() Side {
	switch s {
	case SideYes:
		return SideNo
	case SideNo:
		return SideYes
	default:
		return SideNone
	}
}

// Market is a binary milestone prediction market. Pools and stakes are
// wei-denominated big integers; the creator stake is escrowed at creation and
// distributed to the winning side on resolution together with both pools.
type Market struct {
	ID           int64
	Creator      common.Address
	Deadline     time.Time
	CreatorStake *big.Int
	YesPool      *big.Int
	NoPool       *big.Int
	State        MarketState
	WinningSide  Side
	MetadataURI  string
	CreatedAt    time.Time
	ResolvedAt   *time.Time
}

// EffectiveState derives the state a caller should act on at the given
// instant. A market whose deadline has passed is treated as Locked even if no
// explicit lock transition has been recorded yet.
func (m Market) EffectiveState(now time.Time) MarketState {
	if m.State == StateOpen && !now.Before(m.Deadline) {
		return StateLocked
	}
	return m.State
}

// Pool returns the cumulative stake on the given side.
func (m Market) Pool(side Side) *big.Int {
	switch side {
	case SideYes:
		return m.YesPool
	case SideNo:
		return m.NoPool
	default:
		return new(big.Int)
	}
}

// TotalCustody is the full value held in escrow for this market: both pools
// plus the creator stake.
func (m Market) TotalCustody() *big.Int {
	total := new(big.Int).Add(m.YesPool, m.NoPool)
	return total.Add(total, m.CreatorStake)
}
