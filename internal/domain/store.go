package domain

import (
	"context"
	"io"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// MarketStore persists Market records. Ids are dense and start at 0; Create
// assigns the next id atomically. Mutating methods are conditional on the
// state the transition requires and return ErrConflict when the stored state
// does not match, so a lost in-process lock can never corrupt the ledger.
type MarketStore interface {
	// Create inserts a new Open market and returns its assigned id.
	Create(ctx context.Context, m Market) (int64, error)
	Get(ctx context.Context, id int64) (Market, error)
	List(ctx context.Context, opts ListOpts) ([]Market, error)
	Count(ctx context.Context) (int64, error)

	// SetLocked transitions Open -> Locked.
	SetLocked(ctx context.Context, id int64) error

	// SetResolved transitions Locked -> Resolved and records the winning
	// side and resolution time.
	SetResolved(ctx context.Context, id int64, winning Side, at time.Time) error
}

// BetStore persists Bet records keyed by (market id, bettor).
type BetStore interface {
	// GetBet returns the bet for (marketID, bettor), or ErrNotFound if the
	// bettor never staked in this market.
	GetBet(ctx context.Context, marketID int64, bettor common.Address) (Bet, error)

	// AddStake adds amount to the bettor's stake on the given side, creating
	// the record on first use. Amounts accumulate, never overwrite.
	AddStake(ctx context.Context, marketID int64, bettor common.Address, side Side, amount *big.Int) error

	// ListByMarket returns every bet placed in the market.
	ListByMarket(ctx context.Context, marketID int64) ([]Bet, error)

	// MarkClaimed flips the claimed flag false -> true. It returns
	// ErrAlreadyClaimed if the flag was already set and ErrNotFound if no
	// bet record exists. The flip is atomic: out of any number of
	// concurrent callers exactly one succeeds.
	MarkClaimed(ctx context.Context, marketID int64, bettor common.Address) error
}

// Ledger is the full persistence surface of the engine. RecordBet exists on
// the combined interface because a bet touches two records at once and must
// apply to both or neither.
type Ledger interface {
	MarketStore
	BetStore

	// RecordBet atomically adds amount to the market's side pool and to the
	// bettor's cumulative stake on that side. The market must still be Open;
	// ErrConflict is returned otherwise.
	RecordBet(ctx context.Context, marketID int64, bettor common.Address, side Side, amount *big.Int) error
}

// Payer performs the outbound value transfer of a settled claim. The engine
// commits its bookkeeping before invoking Pay, so a failing or re-entrant
// transfer can never produce a second payout.
type Payer interface {
	Pay(ctx context.Context, to common.Address, amount *big.Int) error
}

// LockManager provides distributed mutual exclusion for deployments that run
// more than one engine process against a shared store.
type LockManager interface {
	// Acquire obtains the lock for key, returning an unlock function. It
	// returns ErrLockHeld if another holder owns the lock.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// BlobWriter stores immutable objects, such as settlement archives, in an
// object store.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Clock supplies the current time. Deadline comparisons always go through a
// Clock so tests can drive time explicitly; nothing fires at the deadline on
// its own.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall-clock Clock used in production.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
