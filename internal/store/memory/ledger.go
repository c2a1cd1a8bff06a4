// Package memory implements the domain ledger interfaces with in-process
// maps. It backs tests and the single-node dev mode; every record is
// deep-copied on the way in and out so callers can never alias stored big
// integers.
package memory

import (
	"context"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mucks/proofmarket/internal/domain"
)

type betKey struct {
	marketID int64
	bettor   common.Address
}

// Ledger is a mutex-guarded in-memory implementation of domain.Ledger.
type Ledger struct {
	mu      sync.RWMutex
	markets map[int64]domain.Market
	bets    map[betKey]domain.Bet
	nextID  int64
}

// NewLedger creates an empty Ledger.
func NewLedger() *Ledger {
	return &Ledger{
		markets: make(map[int64]domain.Market),
		bets:    make(map[betKey]domain.Bet),
	}
}

// Create inserts m as an Open market and returns its assigned id. Ids are
// dense and start at 0.
func (l *Ledger) Create(ctx context.Context, m domain.Market) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	m.ID = l.nextID
	l.nextID++
	l.markets[m.ID] = cloneMarket(m)
	return m.ID, nil
}

// Get returns the market with the given id.
func (l *Ledger) Get(ctx context.Context, id int64) (domain.Market, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	m, ok := l.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return cloneMarket(m), nil
}

// List returns markets ordered by id descending.
func (l *Ledger) List(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.Market, 0, len(l.markets))
	for _, m := range l.markets {
		out = append(out, cloneMarket(m))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })

	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

// Count returns the number of markets ever created.
func (l *Ledger) Count(ctx context.Context) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.nextID, nil
}

// SetLocked transitions Open -> Locked.
func (l *Ledger) SetLocked(ctx context.Context, id int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.markets[id]
	if !ok {
		return domain.ErrNotFound
	}
	if m.State != domain.StateOpen {
		return domain.ErrConflict
	}
	m.State = domain.StateLocked
	l.markets[id] = m
	return nil
}

// SetResolved transitions Locked -> Resolved.
func (l *Ledger) SetResolved(ctx context.Context, id int64, winning domain.Side, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.markets[id]
	if !ok {
		return domain.ErrNotFound
	}
	if m.State != domain.StateLocked {
		return domain.ErrConflict
	}
	m.State = domain.StateResolved
	m.WinningSide = winning
	resolvedAt := at
	m.ResolvedAt = &resolvedAt
	l.markets[id] = m
	return nil
}

// RecordBet atomically adds amount to the market's side pool and to the
// bettor's cumulative stake on that side.
func (l *Ledger) RecordBet(ctx context.Context, marketID int64, bettor common.Address, side domain.Side, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.markets[marketID]
	if !ok {
		return domain.ErrNotFound
	}
	if m.State != domain.StateOpen {
		return domain.ErrConflict
	}

	m = cloneMarket(m)
	switch side {
	case domain.SideYes:
		m.YesPool.Add(m.YesPool, amount)
	case domain.SideNo:
		m.NoPool.Add(m.NoPool, amount)
	default:
		return domain.ErrInvalidSide
	}
	l.markets[marketID] = m

	key := betKey{marketID: marketID, bettor: bettor}
	b, ok := l.bets[key]
	if !ok {
		b = domain.Bet{
			MarketID:  marketID,
			Bettor:    bettor,
			YesAmount: new(big.Int),
			NoAmount:  new(big.Int),
		}
	} else {
		b = cloneBet(b)
	}
	if side == domain.SideYes {
		b.YesAmount.Add(b.YesAmount, amount)
	} else {
		b.NoAmount.Add(b.NoAmount, amount)
	}
	b.UpdatedAt = time.Now()
	l.bets[key] = b
	return nil
}

// GetBet returns the bet for (marketID, bettor).
func (l *Ledger) GetBet(ctx context.Context, marketID int64, bettor common.Address) (domain.Bet, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	b, ok := l.bets[betKey{marketID: marketID, bettor: bettor}]
	if !ok {
		return domain.Bet{}, domain.ErrNotFound
	}
	return cloneBet(b), nil
}

// AddStake adds amount to the bettor's stake without touching the market
// pools. The engine uses RecordBet; AddStake exists for tooling that
// backfills bet records.
func (l *Ledger) AddStake(ctx context.Context, marketID int64, bettor common.Address, side domain.Side, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := betKey{marketID: marketID, bettor: bettor}
	b, ok := l.bets[key]
	if !ok {
		b = domain.Bet{
			MarketID:  marketID,
			Bettor:    bettor,
			YesAmount: new(big.Int),
			NoAmount:  new(big.Int),
		}
	} else {
		b = cloneBet(b)
	}
	switch side {
	case domain.SideYes:
		b.YesAmount.Add(b.YesAmount, amount)
	case domain.SideNo:
		b.NoAmount.Add(b.NoAmount, amount)
	default:
		return domain.ErrInvalidSide
	}
	b.UpdatedAt = time.Now()
	l.bets[key] = b
	return nil
}

// ListByMarket returns every bet in the market, ordered by bettor address
// for determinism.
func (l *Ledger) ListByMarket(ctx context.Context, marketID int64) ([]domain.Bet, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []domain.Bet
	for key, b := range l.bets {
		if key.marketID == marketID {
			out = append(out, cloneBet(b))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Bettor.Hex() < out[j].Bettor.Hex()
	})
	return out, nil
}

// MarkClaimed flips the claimed flag false -> true exactly once.
func (l *Ledger) MarkClaimed(ctx context.Context, marketID int64, bettor common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := betKey{marketID: marketID, bettor: bettor}
	b, ok := l.bets[key]
	if !ok {
		return domain.ErrNotFound
	}
	if b.Claimed {
		return domain.ErrAlreadyClaimed
	}
	b = cloneBet(b)
	b.Claimed = true
	b.UpdatedAt = time.Now()
	l.bets[key] = b
	return nil
}

func cloneMarket(m domain.Market) domain.Market {
	out := m
	out.CreatorStake = new(big.Int).Set(m.CreatorStake)
	out.YesPool = new(big.Int).Set(m.YesPool)
	out.NoPool = new(big.Int).Set(m.NoPool)
	if m.ResolvedAt != nil {
		at := *m.ResolvedAt
		out.ResolvedAt = &at
	}
	return out
}

func cloneBet(b domain.Bet) domain.Bet {
	out := b
	out.YesAmount = new(big.Int).Set(b.YesAmount)
	out.NoAmount = new(big.Int).Set(b.NoAmount)
	return out
}

// Compile-time interface check.
var _ domain.Ledger = (*Ledger)(nil)
