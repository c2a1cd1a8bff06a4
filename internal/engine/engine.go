// Package engine implements the prediction-market ledger core: market
// lifecycle, bet accounting, oracle resolution, and exactly-once claim
// settlement. All fund custody and every state transition goes through the
// Engine; everything above it (HTTP, WS, notifications) is a consumer of its
// operations and events.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mucks/proofmarket/internal/domain"
)

// defaultLockTTL bounds how long a distributed market lock may be held; an
// engine process that dies mid-operation releases the market after this
// interval.
const defaultLockTTL = 15 * time.Second

// Engine is the market registry facade. It serializes mutations per market,
// enforces every state-machine and authorization guard, and emits an event
// after each committed change.
type Engine struct {
	ledger  domain.Ledger
	payer   domain.Payer
	bus     domain.EventBus
	clock   domain.Clock
	oracle  common.Address
	locks   *marketLocks
	dlocks  domain.LockManager // optional, for multi-process deployments
	lockTTL time.Duration
	logger  *slog.Logger
}

// Options carries the optional collaborators of an Engine.
type Options struct {
	// Clock overrides the wall clock. Nil means domain.SystemClock.
	Clock domain.Clock
	// LockManager adds cross-process mutual exclusion on top of the
	// in-process per-market locks. Nil disables it.
	LockManager domain.LockManager
	// LockTTL bounds how long a distributed lock is held. Zero means
	// defaultLockTTL. Ignored when LockManager is nil.
	LockTTL time.Duration
}

// New creates an Engine. The oracle address is fixed for the lifetime of the
// engine; only this identity may resolve markets.
func New(ledger domain.Ledger, payer domain.Payer, bus domain.EventBus, oracle common.Address, logger *slog.Logger, opts Options) *Engine {
	clock := opts.Clock
	if clock == nil {
		clock = domain.SystemClock{}
	}
	ttl := opts.LockTTL
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &Engine{
		ledger:  ledger,
		payer:   payer,
		bus:     bus,
		clock:   clock,
		oracle:  oracle,
		locks:   newMarketLocks(),
		dlocks:  opts.LockManager,
		lockTTL: ttl,
		logger:  logger.With(slog.String("component", "engine")),
	}
}

// Oracle returns the configured oracle identity.
func (e *Engine) Oracle() common.Address { return e.oracle }

// CreateMarket opens a new market. The deadline must lie strictly in the
// future and the creator stake must be positive; the stake is escrowed into
// the market's custody and distributed to winners at resolution.
func (e *Engine) CreateMarket(ctx context.Context, creator common.Address, deadline time.Time, metadataURI string, stake *big.Int) (int64, error) {
	now := e.clock.Now()
	if !deadline.After(now) {
		return 0, domain.ErrInvalidDeadline
	}
	if stake == nil || stake.Sign() <= 0 {
		return 0, domain.ErrZeroStake
	}

	m := domain.Market{
		Creator:      creator,
		Deadline:     deadline,
		CreatorStake: new(big.Int).Set(stake),
		YesPool:      new(big.Int),
		NoPool:       new(big.Int),
		State:        domain.StateOpen,
		WinningSide:  domain.SideNone,
		MetadataURI:  metadataURI,
		CreatedAt:    now,
	}

	id, err := e.ledger.Create(ctx, m)
	if err != nil {
		return 0, fmt.Errorf("engine: create market: %w", err)
	}

	e.logger.InfoContext(ctx, "market created",
		slog.Int64("market_id", id),
		slog.String("creator", creator.Hex()),
		slog.Time("deadline", deadline),
		slog.String("stake", stake.String()),
	)
	e.publish(ctx, domain.Event{
		Type:     domain.EventMarketCreated,
		MarketID: id,
		Actor:    creator,
		Amount:   new(big.Int).Set(stake),
		Deadline: deadline,
		At:       now,
	})
	return id, nil
}

// GetMarket returns the market with the given id.
func (e *Engine) GetMarket(ctx context.Context, id int64) (domain.Market, error) {
	return e.ledger.Get(ctx, id)
}

// ListMarkets returns markets ordered by id descending.
func (e *Engine) ListMarkets(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	return e.ledger.List(ctx, opts)
}

// MarketCount returns the number of markets ever created. Ids are dense and
// start at 0, so this is also the next id to be assigned.
func (e *Engine) MarketCount(ctx context.Context) (int64, error) {
	return e.ledger.Count(ctx)
}

// GetBet returns the bettor's position in the market, or ErrNotFound if the
// bettor never staked in it.
func (e *Engine) GetBet(ctx context.Context, marketID int64, bettor common.Address) (domain.Bet, error) {
	return e.ledger.GetBet(ctx, marketID, bettor)
}

// PlaceBet stakes amount on the given side. The market must still be Open
// and its deadline must not have passed; an expired market rejects bets even
// when no explicit lock has been recorded yet.
func (e *Engine) PlaceBet(ctx context.Context, marketID int64, bettor common.Address, side domain.Side, amount *big.Int) error {
	if side != domain.SideYes && side != domain.SideNo {
		return domain.ErrInvalidSide
	}
	if amount == nil || amount.Sign() <= 0 {
		return domain.ErrZeroAmount
	}

	unlock, err := e.acquire(ctx, marketID)
	if err != nil {
		return err
	}
	defer unlock()

	m, err := e.ledger.Get(ctx, marketID)
	if err != nil {
		return err
	}
	if m.EffectiveState(e.clock.Now()) != domain.StateOpen {
		return domain.ErrMarketClosed
	}

	if err := e.ledger.RecordBet(ctx, marketID, bettor, side, amount); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return domain.ErrMarketClosed
		}
		return fmt.Errorf("engine: record bet: %w", err)
	}

	e.logger.InfoContext(ctx, "bet placed",
		slog.Int64("market_id", marketID),
		slog.String("bettor", bettor.Hex()),
		slog.String("side", side.String()),
		slog.String("amount", amount.String()),
	)
	e.publish(ctx, domain.Event{
		Type:     domain.EventBetPlaced,
		MarketID: marketID,
		Actor:    bettor,
		Side:     side,
		Amount:   new(big.Int).Set(amount),
		At:       e.clock.Now(),
	})
	return nil
}

// Lock records the Open -> Locked transition once the deadline has passed.
// Anyone may call it; calling it on an already Locked or Resolved market is
// a no-op.
func (e *Engine) Lock(ctx context.Context, marketID int64) error {
	unlock, err := e.acquire(ctx, marketID)
	if err != nil {
		return err
	}
	defer unlock()

	m, err := e.ledger.Get(ctx, marketID)
	if err != nil {
		return err
	}
	if m.State != domain.StateOpen {
		return nil
	}
	if e.clock.Now().Before(m.Deadline) {
		return domain.ErrTooEarly
	}

	if err := e.ledger.SetLocked(ctx, marketID); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// Another writer locked or resolved it first; lock is idempotent.
			return nil
		}
		return fmt.Errorf("engine: lock market: %w", err)
	}

	e.logger.InfoContext(ctx, "market locked", slog.Int64("market_id", marketID))
	e.publish(ctx, domain.Event{
		Type:     domain.EventMarketLocked,
		MarketID: marketID,
		At:       e.clock.Now(),
	})
	return nil
}

// Resolve commits the market outcome. Only the configured oracle may call
// it, the winning side must be Yes or No, and the market must be Locked --
// an expired market that was never explicitly locked is locked implicitly
// first. Resolution is a one-shot, irreversible commit.
func (e *Engine) Resolve(ctx context.Context, marketID int64, winning domain.Side, caller common.Address) error {
	if caller != e.oracle {
		return domain.ErrUnauthorized
	}
	if winning != domain.SideYes && winning != domain.SideNo {
		return domain.ErrInvalidSide
	}

	unlock, err := e.acquire(ctx, marketID)
	if err != nil {
		return err
	}
	defer unlock()

	m, err := e.ledger.Get(ctx, marketID)
	if err != nil {
		return err
	}

	now := e.clock.Now()
	switch m.State {
	case domain.StateResolved:
		return domain.ErrAlreadyResolved
	case domain.StateOpen:
		if now.Before(m.Deadline) {
			return domain.ErrNotLocked
		}
		// Expired but never explicitly locked: force the lock so the stored
		// state never skips Open -> Locked.
		if err := e.ledger.SetLocked(ctx, marketID); err != nil && !errors.Is(err, domain.ErrConflict) {
			return fmt.Errorf("engine: implicit lock: %w", err)
		}
		e.publish(ctx, domain.Event{
			Type:     domain.EventMarketLocked,
			MarketID: marketID,
			At:       now,
		})
	}

	if err := e.ledger.SetResolved(ctx, marketID, winning, now); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return domain.ErrAlreadyResolved
		}
		return fmt.Errorf("engine: resolve market: %w", err)
	}

	e.logger.InfoContext(ctx, "market resolved",
		slog.Int64("market_id", marketID),
		slog.String("winning_side", winning.String()),
	)
	e.publish(ctx, domain.Event{
		Type:     domain.EventMarketResolved,
		MarketID: marketID,
		Actor:    caller,
		Side:     winning,
		At:       now,
	})

	// Nobody staked on the winning side: the whole custody goes to the
	// creator, settled here so no claim can ever divide by zero.
	if m.Pool(winning).Sign() == 0 {
		total := m.TotalCustody()
		if total.Sign() > 0 {
			if err := e.payer.Pay(ctx, m.Creator, total); err != nil {
				return fmt.Errorf("engine: pay creator fallback: %w", err)
			}
			e.logger.InfoContext(ctx, "empty winning pool, custody routed to creator",
				slog.Int64("market_id", marketID),
				slog.String("creator", m.Creator.Hex()),
				slog.String("amount", total.String()),
			)
			e.publish(ctx, domain.Event{
				Type:     domain.EventClaimed,
				MarketID: marketID,
				Actor:    m.Creator,
				Amount:   total,
				At:       now,
			})
		}
	}
	return nil
}

// Claim settles the caller's winnings in a resolved market. It is
// exactly-once per (market, bettor): the claimed flag is committed before
// the value transfer starts, so a retried or re-entrant call cannot extract
// a second payout. Returns the paid amount.
func (e *Engine) Claim(ctx context.Context, marketID int64, bettor common.Address) (*big.Int, error) {
	unlock, err := e.acquire(ctx, marketID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	m, err := e.ledger.Get(ctx, marketID)
	if err != nil {
		return nil, err
	}
	if m.State != domain.StateResolved {
		return nil, domain.ErrMarketNotResolved
	}

	bet, err := e.ledger.GetBet(ctx, marketID, bettor)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNothingToClaim
		}
		return nil, err
	}
	if bet.Claimed {
		return nil, domain.ErrAlreadyClaimed
	}
	if bet.Stake(m.WinningSide).Sign() == 0 {
		return nil, domain.ErrNothingToClaim
	}

	amount := Payout(m, bet)

	// Bookkeeping first. After MarkClaimed succeeds no concurrent or
	// re-entrant call can reach Pay for this (market, bettor) again.
	if err := e.ledger.MarkClaimed(ctx, marketID, bettor); err != nil {
		return nil, err
	}

	if err := e.payer.Pay(ctx, bettor, amount); err != nil {
		return nil, fmt.Errorf("engine: pay claim: %w", err)
	}

	e.logger.InfoContext(ctx, "claim settled",
		slog.Int64("market_id", marketID),
		slog.String("bettor", bettor.Hex()),
		slog.String("amount", amount.String()),
	)
	e.publish(ctx, domain.Event{
		Type:     domain.EventClaimed,
		MarketID: marketID,
		Actor:    bettor,
		Amount:   new(big.Int).Set(amount),
		At:       e.clock.Now(),
	})
	return amount, nil
}

// Claimable previews what a bettor would receive from Claim right now,
// without mutating anything. Returns zero for unresolved markets, claimed
// bets, and bettors with no winning stake.
func (e *Engine) Claimable(ctx context.Context, marketID int64, bettor common.Address) (*big.Int, error) {
	m, err := e.ledger.Get(ctx, marketID)
	if err != nil {
		return nil, err
	}
	if m.State != domain.StateResolved {
		return new(big.Int), nil
	}
	bet, err := e.ledger.GetBet(ctx, marketID, bettor)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return new(big.Int), nil
		}
		return nil, err
	}
	if bet.Claimed {
		return new(big.Int), nil
	}
	return Payout(m, bet), nil
}

// Now exposes the engine clock, used by read models that derive effective
// state.
func (e *Engine) Now() time.Time { return e.clock.Now() }

// acquire takes the in-process market mutex, and the distributed market lock
// when a lock manager is configured. The returned function releases both.
func (e *Engine) acquire(ctx context.Context, marketID int64) (func(), error) {
	release := e.locks.lock(marketID)
	if e.dlocks == nil {
		return release, nil
	}

	dunlock, err := e.dlocks.Acquire(ctx, fmt.Sprintf("market:%d", marketID), e.lockTTL)
	if err != nil {
		release()
		return nil, err
	}
	return func() {
		dunlock()
		release()
	}, nil
}

// publish emits an event on a best-effort basis; a bus failure never affects
// ledger state.
func (e *Engine) publish(ctx context.Context, ev domain.Event) {
	if e.bus == nil {
		return
	}
	if err := e.bus.Publish(ctx, ev); err != nil {
		e.logger.WarnContext(ctx, "event publish failed",
			slog.String("type", string(ev.Type)),
			slog.Int64("market_id", ev.MarketID),
			slog.String("error", err.Error()),
		)
	}
}
