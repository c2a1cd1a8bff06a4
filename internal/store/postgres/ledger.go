package postgres

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mucks/proofmarket/internal/domain"
)

// marketIDLockKey is the advisory lock class used to serialize dense id
// assignment across connections.
const marketIDLockKey = 0x70726f6f // "proo"

// Ledger implements domain.Ledger on top of a pgx connection pool. Market
// and bet methods live in market_store.go and bet_store.go; this file holds
// the type and the multi-record operations.
type Ledger struct {
	pool *pgxpool.Pool
}

// NewLedger creates a Ledger backed by the given connection pool.
func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

// RecordBet atomically adds amount to the market's side pool and to the
// bettor's cumulative stake. Both writes happen in one transaction; the pool
// update is conditional on the market still being Open and returns
// ErrConflict otherwise.
func (l *Ledger) RecordBet(ctx context.Context, marketID int64, bettor common.Address, side domain.Side, amount *big.Int) error {
	poolCol := "yes_pool"
	stakeCol := "yes_amount"
	if side == domain.SideNo {
		poolCol = "no_pool"
		stakeCol = "no_amount"
	} else if side != domain.SideYes {
		return domain.ErrInvalidSide
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin record bet: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE markets SET `+poolCol+` = `+poolCol+` + $1::numeric
		 WHERE id = $2 AND state = 0`,
		amount.String(), marketID,
	)
	if err != nil {
		return fmt.Errorf("postgres: add to pool, market %d: %w", marketID, err)
	}
	if tag.RowsAffected() == 0 {
		if err := l.marketExists(ctx, marketID); err != nil {
			return err
		}
		return domain.ErrConflict
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO bets (market_id, bettor, `+stakeCol+`, updated_at)
		 VALUES ($1, $2, $3::numeric, NOW())
		 ON CONFLICT (market_id, bettor) DO UPDATE SET
			`+stakeCol+` = bets.`+stakeCol+` + EXCLUDED.`+stakeCol+`,
			updated_at = NOW()`,
		marketID, addrKey(bettor), amount.String(),
	)
	if err != nil {
		return fmt.Errorf("postgres: add stake, market %d bettor %s: %w", marketID, bettor.Hex(), err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit record bet: %w", err)
	}
	return nil
}

// marketExists distinguishes an unknown market from a guard failure.
func (l *Ledger) marketExists(ctx context.Context, id int64) error {
	var exists bool
	if err := l.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM markets WHERE id = $1)", id,
	).Scan(&exists); err != nil {
		return fmt.Errorf("postgres: check market %d: %w", id, err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return nil
}

// addrKey normalizes an address for use as a key column.
func addrKey(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

// scanBig parses a NUMERIC column fetched as text.
func scanBig(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("postgres: invalid numeric %q", s)
	}
	return v, nil
}

// Compile-time interface check.
var _ domain.Ledger = (*Ledger)(nil)
