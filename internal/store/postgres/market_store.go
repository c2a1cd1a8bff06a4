package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"

	"github.com/mucks/proofmarket/internal/domain"
)

const marketCols = `id, creator, deadline, creator_stake::text, yes_pool::text,
	no_pool::text, state, winning_side, metadata_uri, created_at, resolved_at`

// Create inserts a new Open market with the next dense id (starting at 0).
// Id assignment is serialized with an advisory transaction lock so two
// concurrent creators never race for the same id.
func (l *Ledger) Create(ctx context.Context, m domain.Market) (int64, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("postgres: begin create market: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", int64(marketIDLockKey)); err != nil {
		return 0, fmt.Errorf("postgres: advisory lock: %w", err)
	}

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO markets (
			id, creator, deadline, creator_stake, yes_pool, no_pool,
			state, winning_side, metadata_uri, created_at
		)
		SELECT COALESCE(MAX(id) + 1, 0), $1, $2, $3::numeric, 0, 0, 0, 0, $4, $5
		FROM markets
		RETURNING id`,
		addrKey(m.Creator), m.Deadline, m.CreatorStake.String(), m.MetadataURI, m.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: insert market: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("postgres: commit create market: %w", err)
	}
	return id, nil
}

// Get retrieves a market by id.
func (l *Ledger) Get(ctx context.Context, id int64) (domain.Market, error) {
	row := l.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE id = $1`, id)
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %d: %w", id, err)
	}
	return m, nil
}

// List returns markets ordered by id descending with pagination.
func (l *Ledger) List(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	query := `SELECT ` + marketCols + ` FROM markets ORDER BY id DESC`
	args := []any{}
	argIdx := 1

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list markets rows: %w", err)
	}
	return markets, nil
}

// Count returns the number of markets ever created.
func (l *Ledger) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := l.pool.QueryRow(ctx, "SELECT COUNT(*) FROM markets").Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return count, nil
}

// SetLocked transitions Open -> Locked. ErrConflict if the market is in any
// other state.
func (l *Ledger) SetLocked(ctx context.Context, id int64) error {
	tag, err := l.pool.Exec(ctx,
		`UPDATE markets SET state = 1 WHERE id = $1 AND state = 0`, id)
	if err != nil {
		return fmt.Errorf("postgres: lock market %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		if err := l.marketExists(ctx, id); err != nil {
			return err
		}
		return domain.ErrConflict
	}
	return nil
}

// SetResolved transitions Locked -> Resolved with the winning side.
func (l *Ledger) SetResolved(ctx context.Context, id int64, winning domain.Side, at time.Time) error {
	tag, err := l.pool.Exec(ctx,
		`UPDATE markets SET state = 2, winning_side = $1, resolved_at = $2
		 WHERE id = $3 AND state = 1`,
		int16(winning), at, id)
	if err != nil {
		return fmt.Errorf("postgres: resolve market %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		if err := l.marketExists(ctx, id); err != nil {
			return err
		}
		return domain.ErrConflict
	}
	return nil
}

// scanMarket reads one market row. NUMERIC columns arrive as text and are
// parsed into big integers.
func scanMarket(row pgx.Row) (domain.Market, error) {
	var (
		m          domain.Market
		creator    string
		stake      string
		yesPool    string
		noPool     string
		state      int16
		winning    int16
		resolvedAt *time.Time
	)
	err := row.Scan(
		&m.ID, &creator, &m.Deadline, &stake, &yesPool,
		&noPool, &state, &winning, &m.MetadataURI, &m.CreatedAt, &resolvedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}

	m.Creator = common.HexToAddress(creator)
	m.State = domain.MarketState(state)
	m.WinningSide = domain.Side(winning)
	m.ResolvedAt = resolvedAt

	if m.CreatorStake, err = scanBig(stake); err != nil {
		return domain.Market{}, err
	}
	if m.YesPool, err = scanBig(yesPool); err != nil {
		return domain.Market{}, err
	}
	if m.NoPool, err = scanBig(noPool); err != nil {
		return domain.Market{}, err
	}
	return m, nil
}
