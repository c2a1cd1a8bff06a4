package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"

	"github.com/mucks/proofmarket/internal/domain"
)

const betCols = `market_id, bettor, yes_amount::text, no_amount::text, claimed, updated_at`

// GetBet retrieves the bet for (marketID, bettor).
func (l *Ledger) GetBet(ctx context.Context, marketID int64, bettor common.Address) (domain.Bet, error) {
	row := l.pool.QueryRow(ctx,
		`SELECT `+betCols+` FROM bets WHERE market_id = $1 AND bettor = $2`,
		marketID, addrKey(bettor))
	b, err := scanBet(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Bet{}, domain.ErrNotFound
		}
		return domain.Bet{}, fmt.Errorf("postgres: get bet %d/%s: %w", marketID, bettor.Hex(), err)
	}
	return b, nil
}

// AddStake adds amount to the bettor's stake on the given side, creating the
// record on first use.
func (l *Ledger) AddStake(ctx context.Context, marketID int64, bettor common.Address, side domain.Side, amount *big.Int) error {
	stakeCol := "yes_amount"
	switch side {
	case domain.SideYes:
	case domain.SideNo:
		stakeCol = "no_amount"
	default:
		return domain.ErrInvalidSide
	}

	_, err := l.pool.Exec(ctx,
		`INSERT INTO bets (market_id, bettor, `+stakeCol+`, updated_at)
		 VALUES ($1, $2, $3::numeric, NOW())
		 ON CONFLICT (market_id, bettor) DO UPDATE SET
			`+stakeCol+` = bets.`+stakeCol+` + EXCLUDED.`+stakeCol+`,
			updated_at = NOW()`,
		marketID, addrKey(bettor), amount.String())
	if err != nil {
		return fmt.Errorf("postgres: add stake %d/%s: %w", marketID, bettor.Hex(), err)
	}
	return nil
}

// ListByMarket returns every bet placed in the market.
func (l *Ledger) ListByMarket(ctx context.Context, marketID int64) ([]domain.Bet, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT `+betCols+` FROM bets WHERE market_id = $1 ORDER BY bettor`,
		marketID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bets for market %d: %w", marketID, err)
	}
	defer rows.Close()

	var bets []domain.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan bet: %w", err)
		}
		bets = append(bets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list bets rows: %w", err)
	}
	return bets, nil
}

// MarkClaimed flips the claimed flag false -> true. The conditional UPDATE
// makes the flip first-writer-wins: a concurrent second claim sees zero rows
// affected and gets ErrAlreadyClaimed.
func (l *Ledger) MarkClaimed(ctx context.Context, marketID int64, bettor common.Address) error {
	tag, err := l.pool.Exec(ctx,
		`UPDATE bets SET claimed = TRUE, updated_at = NOW()
		 WHERE market_id = $1 AND bettor = $2 AND claimed = FALSE`,
		marketID, addrKey(bettor))
	if err != nil {
		return fmt.Errorf("postgres: mark claimed %d/%s: %w", marketID, bettor.Hex(), err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := l.pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM bets WHERE market_id = $1 AND bettor = $2)",
			marketID, addrKey(bettor),
		).Scan(&exists); err != nil {
			return fmt.Errorf("postgres: check bet %d/%s: %w", marketID, bettor.Hex(), err)
		}
		if !exists {
			return domain.ErrNotFound
		}
		return domain.ErrAlreadyClaimed
	}
	return nil
}

// scanBet reads one bet row.
func scanBet(row pgx.Row) (domain.Bet, error) {
	var (
		b      domain.Bet
		bettor string
		yes    string
		no     string
	)
	err := row.Scan(&b.MarketID, &bettor, &yes, &no, &b.Claimed, &b.UpdatedAt)
	if err != nil {
		return domain.Bet{}, err
	}

	b.Bettor = common.HexToAddress(bettor)
	if b.YesAmount, err = scanBig(yes); err != nil {
		return domain.Bet{}, err
	}
	if b.NoAmount, err = scanBig(no); err != nil {
		return domain.Bet{}, err
	}
	return b, nil
}
