package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mucks/proofmarket/internal/domain"
	"github.com/mucks/proofmarket/internal/engine"
)

// ---------------------------------------------------------------------------
// Narrow store interfaces required by the archiver.
//
// The archiver only requires the query methods it actually calls, not the
// full domain.Ledger. Both the Postgres and in-memory ledgers satisfy these
// implicitly.
// ---------------------------------------------------------------------------

// marketSource provides read access to a single market.
type marketSource interface {
	Get(ctx context.Context, id int64) (domain.Market, error)
}

// betSource provides read access to a market's bets.
type betSource interface {
	ListByMarket(ctx context.Context, marketID int64) ([]domain.Bet, error)
}

// ---------------------------------------------------------------------------
// SettlementArchiver
// ---------------------------------------------------------------------------

// SettlementArchiver writes an immutable settlement record to object storage
// when a market resolves: the final market state, every bet, and each
// bettor's entitled payout. The archive is an audit artifact; the live
// ledger remains the source of truth for claims.
type SettlementArchiver struct {
	writer  domain.BlobWriter
	markets marketSource
	bets    betSource
	logger  *slog.Logger
}

// NewSettlementArchiver creates a SettlementArchiver.
func NewSettlementArchiver(writer domain.BlobWriter, markets marketSource, bets betSource, logger *slog.Logger) *SettlementArchiver {
	return &SettlementArchiver{
		writer:  writer,
		markets: markets,
		bets:    bets,
		logger:  logger.With(slog.String("component", "settlement_archiver")),
	}
}

// settlementRecord is the JSON document uploaded per resolved market.
type settlementRecord struct {
	Market     domain.Market  `json:"market"`
	Bets       []domain.Bet   `json:"bets"`
	Payouts    []payoutRecord `json:"payouts"`
	ArchivedAt time.Time      `json:"archivedAt"`
}

// payoutRecord is one bettor's entitlement in the settlement document.
type payoutRecord struct {
	Bettor string `json:"bettor"`
	Amount string `json:"amount"`
}

// Archive snapshots the given resolved market and uploads it to
// settlements/market-<id>.json. Markets that are not resolved yet are
// rejected.
func (a *SettlementArchiver) Archive(ctx context.Context, marketID int64) error {
	m, err := a.markets.Get(ctx, marketID)
	if err != nil {
		return fmt.Errorf("s3blob: archive settlement %d: %w", marketID, err)
	}
	if m.State != domain.StateResolved {
		return fmt.Errorf("s3blob: archive settlement %d: %w", marketID, domain.ErrMarketNotResolved)
	}

	bets, err := a.bets.ListByMarket(ctx, marketID)
	if err != nil {
		return fmt.Errorf("s3blob: archive settlement %d: list bets: %w", marketID, err)
	}

	rec := settlementRecord{
		Market:     m,
		Bets:       bets,
		Payouts:    make([]payoutRecord, 0, len(bets)),
		ArchivedAt: time.Now().UTC(),
	}
	for _, b := range bets {
		rec.Payouts = append(rec.Payouts, payoutRecord{
			Bettor: b.Bettor.Hex(),
			Amount: engine.Payout(m, b).String(),
		})
	}

	buf, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("s3blob: archive settlement %d: marshal: %w", marketID, err)
	}

	path := settlementPath(marketID)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/json"); err != nil {
		return fmt.Errorf("s3blob: archive settlement %d: upload: %w", marketID, err)
	}

	a.logger.Info("settlement archived",
		slog.Int64("market_id", marketID),
		slog.String("path", path),
		slog.Int("bets", len(bets)),
	)
	return nil
}

// settlementPath builds the S3 key for a market's settlement document.
//
//	settlements/market-42.json
func settlementPath(marketID int64) string {
	return fmt.Sprintf("settlements/market-%d.json", marketID)
}
