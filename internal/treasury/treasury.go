// Package treasury tracks outbound value transfers. The engine escrows
// inbound stakes implicitly (the host delivers funds with each call); the
// Treasury is the outbound side, recording every payout in an append-only
// ledger so total paid value can be audited against market custody.
package treasury

import (
	"context"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mucks/proofmarket/internal/domain"
)

// Transfer is a single settled payout.
type Transfer struct {
	To     common.Address
	Amount *big.Int
	At     time.Time
}

// Treasury implements domain.Payer. Transfers never fail and are recorded in
// order; deployments that settle on-chain replace it with a chain-backed
// payer behind the same interface.
type Treasury struct {
	mu        sync.Mutex
	transfers []Transfer
	paid      map[common.Address]*big.Int
	logger    *slog.Logger
}

// New creates an empty Treasury.
func New(logger *slog.Logger) *Treasury {
	return &Treasury{
		transfers: make([]Transfer, 0, 64),
		paid:      make(map[common.Address]*big.Int),
		logger:    logger.With(slog.String("component", "treasury")),
	}
}

// Pay records a transfer of amount to the given address.
func (t *Treasury) Pay(ctx context.Context, to common.Address, amount *big.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	amt := new(big.Int).Set(amount)
	t.transfers = append(t.transfers, Transfer{To: to, Amount: amt, At: time.Now()})

	total, ok := t.paid[to]
	if !ok {
		total = new(big.Int)
		t.paid[to] = total
	}
	total.Add(total, amt)

	t.logger.DebugContext(ctx, "transfer recorded",
		slog.String("to", to.Hex()),
		slog.String("amount", amt.String()),
	)
	return nil
}

// PaidTo returns the cumulative amount transferred to the given address.
func (t *Treasury) PaidTo(addr common.Address) *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()

	total, ok := t.paid[addr]
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(total)
}

// TotalPaid returns the cumulative amount transferred to all addresses.
func (t *Treasury) TotalPaid() *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()

	total := new(big.Int)
	for _, tr := range t.transfers {
		total.Add(total, tr.Amount)
	}
	return total
}

// Transfers returns a copy of the transfer log.
func (t *Treasury) Transfers() []Transfer {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Transfer, len(t.transfers))
	for i, tr := range t.transfers {
		out[i] = Transfer{To: tr.To, Amount: new(big.Int).Set(tr.Amount), At: tr.At}
	}
	return out
}

// Compile-time interface check.
var _ domain.Payer = (*Treasury)(nil)
