// Package handler contains the HTTP handlers for the market API. Each
// handler depends on a narrow local interface satisfied by the engine, so
// tests can substitute fakes without standing up the full ledger.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mucks/proofmarket/internal/domain"
	"github.com/mucks/proofmarket/internal/server/middleware"
)

// marketService is the slice of the engine the market handler needs.
type marketService interface {
	CreateMarket(ctx context.Context, creator common.Address, deadline time.Time, metadataURI string, stake *big.Int) (int64, error)
	GetMarket(ctx context.Context, id int64) (domain.Market, error)
	ListMarkets(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error)
	MarketCount(ctx context.Context) (int64, error)
	Now() time.Time
}

// MarketHandler serves market creation and read endpoints.
type MarketHandler struct {
	svc    marketService
	logger *slog.Logger
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(svc marketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		svc:    svc,
		logger: logHandler(logger, "market"),
	}
}

// createMarketRequest is the JSON body for POST /api/markets. Deadline is
// unix seconds; stake is a decimal wei string.
type createMarketRequest struct {
	Deadline    int64  `json:"deadline"`
	MetadataURI string `json:"metadataURI"`
	Stake       string `json:"stake"`
}

// CreateMarket opens a new market with the caller as creator.
// POST /api/markets
func (h *MarketHandler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.Caller(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "signature required")
		return
	}

	var req createMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	stake, ok := parseAmount(req.Stake)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid stake amount")
		return
	}

	id, err := h.svc.CreateMarket(r.Context(), caller, time.Unix(req.Deadline, 0).UTC(), req.MetadataURI, stake)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	h.logger.Info("market created",
		slog.Int64("market_id", id),
		slog.String("creator", caller.Hex()),
	)
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

// GetMarket returns a single market. The reported state reflects the
// deadline: an open market past its deadline is shown as locked.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id, err := marketIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}

	m, err := h.svc.GetMarket(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	m.State = m.EffectiveState(h.svc.Now())
	writeJSON(w, http.StatusOK, m)
}

// ListMarkets returns markets newest-first with limit/offset pagination.
// GET /api/markets
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	markets, err := h.svc.ListMarkets(r.Context(), parseListOpts(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	now := h.svc.Now()
	for i := range markets {
		markets[i].State = markets[i].EffectiveState(now)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"markets": markets,
		"count":   len(markets),
	})
}

// MarketCount returns the total number of markets ever created.
// GET /api/markets/count
func (h *MarketHandler) MarketCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.MarketCount(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"count": n})
}
