package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mucks/proofmarket/internal/domain"
	"github.com/mucks/proofmarket/internal/server/middleware"
)

// betService is the slice of the engine the bet handler needs.
type betService interface {
	PlaceBet(ctx context.Context, marketID int64, bettor common.Address, side domain.Side, amount *big.Int) error
	GetBet(ctx context.Context, marketID int64, bettor common.Address) (domain.Bet, error)
}

// BetHandler serves bet placement and position lookup endpoints.
type BetHandler struct {
	svc    betService
	logger *slog.Logger
}

// NewBetHandler creates a BetHandler.
func NewBetHandler(svc betService, logger *slog.Logger) *BetHandler {
	return &BetHandler{
		svc:    svc,
		logger: logHandler(logger, "bet"),
	}
}

// placeBetRequest is the JSON body for POST /api/markets/{id}/bets. Side is
// "yes" or "no"; amount is a decimal wei string.
type placeBetRequest struct {
	Side   string `json:"side"`
	Amount string `json:"amount"`
}

// PlaceBet stakes the caller on one side of an open market.
// POST /api/markets/{id}/bets
func (h *BetHandler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.Caller(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "signature required")
		return
	}

	id, err := marketIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}

	var req placeBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	side := domain.ParseSide(req.Side)
	if side == domain.SideNone {
		writeDomainError(w, domain.ErrInvalidSide)
		return
	}

	amount, ok := parseAmount(req.Amount)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid bet amount")
		return
	}

	if err := h.svc.PlaceBet(r.Context(), id, caller, side, amount); err != nil {
		writeDomainError(w, err)
		return
	}

	h.logger.Info("bet placed",
		slog.Int64("market_id", id),
		slog.String("bettor", caller.Hex()),
		slog.String("side", side.String()),
		slog.String("amount", amount.String()),
	)
	writeJSON(w, http.StatusCreated, map[string]string{"status": "accepted"})
}

// GetBet returns one bettor's position on a market.
// GET /api/markets/{id}/bets/{address}
func (h *BetHandler) GetBet(w http.ResponseWriter, r *http.Request) {
	id, err := marketIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}

	raw := r.PathValue("address")
	if !common.IsHexAddress(raw) {
		writeError(w, http.StatusBadRequest, "invalid bettor address")
		return
	}

	bet, err := h.svc.GetBet(r.Context(), id, common.HexToAddress(raw))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bet)
}
