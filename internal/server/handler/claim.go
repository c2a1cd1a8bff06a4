package handler

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mucks/proofmarket/internal/server/middleware"
)

// claimService is the slice of the engine the claim handler needs.
type claimService interface {
	Claim(ctx context.Context, marketID int64, bettor common.Address) (*big.Int, error)
	Claimable(ctx context.Context, marketID int64, bettor common.Address) (*big.Int, error)
}

// ClaimHandler serves payout claims on resolved markets.
type ClaimHandler struct {
	svc    claimService
	logger *slog.Logger
}

// NewClaimHandler creates a ClaimHandler.
func NewClaimHandler(svc claimService, logger *slog.Logger) *ClaimHandler {
	return &ClaimHandler{
		svc:    svc,
		logger: logHandler(logger, "claim"),
	}
}

// Claim pays out the caller's winnings on a resolved market. Each bettor
// can claim at most once per market.
// POST /api/markets/{id}/claims
func (h *ClaimHandler) Claim(w http.ResponseWriter, r *http.Request) {
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

	amount, err := h.svc.Claim(r.Context(), id, caller)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	h.logger.Info("payout claimed",
		slog.Int64("market_id", id),
		slog.String("bettor", caller.Hex()),
		slog.String("amount", amount.String()),
	)
	writeJSON(w, http.StatusOK, map[string]string{"amount": amount.String()})
}

// Claimable previews the payout a bettor would receive without claiming.
// GET /api/markets/{id}/claims/{address}
func (h *ClaimHandler) Claimable(w http.ResponseWriter, r *http.Request) {
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

	amount, err := h.svc.Claimable(r.Context(), id, common.HexToAddress(raw))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"amount": amount.String()})
}
