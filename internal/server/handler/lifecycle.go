package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mucks/proofmarket/internal/domain"
	"github.com/mucks/proofmarket/internal/server/middleware"
)

// lifecycleService is the slice of the engine the lifecycle handler needs.
type lifecycleService interface {
	Lock(ctx context.Context, marketID int64) error
	Resolve(ctx context.Context, marketID int64, winning domain.Side, caller common.Address) error
}

// LifecycleHandler serves the lock and resolve endpoints that move a market
// through its state machine.
type LifecycleHandler struct {
	svc    lifecycleService
	logger *slog.Logger
}

// NewLifecycleHandler creates a LifecycleHandler.
func NewLifecycleHandler(svc lifecycleService, logger *slog.Logger) *LifecycleHandler {
	return &LifecycleHandler{
		svc:    svc,
		logger: logHandler(logger, "lifecycle"),
	}
}

// Lock transitions an expired market from open to locked. Anyone may call
// it; locking an already locked or resolved market is a no-op.
// POST /api/markets/{id}/lock
func (h *LifecycleHandler) Lock(w http.ResponseWriter, r *http.Request) {
	id, err := marketIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}

	if err := h.svc.Lock(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}

	h.logger.Info("market locked", slog.Int64("market_id", id))
	writeJSON(w, http.StatusOK, map[string]string{"status": "locked"})
}

// resolveRequest is the JSON body for POST /api/markets/{id}/resolve.
type resolveRequest struct {
	WinningSide string `json:"winningSide"`
}

// Resolve records the oracle's verdict for a locked market. Only the
// configured oracle address may call it.
// POST /api/markets/{id}/resolve
func (h *LifecycleHandler) Resolve(w http.ResponseWriter, r *http.Request) {
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

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	side := domain.ParseSide(req.WinningSide)
	if side == domain.SideNone {
		writeDomainError(w, domain.ErrInvalidSide)
		return
	}

	if err := h.svc.Resolve(r.Context(), id, side, caller); err != nil {
		writeDomainError(w, err)
		return
	}

	h.logger.Info("market resolved",
		slog.Int64("market_id", id),
		slog.String("winning_side", side.String()),
	)
	writeJSON(w, http.StatusOK, map[string]string{
		"status":      "resolved",
		"winningSide": side.String(),
	})
}
