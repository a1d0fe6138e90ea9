// internal/api/handler/settlement.go
package handler

import (
	"log/slog"
	"net/http"

	"finflow-commitments/internal/api/types"
	"finflow-commitments/internal/domain"
	"finflow-commitments/internal/service"
	"finflow-commitments/internal/util"
)

// SettlementHandler handles HTTP requests related to the settlement engine.
type SettlementHandler struct {
	service service.SettlementService
	logger  *slog.Logger
}

// NewSettlementHandler creates a new SettlementHandler.
func NewSettlementHandler(svc service.SettlementService, logger *slog.Logger) *SettlementHandler {
	return &SettlementHandler{
		service: svc,
		logger:  logger,
	}
}

// Settle debits the caller's wallet and records the settlement.
// POST /api/v1/settlements
func (h *SettlementHandler) Settle(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r, h.logger)
	if !ok {
		return
	}

	var req types.SettleRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondWithError(w, h.logger, err)
		return
	}

	// Basic validation
	if req.CommitmentID == "" || !req.Amount.IsPositive() {
		RespondWithError(w, h.logger, util.ErrInvalidInput)
		return
	}
	if err := domain.ValidateWalletCode(req.WalletCode); err != nil {
		RespondWithError(w, h.logger, err)
		return
	}

	in := service.SettleRequest{
		CommitmentID: req.CommitmentID,
		Amount:       req.Amount,
		WalletCode:   req.WalletCode,
		NextDueAt:    req.NextDueAt,
	}
	if req.OccurredAt != nil {
		in.OccurredAt = *req.OccurredAt
	}

	settlement, commitment, err := h.service.Settle(r.Context(), owner, in)
	if err != nil {
		RespondWithError(w, h.logger, err)
		return
	}
	RespondWithJSON(w, h.logger, http.StatusCreated, types.SettleResponse{
		Settlement: settlement,
		Commitment: commitment,
	})
}

// GetBalance returns the caller's wallet balance.
// GET /api/v1/wallet/balance
func (h *SettlementHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r, h.logger)
	if !ok {
		return
	}

	balance, err := h.service.GetBalance(r.Context(), owner)
	if err != nil {
		RespondWithError(w, h.logger, err)
		return
	}
	RespondWithJSON(w, h.logger, http.StatusOK, balance)
}
