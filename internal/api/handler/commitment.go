// internal/api/handler/commitment.go
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"finflow-commitments/internal/api/types"
	"finflow-commitments/internal/domain"
	"finflow-commitments/internal/service"
	"finflow-commitments/internal/util"
)

// CommitmentHandler handles HTTP requests related to the commitment registry.
type CommitmentHandler struct {
	service service.CommitmentService
	logger  *slog.Logger
}

// NewCommitmentHandler creates a new CommitmentHandler.
func NewCommitmentHandler(svc service.CommitmentService, logger *slog.Logger) *CommitmentHandler {
	return &CommitmentHandler{
		service: svc,
		logger:  logger,
	}
}

// GetProduct returns a catalog entry.
// GET /api/v1/products/{productID}
func (h *CommitmentHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.service.GetProduct(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		RespondWithError(w, h.logger, err)
		return
	}
	RespondWithJSON(w, h.logger, http.StatusOK, product)
}

// CreateInvestment subscribes the caller to an investment product.
// POST /api/v1/commitments/investment
func (h *CommitmentHandler) CreateInvestment(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r, h.logger)
	if !ok {
		return
	}

	var req types.CreateInvestmentRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondWithError(w, h.logger, err)
		return
	}
	if req.ProductID == "" {
		RespondWithError(w, h.logger, util.ErrInvalidInput)
		return
	}

	commitment, err := h.service.CreateInvestmentCommitment(r.Context(), owner, req.ProductID)
	if err != nil {
		RespondWithError(w, h.logger, err)
		return
	}
	RespondWithJSON(w, h.logger, http.StatusCreated, commitment)
}

// CreateTakaful subscribes the caller to a takaful plan for a coverage period.
// POST /api/v1/commitments/takaful
func (h *CommitmentHandler) CreateTakaful(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r, h.logger)
	if !ok {
		return
	}

	var req types.CreateTakafulRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondWithError(w, h.logger, err)
		return
	}
	if req.PlanID == "" || req.PeriodStart.IsZero() || req.PeriodEnd.IsZero() {
		RespondWithError(w, h.logger, util.ErrInvalidInput)
		return
	}

	commitment, err := h.service.CreateTakafulCommitment(r.Context(), owner, req.PlanID, req.PeriodStart, req.PeriodEnd)
	if err != nil {
		RespondWithError(w, h.logger, err)
		return
	}
	RespondWithJSON(w, h.logger, http.StatusCreated, commitment)
}

// CreateZakat records a zakat obligation from computed terms.
// POST /api/v1/commitments/zakat
func (h *CommitmentHandler) CreateZakat(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r, h.logger)
	if !ok {
		return
	}

	var req types.CreateZakatRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondWithError(w, h.logger, err)
		return
	}

	commitment, err := h.service.CreateZakatObligation(r.Context(), owner, req.Terms())
	if err != nil {
		RespondWithError(w, h.logger, err)
		return
	}
	RespondWithJSON(w, h.logger, http.StatusCreated, commitment)
}

// ListMine lists the caller's commitments. With ?status=PENDING only orphans are returned.
// GET /api/v1/commitments
func (h *CommitmentHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r, h.logger)
	if !ok {
		return
	}

	commitments, err := h.service.ListMine(r.Context(), owner)
	if err != nil {
		RespondWithError(w, h.logger, err)
		return
	}

	if status := r.URL.Query().Get("status"); status != "" {
		filtered := commitments[:0]
		for _, c := range commitments {
			if string(c.Status) == status {
				filtered = append(filtered, c)
			}
		}
		commitments = filtered
	}
	RespondWithJSON(w, h.logger, http.StatusOK, types.NewListResponse(commitments))
}

// Get returns one of the caller's commitments.
// GET /api/v1/commitments/{commitmentID}
func (h *CommitmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r, h.logger)
	if !ok {
		return
	}

	commitment, err := h.service.GetCommitment(r.Context(), owner, chi.URLParam(r, "commitmentID"))
	if err != nil {
		RespondWithError(w, h.logger, err)
		return
	}
	RespondWithJSON(w, h.logger, http.StatusOK, commitment)
}

// Delete soft-deletes a zakat obligation that is not fully settled.
// DELETE /api/v1/commitments/{commitmentID}
func (h *CommitmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.service.DeleteZakatObligation(r.Context(), owner, chi.URLParam(r, "commitmentID")); err != nil {
		RespondWithError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListSettlements returns the settlement history of a commitment, oldest first.
// GET /api/v1/commitments/{commitmentID}/settlements
func (h *CommitmentHandler) ListSettlements(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r, h.logger)
	if !ok {
		return
	}

	settlements, err := h.service.ListSettlements(r.Context(), owner, chi.URLParam(r, "commitmentID"))
	if err != nil {
		RespondWithError(w, h.logger, err)
		return
	}
	RespondWithJSON(w, h.logger, http.StatusOK, types.NewListResponse[domain.Settlement](settlements))
}
