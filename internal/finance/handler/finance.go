package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"hostel/internal/finance/service"
	httputil "hostel/pkg/http"
	"hostel/pkg/logger"
	"hostel/pkg/model"

	"github.com/julienschmidt/httprouter"
)

// RenewalProcessor applies a ledger-funded draw toward an active booking.
// Implemented by the booking service.
type RenewalProcessor interface {
	ProcessRenewal(ctx context.Context, req *model.RenewalRequest) (*model.BookingResult, error)
}

type FinanceHandler struct {
	service  service.FinanceService
	renewals RenewalProcessor
	log      *logger.Logger
}

func NewFinanceHandler(service service.FinanceService, renewals RenewalProcessor, log *logger.Logger) *FinanceHandler {
	return &FinanceHandler{
		service:  service,
		renewals: renewals,
		log:      log,
	}
}

func (h *FinanceHandler) GetBalance(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	studentID := ps.ByName("id")

	balance, err := h.service.Balance(r.Context(), studentID)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetBalance", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, map[string]any{
		"student_id": studentID,
		"balance":    balance,
	}); err != nil {
		h.log.Error("failed to write success response", "handler", "GetBalance", "error", err)
	}
}

func (h *FinanceHandler) GetTransactions(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetTransactions", "error", writeErr)
		}
		return
	}

	var txns []*model.FinanceTransaction
	var total int64
	if studentID := r.URL.Query().Get("student_id"); studentID != "" {
		txns, total, err = h.service.TransactionsByStudent(r.Context(), studentID, limit, offset)
	} else {
		txns, total, err = h.service.Transactions(r.Context(), limit, offset)
	}
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetTransactions", "error", writeErr)
		}
		return
	}

	if err := httputil.WritePaginated(w, txns, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetTransactions", "error", err)
	}
}

func (h *FinanceHandler) GetSummary(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	summary, err := h.service.Summary(r.Context())
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetSummary", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, summary); err != nil {
		h.log.Error("failed to write success response", "handler", "GetSummary", "error", err)
	}
}

func (h *FinanceHandler) ProcessRenewal(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.RenewalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "ProcessRenewal", "error", writeErr)
		}
		return
	}

	result, err := h.renewals.ProcessRenewal(r.Context(), &req)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ProcessRenewal", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, result); err != nil {
		h.log.Error("failed to write success response", "handler", "ProcessRenewal", "error", err)
	}
}

func (h *FinanceHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/finance/students/:id/balance", h.GetBalance)
	router.GET("/api/v1/finance/transactions", h.GetTransactions)
	router.GET("/api/v1/finance/summary", h.GetSummary)
	router.POST("/api/v1/finance/renewals", h.ProcessRenewal)
}
