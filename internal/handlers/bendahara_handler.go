package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kaskelas/backend/internal/models"
	"github.com/kaskelas/backend/internal/services"
)

// BendaharaHandler serves the treasurer-only routes. Mount behind RequireTreasurer.
type BendaharaHandler struct {
	payments  *services.PaymentService
	funds     *services.FundApplicationService
	ledger    *services.LedgerService
	dashboard *services.DashboardService
	validator *services.ValidationHelper
}

func NewBendaharaHandler(
	payments *services.PaymentService,
	funds *services.FundApplicationService,
	ledger *services.LedgerService,
	dashboard *services.DashboardService,
) *BendaharaHandler {
	return &BendaharaHandler{
		payments:  payments,
		funds:     funds,
		ledger:    ledger,
		dashboard: dashboard,
		validator: services.NewValidationHelper(),
	}
}

// Dashboard returns the class overview
// @Summary Treasurer dashboard
// @Tags Bendahara
// @Produce json
// @Security BearerAuth
// @Success 200 {object} services.SuccessResponse
// @Router /bendahara/dashboard [get]
func (h *BendaharaHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	dash, err := h.dashboard.Treasurer(r.Context(), actor)
	if err != nil {
		services.SendErrorResponse(w, err)
		return
	}
	services.SendSuccess(w, http.StatusOK, dash, "")
}

func (h *BendaharaHandler) ClassBills(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	f, err := billFilterFrom(r)
	if err != nil {
		services.SendErrorResponse(w, err)
		return
	}
	bills, total, err := h.payments.ListBills(r.Context(), actor, f)
	if err != nil {
		services.SendErrorResponse(w, err)
		return
	}
	services.SendPage(w, bills, services.NewPagination(f.Page, f.Limit, total))
}

func (h *BendaharaHandler) PendingPayments(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	p, err := paginationFrom(r)
	if err != nil {
		services.SendErrorResponse(w, err)
		return
	}
	bills, total, err := h.payments.PendingPayments(r.Context(), actor, p)
	if err != nil {
		services.SendErrorResponse(w, err)
		return
	}
	services.SendPage(w, bills, services.NewPagination(p.Page, p.Limit, total))
}

// ConfirmPayment marks a bill paid and books the income
// @Summary Confirm a submitted payment
// @Tags Bendahara
// @Produce json
// @Security BearerAuth
// @Param id path string true "Bill ID"
// @Success 200 {object} services.SuccessResponse
// @Failure 403 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /bendahara/cash-bills/{id}/confirm-payment [post]
func (h *BendaharaHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	bill, err := h.payments.ConfirmPayment(r.Context(), chi.URLParam(r, "id"), actor)
	if err != nil {
		services.SendErrorResponse(w, err)
		return
	}
	services.SendSuccess(w, http.StatusOK, bill, "Payment confirmed")
}

type rejectPaymentRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

func (h *BendaharaHandler) RejectPayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req rejectPaymentRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		services.SendErrorResponse(w, err)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, err)
		return
	}

	bill, err := h.payments.RejectPayment(r.Context(), chi.URLParam(r, "id"), actor, req.Reason)
	if err != nil {
		services.SendErrorResponse(w, err)
		return
	}
	services.SendSuccess(w, http.StatusOK, bill, "Payment rejected")
}

func (h *BendaharaHandler) ApproveFundApplication(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	app, err := h.funds.Approve(r.Context(), chi.URLParam(r, "id"), actor)
	if err != nil {
		services.SendErrorResponse(w, err)
		return
	}
	services.SendSuccess(w, http.StatusOK, app, "Fund application approved")
}

type rejectFundRequest struct {
	RejectionReason string `json:"rejectionReason" validate:"max=500"`
}

// RejectFundApplication requires a non-empty rejectionReason
// @Summary Reject a fund application
// @Tags Bendahara
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Fund application ID"
// @Param request body object{rejectionReason=string} true "Rejection reason"
// @Success 200 {object} services.SuccessResponse
// @Failure 400 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /bendahara/fund-applications/{id}/reject [post]
func (h *BendaharaHandler) RejectFundApplication(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req rejectFundRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		services.SendErrorResponse(w, err)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, err)
		return
	}

	app, err := h.funds.Reject(r.Context(), chi.URLParam(r, "id"), actor, req.RejectionReason)
	if err != nil {
		services.SendErrorResponse(w, err)
		return
	}
	services.SendSuccess(w, http.StatusOK, app, "Fund application rejected")
}

// RekapKas summarizes the class ledger over an optional startDate/endDate range.
func (h *BendaharaHandler) RekapKas(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	from, to, err := dateRange(r)
	if err != nil {
		services.SendErrorResponse(w, err)
		return
	}
	summary, err := h.ledger.Recap(r.Context(), actor.ClassID, from, to)
	if err != nil {
		services.SendErrorResponse(w, err)
		return
	}
	services.SendSuccess(w, http.StatusOK, summary, "")
}

func (h *BendaharaHandler) Students(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	students, err := h.dashboard.Students(r.Context(), actor)
	if err != nil {
		services.SendErrorResponse(w, err)
		return
	}
	services.SendSuccess(w, http.StatusOK, students, "")
}

type createTransactionRequest struct {
	ClassID     string `json:"classId" validate:"omitempty,max=64"`
	Type        string `json:"type" validate:"required,oneof=income expense"`
	Category    string `json:"category" validate:"omitempty,max=50"`
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	Date        string `json:"date" validate:"omitempty"`
	Description string `json:"description" validate:"required,min=3,max=255"`
}

// CreateTransaction records a manual income or expense
// @Summary Create manual transaction
// @Tags Bendahara
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 201 {object} services.SuccessResponse
// @Failure 400 {object} services.ErrorResponse
// @Router /bendahara/transactions [post]
func (h *BendaharaHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req createTransactionRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		services.SendErrorResponse(w, err)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, err)
		return
	}
	date, err := parseDate(req.Date, "date")
	if err != nil {
		services.SendErrorResponse(w, err)
		return
	}

	var day time.Time
	if date != nil {
		day = *date
	}
	entry, err := h.ledger.CreateManualTransaction(r.Context(), actor, services.ManualTransactionRequest{
		ClassID:     req.ClassID,
		Type:        models.TransactionType(req.Type),
		Category:    req.Category,
		Amount:      req.Amount,
		Date:        day,
		Description: req.Description,
	})
	if err != nil {
		services.SendErrorResponse(w, err)
		return
	}
	services.SendSuccess(w, http.StatusCreated, entry, "Transaction created")
}
