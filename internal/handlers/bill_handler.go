package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/kaskelas/backend/internal/models"
	"github.com/kaskelas/backend/internal/repository"
	"github.com/kaskelas/backend/internal/services"
)

type BillHandler struct {
	service   *services.PaymentService
	uploader  Uploader
	validator *services.ValidationHelper
}

func NewBillHandler(service *services.PaymentService, uploader Uploader) *BillHandler {
	return &BillHandler{
		service:   service,
		uploader:  uploader,
		validator: services.NewValidationHelper(),
	}
}

func billFilterFrom(r *http.Request) (repository.BillFilter, error) {
	p, err := paginationFrom(r)
	if err != nil {
		return repository.BillFilter{}, err
	}
	month, err := intQuery(r, "month")
	if err != nil {
		return repository.BillFilter{}, err
	}
	year, err := intQuery(r, "year")
	if err != nil {
		return repository.BillFilter{}, err
	}
	q := r.URL.Query()
	return repository.BillFilter{
		UserID:     q.Get("userId"),
		Status:     models.BillStatus(q.Get("status")),
		Month:      month,
		Year:       year,
		SortBy:     q.Get("sortBy"),
		Desc:       descending(r, true),
		Pagination: p,
	}, nil
}

// MyBills lists the caller's bills
// @Summary List my cash bills
// @Tags CashBills
// @Produce json
// @Security BearerAuth
// @Param status query string false "unpaid | awaiting_confirmation | paid"
// @Param month query int false "Month"
// @Param year query int false "Year"
// @Success 200 {object} services.SuccessResponse
// @Router /cash-bills/my [get]
func (h *BillHandler) MyBills(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	f, err := billFilterFrom(r)
	if err != nil {
		services.SendErrorResponse(w, err)
		return
	}
	// /my lists the caller's own bills whatever their role.
	f.UserID = actor.UserID
	actor.Role = models.RoleStudent

	bills, total, err := h.service.ListBills(r.Context(), actor, f)
	if err != nil {
		services.SendErrorResponse(w, err)
		return
	}
	services.SendPage(w, bills, services.NewPagination(f.Page, f.Limit, total))
}

func (h *BillHandler) GetBill(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	bill, err := h.service.GetBill(r.Context(), chi.URLParam(r, "id"), actor)
	if err != nil {
		services.SendErrorResponse(w, err)
		return
	}
	services.SendSuccess(w, http.StatusOK, bill, "")
}

type payRequest struct {
	PaymentMethod    string `json:"paymentMethod" validate:"required,oneof=bank ewallet cash"`
	PaymentAccountID string `json:"paymentAccountId" validate:"omitempty,max=64"`
}

// Pay submits a payment proof for a bill
// @Summary Pay a cash bill
// @Description Multipart form with paymentProof file, paymentMethod and optional paymentAccountId
// @Tags CashBills
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path string true "Bill ID"
// @Success 200 {object} services.SuccessResponse
// @Failure 400 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Failure 422 {object} services.ErrorResponse
// @Router /cash-bills/{id}/pay [post]
func (h *BillHandler) Pay(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	if err := parseMultipart(w, r); err != nil {
		services.SendErrorResponse(w, err)
		return
	}

	req := payRequest{
		PaymentMethod:    strings.TrimSpace(r.FormValue("paymentMethod")),
		PaymentAccountID: strings.TrimSpace(r.FormValue("paymentAccountId")),
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, err)
		return
	}

	billID := chi.URLParam(r, "id")
	if err := h.service.CheckSubmittable(r.Context(), billID, actor); err != nil {
		services.SendErrorResponse(w, err)
		return
	}

	proofURL, err := uploadFile(r, h.uploader, "paymentProof", "payments", imageTypes, true)
	if err != nil {
		services.SendErrorResponse(w, err)
		return
	}

	bill, err := h.service.SubmitPayment(r.Context(), billID, actor, services.SubmitPaymentRequest{
		Method:    models.PaymentMethod(req.PaymentMethod),
		ProofURL:  proofURL,
		AccountID: req.PaymentAccountID,
	})
	if err != nil {
		services.SendErrorResponse(w, err)
		return
	}
	services.SendSuccess(w, http.StatusOK, bill, "Payment submitted, waiting for confirmation")
}

func (h *BillHandler) CancelPayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	bill, err := h.service.CancelPayment(r.Context(), chi.URLParam(r, "id"), actor)
	if err != nil {
		services.SendErrorResponse(w, err)
		return
	}
	services.SendSuccess(w, http.StatusOK, bill, "Payment cancelled")
}
