package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/kaskelas/backend/internal/models"
	"github.com/kaskelas/backend/internal/services"
)

type PaymentAccountHandler struct {
	service   *services.PaymentAccountService
	validator *services.ValidationHelper
}

func NewPaymentAccountHandler(service *services.PaymentAccountService) *PaymentAccountHandler {
	return &PaymentAccountHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

type paymentAccountRequest struct {
	Name          string `json:"name" validate:"required,max=100"`
	AccountType   string `json:"accountType" validate:"required,oneof=bank ewallet"`
	AccountNumber string `json:"accountNumber" validate:"required,max=50"`
	AccountHolder string `json:"accountHolder" validate:"required,max=100"`
	Description   string `json:"description" validate:"max=255"`
}

func (req paymentAccountRequest) toService() services.PaymentAccountRequest {
	return services.PaymentAccountRequest{
		Name:          req.Name,
		AccountType:   models.AccountType(req.AccountType),
		AccountNumber: req.AccountNumber,
		AccountHolder: req.AccountHolder,
		Description:   req.Description,
	}
}

// Active lists the accounts students may pay into.
func (h *PaymentAccountHandler) Active(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, models.AccountActive)
}

func (h *PaymentAccountHandler) List(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, models.AccountStatus(r.URL.Query().Get("status")))
}

func (h *PaymentAccountHandler) list(w http.ResponseWriter, r *http.Request, status models.AccountStatus) {
	accounts, err := h.service.List(r.Context(), status)
	if err != nil {
		services.SendErrorResponse(w, err)
		return
	}
	services.SendSuccess(w, http.StatusOK, accounts, "")
}

func (h *PaymentAccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	acc, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		services.SendErrorResponse(w, err)
		return
	}
	services.SendSuccess(w, http.StatusOK, acc, "")
}

func (h *PaymentAccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req paymentAccountRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		services.SendErrorResponse(w, err)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, err)
		return
	}

	acc, err := h.service.Create(r.Context(), actor, req.toService())
	if err != nil {
		services.SendErrorResponse(w, err)
		return
	}
	services.SendSuccess(w, http.StatusCreated, acc, "Payment account created")
}

func (h *PaymentAccountHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req paymentAccountRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		services.SendErrorResponse(w, err)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, err)
		return
	}

	acc, err := h.service.Update(r.Context(), actor, chi.URLParam(r, "id"), req.toService())
	if err != nil {
		services.SendErrorResponse(w, err)
		return
	}
	services.SendSuccess(w, http.StatusOK, acc, "Payment account updated")
}

// Delete removes an unused account
// @Summary Delete payment account
// @Tags PaymentAccounts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Payment account ID"
// @Success 200 {object} services.SuccessResponse
// @Failure 409 {object} services.ErrorResponse "Account is referenced by bills"
// @Router /payment-accounts/{id} [delete]
func (h *PaymentAccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		services.SendErrorResponse(w, err)
		return
	}
	services.SendSuccess(w, http.StatusOK, nil, "Payment account deleted")
}

func (h *PaymentAccountHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, models.AccountActive)
}

func (h *PaymentAccountHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, models.AccountInactive)
}

func (h *PaymentAccountHandler) setStatus(w http.ResponseWriter, r *http.Request, status models.AccountStatus) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	acc, err := h.service.SetStatus(r.Context(), actor, chi.URLParam(r, "id"), status)
	if err != nil {
		services.SendErrorResponse(w, err)
		return
	}
	services.SendSuccess(w, http.StatusOK, acc, "Payment account "+string(status))
}

// QRCode renders the account details as a PNG
// @Summary Payment account QR code
// @Tags PaymentAccounts
// @Produce png
// @Security BearerAuth
// @Param id path string true "Payment account ID"
// @Param size query int false "Image size in pixels (default 256)"
// @Success 200 {file} binary
// @Failure 422 {object} services.ErrorResponse "Account inactive"
// @Router /payment-accounts/{id}/qr [get]
func (h *PaymentAccountHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))

	png, err := h.service.QRCode(r.Context(), chi.URLParam(r, "id"), size)
	if err != nil {
		services.SendErrorResponse(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}
