package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/kaskelas/backend/internal/models"
	"github.com/kaskelas/backend/internal/repository"
	"github.com/kaskelas/backend/internal/services"
)

type FundApplicationHandler struct {
	service   *services.FundApplicationService
	uploader  Uploader
	validator *services.ValidationHelper
}

func NewFundApplicationHandler(service *services.FundApplicationService, uploader Uploader) *FundApplicationHandler {
	return &FundApplicationHandler{
		service:   service,
		uploader:  uploader,
		validator: services.NewValidationHelper(),
	}
}

func fundFilterFrom(r *http.Request) (repository.FundFilter, error) {
	p, err := paginationFrom(r)
	if err != nil {
		return repository.FundFilter{}, err
	}
	minAmount, err := int64Query(r, "minAmount")
	if err != nil {
		return repository.FundFilter{}, err
	}
	maxAmount, err := int64Query(r, "maxAmount")
	if err != nil {
		return repository.FundFilter{}, err
	}
	q := r.URL.Query()
	return repository.FundFilter{
		UserID:     q.Get("userId"),
		Status:     models.FundStatus(q.Get("status")),
		Category:   models.FundCategory(q.Get("category")),
		MinAmount:  minAmount,
		MaxAmount:  maxAmount,
		Pagination: p,
	}, nil
}

// List returns the class applications for a treasurer and the caller's own otherwise.
func (h *FundApplicationHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	h.list(w, r, actor)
}

func (h *FundApplicationHandler) MyApplications(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	actor.Role = models.RoleStudent
	h.list(w, r, actor)
}

func (h *FundApplicationHandler) list(w http.ResponseWriter, r *http.Request, actor services.Actor) {
	f, err := fundFilterFrom(r)
	if err != nil {
		services.SendErrorResponse(w, err)
		return
	}
	apps, total, err := h.service.List(r.Context(), actor, f)
	if err != nil {
		services.SendErrorResponse(w, err)
		return
	}
	services.SendPage(w, apps, services.NewPagination(f.Page, f.Limit, total))
}

func (h *FundApplicationHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	app, err := h.service.Get(r.Context(), chi.URLParam(r, "id"), actor)
	if err != nil {
		services.SendErrorResponse(w, err)
		return
	}
	services.SendSuccess(w, http.StatusOK, app, "")
}

type createFundRequest struct {
	Purpose     string `json:"purpose" validate:"required,max=255"`
	Description string `json:"description" validate:"max=2000"`
	Category    string `json:"category" validate:"required,oneof=education health emergency equipment"`
	Amount      int64  `json:"amount" validate:"required,gt=0"`
}

// Create files a fund application
// @Summary Create fund application
// @Description Multipart form with purpose, description, category, amount and an optional attachment
// @Tags FundApplications
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Success 201 {object} services.SuccessResponse
// @Failure 400 {object} services.ErrorResponse
// @Router /fund-applications [post]
func (h *FundApplicationHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	if err := parseMultipart(w, r); err != nil {
		services.SendErrorResponse(w, err)
		return
	}

	req := createFundRequest{
		Purpose:     strings.TrimSpace(r.FormValue("purpose")),
		Description: strings.TrimSpace(r.FormValue("description")),
		Category:    strings.TrimSpace(r.FormValue("category")),
	}
	if raw := strings.TrimSpace(r.FormValue("amount")); raw != "" {
		amount, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			services.SendErrorResponse(w, badRequest("amount", "amount must be an integer"))
			return
		}
		req.Amount = amount
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, err)
		return
	}

	attachmentURL, err := uploadFile(r, h.uploader, "attachment", "attachments", documentTypes, false)
	if err != nil {
		services.SendErrorResponse(w, err)
		return
	}

	app, err := h.service.Create(r.Context(), actor, services.CreateFundApplicationRequest{
		Purpose:       req.Purpose,
		Description:   req.Description,
		Category:      models.FundCategory(req.Category),
		Amount:        req.Amount,
		AttachmentURL: attachmentURL,
	})
	if err != nil {
		services.SendErrorResponse(w, err)
		return
	}
	services.SendSuccess(w, http.StatusCreated, app, "Fund application submitted")
}
