package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/kaskelas/backend/internal/services"
)

type BillGenerator interface {
	GenerateCurrent(ctx context.Context) (services.GenerationResult, error)
	GenerateForPeriod(ctx context.Context, month, year int) (services.GenerationResult, error)
}

// CronHandler is called by the external scheduler. Mount behind middleware.CronKey.
type CronHandler struct {
	generator BillGenerator
	timeout   time.Duration
	validator *services.ValidationHelper
}

func NewCronHandler(generator BillGenerator, timeout time.Duration) *CronHandler {
	return &CronHandler{generator: generator, timeout: timeout, validator: services.NewValidationHelper()}
}

type generateBillsRequest struct {
	Month int `json:"month" validate:"omitempty,min=1,max=12"`
	Year  int `json:"year" validate:"omitempty,min=2000,max=2100"`
}

// GenerateBills runs bill generation for the current period, or for {month, year} when given
// @Summary Trigger bill generation
// @Tags Cron
// @Accept json
// @Produce json
// @Param X-CloudScheduler-Key header string true "Shared cron secret"
// @Param request body object{month=int,year=int} false "Explicit period"
// @Success 200 {object} services.SuccessResponse
// @Failure 401 {object} services.ErrorResponse
// @Router /cron/generate-bills [post]
func (h *CronHandler) GenerateBills(w http.ResponseWriter, r *http.Request) {
	var req generateBillsRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		services.SendErrorResponse(w, err)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, err)
		return
	}
	if (req.Month == 0) != (req.Year == 0) {
		services.SendErrorResponse(w, badRequest("month", "month and year must be given together"))
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	slog.Info("received scheduler request for bill generation", "month", req.Month, "year", req.Year)
	var (
		result services.GenerationResult
		err    error
	)
	if req.Month == 0 {
		result, err = h.generator.GenerateCurrent(ctx)
	} else {
		result, err = h.generator.GenerateForPeriod(ctx, req.Month, req.Year)
	}
	if err != nil {
		slog.Error("scheduled bill generation failed", "error", err)
		services.SendErrorResponse(w, err)
		return
	}
	services.SendSuccess(w, http.StatusOK, result, "Monthly bill generation completed")
}

func (h *CronHandler) Health(w http.ResponseWriter, r *http.Request) {
	services.SendSuccess(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}, "")
}
