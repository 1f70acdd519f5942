package handlers

import (
	"net/http"

	"github.com/kaskelas/backend/internal/models"
	"github.com/kaskelas/backend/internal/repository"
	"github.com/kaskelas/backend/internal/services"
)

const pendingListLimit = 50

type DashboardHandler struct {
	dashboard *services.DashboardService
	ledger    *services.LedgerService
	payments  *services.PaymentService
	funds     *services.FundApplicationService
}

func NewDashboardHandler(
	dashboard *services.DashboardService,
	ledger *services.LedgerService,
	payments *services.PaymentService,
	funds *services.FundApplicationService,
) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard, ledger: ledger, payments: payments, funds: funds}
}

type summaryResponse struct {
	*services.StudentSummary
	Recap *services.LedgerSummary `json:"recap,omitempty"`
}

// Summary returns the caller's overview. A startDate or endDate adds a ranged recap.
func (h *DashboardHandler) Summary(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	from, to, err := dateRange(r)
	if err != nil {
		services.SendErrorResponse(w, err)
		return
	}

	summary, err := h.dashboard.Student(r.Context(), actor)
	if err != nil {
		services.SendErrorResponse(w, err)
		return
	}
	resp := summaryResponse{StudentSummary: summary}
	if from != nil || to != nil {
		recap, err := h.ledger.Recap(r.Context(), actor.ClassID, from, to)
		if err != nil {
			services.SendErrorResponse(w, err)
			return
		}
		resp.Recap = &recap
	}
	services.SendSuccess(w, http.StatusOK, resp, "")
}

func (h *DashboardHandler) PendingBills(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	actor.Role = models.RoleStudent
	bills, _, err := h.payments.ListBills(r.Context(), actor, repository.BillFilter{
		Status:     models.BillAwaitingConfirmation,
		Pagination: repository.Pagination{Page: 1, Limit: pendingListLimit},
	})
	if err != nil {
		services.SendErrorResponse(w, err)
		return
	}
	services.SendSuccess(w, http.StatusOK, bills, "")
}

func (h *DashboardHandler) PendingApplications(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	actor.Role = models.RoleStudent
	apps, _, err := h.funds.List(r.Context(), actor, repository.FundFilter{
		Status:     models.FundPending,
		Pagination: repository.Pagination{Page: 1, Limit: pendingListLimit},
	})
	if err != nil {
		services.SendErrorResponse(w, err)
		return
	}
	services.SendSuccess(w, http.StatusOK, apps, "")
}
