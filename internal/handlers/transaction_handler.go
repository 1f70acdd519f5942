package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kaskelas/backend/internal/models"
	"github.com/kaskelas/backend/internal/repository"
	"github.com/kaskelas/backend/internal/services"
)

// TransactionHandler serves read access to the class ledger.
type TransactionHandler struct {
	ledger *services.LedgerService
}

func NewTransactionHandler(ledger *services.LedgerService) *TransactionHandler {
	return &TransactionHandler{ledger: ledger}
}

func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	p, err := paginationFrom(r)
	if err != nil {
		services.SendErrorResponse(w, err)
		return
	}
	from, to, err := dateRange(r)
	if err != nil {
		services.SendErrorResponse(w, err)
		return
	}

	q := r.URL.Query()
	f := repository.TransactionFilter{
		Type:       models.TransactionType(q.Get("type")),
		From:       from,
		To:         to,
		SortBy:     q.Get("sortBy"),
		Asc:        !descending(r, true),
		Pagination: p,
	}
	if c := q.Get("category"); c != "" {
		f.Category = services.NormalizeCategory(c)
	}

	entries, total, err := h.ledger.ListTransactions(r.Context(), actor, f)
	if err != nil {
		services.SendErrorResponse(w, err)
		return
	}
	services.SendPage(w, entries, services.NewPagination(p.Page, p.Limit, total))
}

// ChartData returns daily totals of one type for the caller's class
// @Summary Transaction chart data
// @Tags Transactions
// @Produce json
// @Security BearerAuth
// @Param type query string true "income | expense"
// @Success 200 {object} services.SuccessResponse
// @Router /transactions/chart-data [get]
func (h *TransactionHandler) ChartData(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	txType := models.TransactionType(r.URL.Query().Get("type"))
	if !txType.Valid() {
		services.SendErrorResponse(w, badRequest("type", "Type must be 'income' or 'expense'"))
		return
	}
	from, to, err := dateRange(r)
	if err != nil {
		services.SendErrorResponse(w, err)
		return
	}

	chart, err := h.ledger.ChartData(r.Context(), actor.ClassID, from, to)
	if err != nil {
		services.SendErrorResponse(w, err)
		return
	}
	series := chart.Income
	if txType == models.TransactionExpense {
		series = chart.Expense
	}
	services.SendSuccess(w, http.StatusOK, series, "")
}

func (h *TransactionHandler) Breakdown(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	from, to, err := dateRange(r)
	if err != nil {
		services.SendErrorResponse(w, err)
		return
	}
	totals, err := h.ledger.Breakdown(r.Context(), actor.ClassID, models.TransactionType(r.URL.Query().Get("type")), from, to)
	if err != nil {
		services.SendErrorResponse(w, err)
		return
	}
	services.SendSuccess(w, http.StatusOK, totals, "")
}

func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	entry, err := h.ledger.GetTransaction(r.Context(), chi.URLParam(r, "id"), actor)
	if err != nil {
		services.SendErrorResponse(w, err)
		return
	}
	services.SendSuccess(w, http.StatusOK, entry, "")
}
