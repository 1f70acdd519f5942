package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kaskelas/backend/internal/audit"
	"github.com/kaskelas/backend/internal/cache"
	"github.com/kaskelas/backend/internal/config"
	"github.com/kaskelas/backend/internal/metrics"
	"github.com/kaskelas/backend/internal/models"
	"github.com/kaskelas/backend/internal/repository"
)

// LedgerService appends manual entries and answers every balance question.
type LedgerService struct {
	store   repository.Store
	cache   Cache
	ttl     config.CacheConfig
	audit   *audit.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewLedgerService(store repository.Store, c Cache, ttl config.CacheConfig, auditLog *audit.Logger, m *metrics.Metrics) *LedgerService {
	return &LedgerService{
		store:   store,
		cache:   orNoCache(c),
		ttl:     ttl,
		audit:   auditLog,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// LedgerSummary is the rekap kas of a class over an optional range.
type LedgerSummary struct {
	ClassID          string     `json:"classId"`
	TotalIncome      int64      `json:"totalIncome"`
	TotalExpense     int64      `json:"totalExpense"`
	Balance          int64      `json:"balance"`
	TransactionCount int        `json:"transactionCount"`
	StartDate        *time.Time `json:"startDate,omitempty"`
	EndDate          *time.Time `json:"endDate,omitempty"`
}

type ManualTransactionRequest struct {
	ClassID     string
	Type        models.TransactionType
	Category    string
	Amount      int64
	Date        time.Time
	Description string
}

// NormalizeCategory lower-cases the input and falls back to other for unknown values.
func NormalizeCategory(s string) models.TransactionCategory {
	c := models.TransactionCategory(strings.ToLower(strings.TrimSpace(s)))
	if c.Valid() {
		return c
	}
	return models.CategoryOther
}

// CreateManualTransaction books a treasurer-entered income or expense.
func (s *LedgerService) CreateManualTransaction(ctx context.Context, actor Actor, req ManualTransactionRequest) (*models.Transaction, error) {
	classID := req.ClassID
	if classID == "" {
		classID = actor.ClassID
	}
	if err := requireTreasurerOf(actor, classID); err != nil {
		return nil, err
	}

	description := strings.TrimSpace(req.Description)
	switch {
	case !req.Type.Valid():
		return nil, validationError("type", "type must be income or expense")
	case req.Amount <= 0:
		return nil, validationError("amount", "amount must be greater than 0")
	case len(description) < 3 || len(description) > 255:
		return nil, validationError("description", "description must be 3 to 255 characters")
	}

	now := s.now()
	date := req.Date
	if date.IsZero() {
		date = now
	}
	entry := &models.Transaction{
		ID:          uuid.NewString(),
		ClassID:     classID,
		Type:        req.Type,
		Category:    NormalizeCategory(req.Category),
		Amount:      req.Amount,
		Description: description,
		Date:        date,
		CreatedAt:   now,
	}
	if err := s.store.AppendTransaction(ctx, entry); err != nil {
		return nil, storeError("transaction", entry.ID, err)
	}

	s.metrics.LedgerEntry(string(entry.Type), "manual")
	s.cache.Delete(ctx, ledgerChangedKeys(classID)...)
	s.audit.LogOperation("MANUAL_TRANSACTION", "transaction", entry.ID, actor.UserID, map[string]string{
		"type":     string(entry.Type),
		"category": string(entry.Category),
		"class_id": classID,
	})
	return entry, nil
}

// GetTransaction returns an entry of the actor's own class.
func (s *LedgerService) GetTransaction(ctx context.Context, id string, actor Actor) (*models.Transaction, error) {
	entry, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return nil, storeError("transaction", id, err)
	}
	if entry.ClassID != actor.ClassID {
		return nil, forbiddenError("transaction belongs to another class")
	}
	return entry, nil
}

// ListTransactions lists the actor's class ledger; every class member may read it.
func (s *LedgerService) ListTransactions(ctx context.Context, actor Actor, f repository.TransactionFilter) ([]models.Transaction, int, error) {
	f.ClassID = actor.ClassID
	if f.Type != "" && !f.Type.Valid() {
		return nil, 0, validationError("type", "type must be income or expense")
	}
	if err := checkRange(f.From, f.To); err != nil {
		return nil, 0, err
	}

	entries, total, err := s.store.ListTransactions(ctx, f)
	if err != nil {
		return nil, 0, storeError("transaction", "list", err)
	}
	return entries, total, nil
}

// Balance is the all-time summary of a class. An empty ledger yields zeros.
func (s *LedgerService) Balance(ctx context.Context, classID string) (LedgerSummary, error) {
	var summary LedgerSummary
	if s.cache.GetJSON(ctx, cache.BalanceKey(classID), &summary) {
		return summary, nil
	}

	summary, err := s.summarize(ctx, classID, nil, nil)
	if err != nil {
		return LedgerSummary{}, err
	}
	s.cache.SetJSON(ctx, cache.BalanceKey(classID), summary, s.ttl.TTL)
	return summary, nil
}

// Recap summarizes a range. Only the unbounded recap is cached.
func (s *LedgerService) Recap(ctx context.Context, classID string, from, to *time.Time) (LedgerSummary, error) {
	if err := checkRange(from, to); err != nil {
		return LedgerSummary{}, err
	}
	if from == nil && to == nil {
		var summary LedgerSummary
		if s.cache.GetJSON(ctx, cache.RecapKey(classID), &summary) {
			return summary, nil
		}
		summary, err := s.summarize(ctx, classID, nil, nil)
		if err != nil {
			return LedgerSummary{}, err
		}
		s.cache.SetJSON(ctx, cache.RecapKey(classID), summary, s.ttl.RecapTTL)
		return summary, nil
	}
	return s.summarize(ctx, classID, from, to)
}

func (s *LedgerService) summarize(ctx context.Context, classID string, from, to *time.Time) (LedgerSummary, error) {
	totals, err := s.store.SumTransactions(ctx, repository.LedgerRange{ClassID: classID, From: from, To: to})
	if err != nil {
		return LedgerSummary{}, storeError("transaction", "totals", err)
	}
	return LedgerSummary{
		ClassID:          classID,
		TotalIncome:      totals.Income,
		TotalExpense:     totals.Expense,
		Balance:          totals.Balance(),
		TransactionCount: totals.Count,
		StartDate:        from,
		EndDate:          to,
	}, nil
}

type ChartData struct {
	Income  []models.DailyAmount `json:"income"`
	Expense []models.DailyAmount `json:"expense"`
}

// ChartData buckets income and expense per day.
func (s *LedgerService) ChartData(ctx context.Context, classID string, from, to *time.Time) (ChartData, error) {
	if err := checkRange(from, to); err != nil {
		return ChartData{}, err
	}

	income, err := s.store.DailyTotals(ctx, repository.LedgerRange{ClassID: classID, Type: models.TransactionIncome, From: from, To: to})
	if err != nil {
		return ChartData{}, storeError("transaction", "daily totals", err)
	}
	expense, err := s.store.DailyTotals(ctx, repository.LedgerRange{ClassID: classID, Type: models.TransactionExpense, From: from, To: to})
	if err != nil {
		return ChartData{}, storeError("transaction", "daily totals", err)
	}
	return ChartData{Income: nonNil(income), Expense: nonNil(expense)}, nil
}

// Breakdown groups entries of one type by category.
func (s *LedgerService) Breakdown(ctx context.Context, classID string, txType models.TransactionType, from, to *time.Time) ([]models.CategoryAmount, error) {
	if !txType.Valid() {
		return nil, validationError("type", "type must be income or expense")
	}
	if err := checkRange(from, to); err != nil {
		return nil, err
	}

	totals, err := s.store.CategoryTotals(ctx, repository.LedgerRange{ClassID: classID, Type: txType, From: from, To: to})
	if err != nil {
		return nil, storeError("transaction", "category totals", err)
	}
	return nonNil(totals), nil
}

func checkRange(from, to *time.Time) error {
	if from != nil && to != nil && to.Before(*from) {
		return validationError("endDate", "endDate must not be before startDate")
	}
	return nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
