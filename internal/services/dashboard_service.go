package services

import (
	"context"

	"github.com/kaskelas/backend/internal/cache"
	"github.com/kaskelas/backend/internal/config"
	"github.com/kaskelas/backend/internal/models"
	"github.com/kaskelas/backend/internal/repository"
)

const recentItems = 5

// DashboardService derives read-only overviews from the ledger, bills and applications.
type DashboardService struct {
	store  repository.Store
	ledger *LedgerService
	cache  Cache
	ttl    config.CacheConfig
}

func NewDashboardService(store repository.Store, ledger *LedgerService, c Cache, ttl config.CacheConfig) *DashboardService {
	return &DashboardService{store: store, ledger: ledger, cache: orNoCache(c), ttl: ttl}
}

type TreasurerDashboard struct {
	Summary                   LedgerSummary            `json:"summary"`
	StudentCount              int                      `json:"studentCount"`
	UnpaidBills               int                      `json:"unpaidBills"`
	PendingPayments           int                      `json:"pendingPayments"`
	PendingApplications       int                      `json:"pendingApplications"`
	RecentTransactions        []models.Transaction     `json:"recentTransactions"`
	RecentPendingPayments     []models.CashBill        `json:"recentPendingPayments"`
	RecentPendingApplications []models.FundApplication `json:"recentPendingApplications"`
}

// Treasurer builds the bendahara overview of their class.
func (s *DashboardService) Treasurer(ctx context.Context, actor Actor) (*TreasurerDashboard, error) {
	if !actor.IsTreasurer() {
		return nil, forbiddenError("treasurer role required")
	}
	classID := actor.ClassID
	key := cache.DashboardKey(classID)

	var dash TreasurerDashboard
	if s.cache.GetJSON(ctx, key, &dash) {
		return &dash, nil
	}

	summary, err := s.ledger.summarize(ctx, classID, nil, nil)
	if err != nil {
		return nil, err
	}
	dash.Summary = summary

	if dash.StudentCount, err = s.store.CountStudents(ctx, classID); err != nil {
		return nil, storeError("user", "count", err)
	}
	if dash.UnpaidBills, err = s.store.CountBills(ctx, repository.BillFilter{ClassID: classID, Status: models.BillUnpaid}); err != nil {
		return nil, storeError("bill", "count", err)
	}

	recent := repository.Pagination{Page: 1, Limit: recentItems}
	pending, total, err := s.store.ListBills(ctx, repository.BillFilter{
		ClassID: classID, Status: models.BillAwaitingConfirmation, Pagination: recent,
	})
	if err != nil {
		return nil, storeError("bill", "pending", err)
	}
	dash.PendingPayments = total
	dash.RecentPendingPayments = nonNil(pending)

	apps, total, err := s.store.ListFundApplications(ctx, repository.FundFilter{
		ClassID: classID, Status: models.FundPending, Pagination: recent,
	})
	if err != nil {
		return nil, storeError("fund application", "pending", err)
	}
	dash.PendingApplications = total
	dash.RecentPendingApplications = nonNil(apps)

	entries, _, err := s.store.ListTransactions(ctx, repository.TransactionFilter{ClassID: classID, Pagination: recent})
	if err != nil {
		return nil, storeError("transaction", "recent", err)
	}
	dash.RecentTransactions = nonNil(entries)

	s.cache.SetJSON(ctx, key, dash, s.ttl.TTL)
	return &dash, nil
}

type StudentSummary struct {
	ClassBalance         int64 `json:"classBalance"`
	UnpaidBills          int   `json:"unpaidBills"`
	AwaitingConfirmation int   `json:"awaitingConfirmation"`
	PaidBills            int   `json:"paidBills"`
	PendingApplications  int   `json:"pendingApplications"`
}

// Student combines the class balance with the student's own bill and application counts.
// The balance is read through the class balance entry, never the student entry.
func (s *DashboardService) Student(ctx context.Context, actor Actor) (*StudentSummary, error) {
	balance, err := s.ledger.Balance(ctx, actor.ClassID)
	if err != nil {
		return nil, err
	}

	key := cache.StudentSummaryKey(actor.UserID)
	var summary StudentSummary
	if !s.cache.GetJSON(ctx, key, &summary) {
		if summary, err = s.studentCounts(ctx, actor.UserID); err != nil {
			return nil, err
		}
		s.cache.SetJSON(ctx, key, summary, s.ttl.TTL)
	}
	summary.ClassBalance = balance.Balance
	return &summary, nil
}

func (s *DashboardService) studentCounts(ctx context.Context, userID string) (StudentSummary, error) {
	var summary StudentSummary
	counts := []struct {
		status models.BillStatus
		dst    *int
	}{
		{models.BillUnpaid, &summary.UnpaidBills},
		{models.BillAwaitingConfirmation, &summary.AwaitingConfirmation},
		{models.BillPaid, &summary.PaidBills},
	}
	for _, c := range counts {
		n, err := s.store.CountBills(ctx, repository.BillFilter{UserID: userID, Status: c.status})
		if err != nil {
			return StudentSummary{}, storeError("bill", "count", err)
		}
		*c.dst = n
	}

	n, err := s.store.CountFundApplications(ctx, repository.FundFilter{UserID: userID, Status: models.FundPending})
	if err != nil {
		return StudentSummary{}, storeError("fund application", "count", err)
	}
	summary.PendingApplications = n
	return summary, nil
}

// Students lists the treasurer's class roster.
func (s *DashboardService) Students(ctx context.Context, actor Actor) ([]models.User, error) {
	if !actor.IsTreasurer() {
		return nil, forbiddenError("treasurer role required")
	}
	students, err := s.store.ListStudents(ctx, actor.ClassID)
	if err != nil {
		return nil, storeError("user", "list", err)
	}
	return nonNil(students), nil
}
