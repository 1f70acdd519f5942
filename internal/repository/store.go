// Package repository defines the persistence contract for bills, the ledger,
// fund applications, payment accounts and the user directory.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kaskelas/backend/internal/models"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

type Pagination struct {
	Page  int
	Limit int
}

// Normalize clamps page and limit into their allowed ranges.
func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

type BillFilter struct {
	ClassID string
	UserID  string
	Status  models.BillStatus
	Month   int
	Year    int
	SortBy  string // dueDate, month, status
	Desc    bool
	Pagination
}

type TransactionFilter struct {
	ClassID  string
	Type     models.TransactionType
	Category models.TransactionCategory
	From     *time.Time
	To       *time.Time
	SortBy   string // date, amount, type
	Asc      bool
	Pagination
}

type FundFilter struct {
	ClassID   string
	UserID    string
	Status    models.FundStatus
	Category  models.FundCategory
	MinAmount int64
	MaxAmount int64
	Pagination
}

// LedgerRange selects ledger entries for aggregation. Zero values mean unbounded.
type LedgerRange struct {
	ClassID string
	Type    models.TransactionType
	From    *time.Time
	To      *time.Time
}

type Queries interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByNIM(ctx context.Context, nim string) (*models.User, error)
	ListStudents(ctx context.Context, classID string) ([]models.User, error)
	CountStudents(ctx context.Context, classID string) (int, error)

	GetBill(ctx context.Context, id string) (*models.CashBill, error)
	// GetBillForUpdate locks the row until the surrounding transaction ends.
	GetBillForUpdate(ctx context.Context, id string) (*models.CashBill, error)
	BillExists(ctx context.Context, userID string, period models.Period) (bool, error)
	// CreateBill returns ErrConflict when the user already has a bill for the period.
	CreateBill(ctx context.Context, bill *models.CashBill) error
	// UpdateBillIfStatus writes bill only while the stored status still equals from.
	UpdateBillIfStatus(ctx context.Context, bill *models.CashBill, from models.BillStatus) (bool, error)
	ListBills(ctx context.Context, f BillFilter) ([]models.CashBill, int, error)
	CountBills(ctx context.Context, f BillFilter) (int, error)
	CountBillsUsingAccount(ctx context.Context, accountID string) (int, error)

	// AppendTransaction returns ErrConflict when the source already has a ledger entry.
	AppendTransaction(ctx context.Context, tx *models.Transaction) error
	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)
	ListTransactions(ctx context.Context, f TransactionFilter) ([]models.Transaction, int, error)
	SumTransactions(ctx context.Context, r LedgerRange) (models.Totals, error)
	DailyTotals(ctx context.Context, r LedgerRange) ([]models.DailyAmount, error)
	CategoryTotals(ctx context.Context, r LedgerRange) ([]models.CategoryAmount, error)

	CreateFundApplication(ctx context.Context, app *models.FundApplication) error
	GetFundApplication(ctx context.Context, id string) (*models.FundApplication, error)
	GetFundApplicationForUpdate(ctx context.Context, id string) (*models.FundApplication, error)
	UpdateFundApplicationIfStatus(ctx context.Context, app *models.FundApplication, from models.FundStatus) (bool, error)
	ListFundApplications(ctx context.Context, f FundFilter) ([]models.FundApplication, int, error)
	CountFundApplications(ctx context.Context, f FundFilter) (int, error)

	CreatePaymentAccount(ctx context.Context, acc *models.PaymentAccount) error
	GetPaymentAccount(ctx context.Context, id string) (*models.PaymentAccount, error)
	ListPaymentAccounts(ctx context.Context, status models.AccountStatus) ([]models.PaymentAccount, error)
	UpdatePaymentAccount(ctx context.Context, acc *models.PaymentAccount) error
	DeletePaymentAccount(ctx context.Context, id string) error
}

// Store runs Queries directly or inside one atomic unit of work.
type Store interface {
	Queries
	WithTx(ctx context.Context, fn func(q Queries) error) error
}
