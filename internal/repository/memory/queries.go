package memory

import (
	"context"
	"sort"
	"time"

	"github.com/kaskelas/backend/internal/models"
	"github.com/kaskelas/backend/internal/repository"
)

func (v *view) GetUser(_ context.Context, id string) (*models.User, error) {
	defer v.lock()()
	u, ok := v.d().users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (v *view) GetUserByNIM(_ context.Context, nim string) (*models.User, error) {
	defer v.lock()()
	for _, u := range v.d().users {
		if u.NIM == nim {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (v *view) ListStudents(_ context.Context, classID string) ([]models.User, error) {
	defer v.lock()()
	var out []models.User
	for _, u := range v.d().users {
		if u.Role == models.RoleStudent && (classID == "" || u.ClassID == classID) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NIM < out[j].NIM })
	return out, nil
}

func (v *view) CountStudents(ctx context.Context, classID string) (int, error) {
	students, err := v.ListStudents(ctx, classID)
	return len(students), err
}

func (v *view) GetBill(_ context.Context, id string) (*models.CashBill, error) {
	defer v.lock()()
	b, ok := v.d().bills[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &b, nil
}

func (v *view) GetBillForUpdate(ctx context.Context, id string) (*models.CashBill, error) {
	return v.GetBill(ctx, id)
}

func (v *view) BillExists(_ context.Context, userID string, period models.Period) (bool, error) {
	defer v.lock()()
	return v.billFor(userID, period), nil
}

func (v *view) billFor(userID string, period models.Period) bool {
	for _, b := range v.d().bills {
		if b.UserID == userID && b.Month == period.Month && b.Year == period.Year {
			return true
		}
	}
	return false
}

func (v *view) CreateBill(_ context.Context, b *models.CashBill) error {
	defer v.lock()()
	if v.billFor(b.UserID, b.Period()) {
		return repository.ErrConflict
	}
	for _, existing := range v.d().bills {
		if existing.BillID == b.BillID {
			return repository.ErrConflict
		}
	}
	v.d().bills[b.ID] = *b
	return nil
}

func (v *view) UpdateBillIfStatus(_ context.Context, b *models.CashBill, from models.BillStatus) (bool, error) {
	defer v.lock()()
	current, ok := v.d().bills[b.ID]
	if !ok || current.Status != from {
		return false, nil
	}
	current.Status = b.Status
	current.PaymentMethod = b.PaymentMethod
	current.PaymentProofURL = b.PaymentProofURL
	current.PaymentAccountID = b.PaymentAccountID
	current.PaidAt = b.PaidAt
	current.ConfirmedBy = b.ConfirmedBy
	current.ConfirmedAt = b.ConfirmedAt
	current.UpdatedAt = b.UpdatedAt
	v.d().bills[b.ID] = current
	return true, nil
}

func (v *view) filterBills(f repository.BillFilter) []models.CashBill {
	var out []models.CashBill
	for _, b := range v.d().bills {
		if f.ClassID != "" && b.ClassID != f.ClassID ||
			f.UserID != "" && b.UserID != f.UserID ||
			f.Status != "" && b.Status != f.Status ||
			f.Month != 0 && b.Month != f.Month ||
			f.Year != 0 && b.Year != f.Year {
			continue
		}
		out = append(out, b)
	}
	return out
}

// billLess orders like the Postgres billSort keys. Unknown keys fall back to newest period first.
func billLess(a, b models.CashBill, sortBy string, desc bool) bool {
	var less, greater bool
	switch sortBy {
	case "dueDate":
		less, greater = a.DueDate.Before(b.DueDate), a.DueDate.After(b.DueDate)
	case "month":
		less, greater = a.Period().Before(b.Period()), b.Period().Before(a.Period())
	case "status":
		less, greater = a.Status < b.Status, a.Status > b.Status
	default:
		if a.Period() != b.Period() {
			return b.Period().Before(a.Period())
		}
		return a.CreatedAt.After(b.CreatedAt)
	}
	if desc {
		return greater
	}
	return less
}

func (v *view) ListBills(_ context.Context, f repository.BillFilter) ([]models.CashBill, int, error) {
	defer v.lock()()
	bills := v.filterBills(f)
	sort.Slice(bills, func(i, j int) bool { return bills[i].ID < bills[j].ID })
	sort.SliceStable(bills, func(i, j int) bool {
		return billLess(bills[i], bills[j], f.SortBy, f.Desc)
	})
	return page(bills, f.Pagination), len(bills), nil
}

func (v *view) CountBills(_ context.Context, f repository.BillFilter) (int, error) {
	defer v.lock()()
	return len(v.filterBills(f)), nil
}

func (v *view) CountBillsUsingAccount(_ context.Context, accountID string) (int, error) {
	defer v.lock()()
	n := 0
	for _, b := range v.d().bills {
		if b.PaymentAccountID != nil && *b.PaymentAccountID == accountID {
			n++
		}
	}
	return n, nil
}

func (v *view) AppendTransaction(_ context.Context, t *models.Transaction) error {
	defer v.lock()()
	if t.SourceID != nil {
		for _, existing := range v.d().transactions {
			if existing.SourceID != nil && *existing.SourceID == *t.SourceID &&
				existing.SourceType != nil && t.SourceType != nil && *existing.SourceType == *t.SourceType {
				return repository.ErrConflict
			}
		}
	}
	v.d().transactions = append(v.d().transactions, *t)
	return nil
}

func (v *view) GetTransaction(_ context.Context, id string) (*models.Transaction, error) {
	defer v.lock()()
	for _, t := range v.d().transactions {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, repository.ErrNotFound
}

func inRange(t models.Transaction, r repository.LedgerRange) bool {
	return (r.ClassID == "" || t.ClassID == r.ClassID) &&
		(r.Type == "" || t.Type == r.Type) &&
		(r.From == nil || !t.Date.Before(*r.From)) &&
		(r.To == nil || !t.Date.After(*r.To))
}

func (v *view) ListTransactions(_ context.Context, f repository.TransactionFilter) ([]models.Transaction, int, error) {
	defer v.lock()()
	r := repository.LedgerRange{ClassID: f.ClassID, Type: f.Type, From: f.From, To: f.To}
	var out []models.Transaction
	for _, t := range v.d().transactions {
		if inRange(t, r) && (f.Category == "" || t.Category == f.Category) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		var less bool
		switch f.SortBy {
		case "amount":
			less = a.Amount < b.Amount
		case "type":
			less = a.Type < b.Type
		default:
			less = a.Date.Before(b.Date)
		}
		if f.Asc {
			return less
		}
		return !less && !equalKey(a, b, f.SortBy)
	})
	return page(out, f.Pagination), len(out), nil
}

func equalKey(a, b models.Transaction, sortBy string) bool {
	switch sortBy {
	case "amount":
		return a.Amount == b.Amount
	case "type":
		return a.Type == b.Type
	default:
		return a.Date.Equal(b.Date)
	}
}

func (v *view) SumTransactions(_ context.Context, r repository.LedgerRange) (models.Totals, error) {
	defer v.lock()()
	var totals models.Totals
	for _, t := range v.d().transactions {
		if !inRange(t, r) {
			continue
		}
		totals.Count++
		if t.Type == models.TransactionIncome {
			totals.Income += t.Amount
		} else {
			totals.Expense += t.Amount
		}
	}
	return totals, nil
}

func (v *view) DailyTotals(_ context.Context, r repository.LedgerRange) ([]models.DailyAmount, error) {
	defer v.lock()()
	sums := make(map[string]int64)
	for _, t := range v.d().transactions {
		if inRange(t, r) {
			sums[t.Date.Format(time.DateOnly)] += t.Amount
		}
	}
	out := make([]models.DailyAmount, 0, len(sums))
	for day, amount := range sums {
		out = append(out, models.DailyAmount{Date: day, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (v *view) CategoryTotals(_ context.Context, r repository.LedgerRange) ([]models.CategoryAmount, error) {
	defer v.lock()()
	sums := make(map[models.TransactionCategory]*models.CategoryAmount)
	for _, t := range v.d().transactions {
		if !inRange(t, r) {
			continue
		}
		c, ok := sums[t.Category]
		if !ok {
			c = &models.CategoryAmount{Category: t.Category}
			sums[t.Category] = c
		}
		c.Amount += t.Amount
		c.Count++
	}
	out := make([]models.CategoryAmount, 0, len(sums))
	for _, c := range sums {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount != out[j].Amount {
			return out[i].Amount > out[j].Amount
		}
		return out[i].Category < out[j].Category
	})
	return out, nil
}

func (v *view) CreateFundApplication(_ context.Context, a *models.FundApplication) error {
	defer v.lock()()
	if _, ok := v.d().funds[a.ID]; ok {
		return repository.ErrConflict
	}
	v.d().funds[a.ID] = *a
	return nil
}

func (v *view) GetFundApplication(_ context.Context, id string) (*models.FundApplication, error) {
	defer v.lock()()
	a, ok := v.d().funds[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (v *view) GetFundApplicationForUpdate(ctx context.Context, id string) (*models.FundApplication, error) {
	return v.GetFundApplication(ctx, id)
}

func (v *view) UpdateFundApplicationIfStatus(_ context.Context, a *models.FundApplication, from models.FundStatus) (bool, error) {
	defer v.lock()()
	current, ok := v.d().funds[a.ID]
	if !ok || current.Status != from {
		return false, nil
	}
	current.Status = a.Status
	current.ReviewedBy = a.ReviewedBy
	current.ReviewedAt = a.ReviewedAt
	current.RejectionReason = a.RejectionReason
	current.UpdatedAt = a.UpdatedAt
	v.d().funds[a.ID] = current
	return true, nil
}

func (v *view) filterFunds(f repository.FundFilter) []models.FundApplication {
	var out []models.FundApplication
	for _, a := range v.d().funds {
		if f.ClassID != "" && a.ClassID != f.ClassID ||
			f.UserID != "" && a.UserID != f.UserID ||
			f.Status != "" && a.Status != f.Status ||
			f.Category != "" && a.Category != f.Category ||
			f.MinAmount > 0 && a.Amount < f.MinAmount ||
			f.MaxAmount > 0 && a.Amount > f.MaxAmount {
			continue
		}
		out = append(out, a)
	}
	return out
}

func (v *view) ListFundApplications(_ context.Context, f repository.FundFilter) ([]models.FundApplication, int, error) {
	defer v.lock()()
	apps := v.filterFunds(f)
	sort.Slice(apps, func(i, j int) bool { return apps[i].CreatedAt.After(apps[j].CreatedAt) })
	return page(apps, f.Pagination), len(apps), nil
}

func (v *view) CountFundApplications(_ context.Context, f repository.FundFilter) (int, error) {
	defer v.lock()()
	return len(v.filterFunds(f)), nil
}

func (v *view) CreatePaymentAccount(_ context.Context, a *models.PaymentAccount) error {
	defer v.lock()()
	if _, ok := v.d().accounts[a.ID]; ok {
		return repository.ErrConflict
	}
	v.d().accounts[a.ID] = *a
	return nil
}

func (v *view) GetPaymentAccount(_ context.Context, id string) (*models.PaymentAccount, error) {
	defer v.lock()()
	a, ok := v.d().accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (v *view) ListPaymentAccounts(_ context.Context, status models.AccountStatus) ([]models.PaymentAccount, error) {
	defer v.lock()()
	var out []models.PaymentAccount
	for _, a := range v.d().accounts {
		if status == "" || a.Status == status {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (v *view) UpdatePaymentAccount(_ context.Context, a *models.PaymentAccount) error {
	defer v.lock()()
	if _, ok := v.d().accounts[a.ID]; !ok {
		return repository.ErrNotFound
	}
	v.d().accounts[a.ID] = *a
	return nil
}

func (v *view) DeletePaymentAccount(_ context.Context, id string) error {
	defer v.lock()()
	if _, ok := v.d().accounts[id]; !ok {
		return repository.ErrNotFound
	}
	delete(v.d().accounts, id)
	return nil
}
