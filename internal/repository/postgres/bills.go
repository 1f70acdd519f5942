package postgres

import (
	"context"
	"fmt"

	"github.com/kaskelas/backend/internal/models"
	"github.com/kaskelas/backend/internal/repository"
)

const billColumns = `id, bill_id, user_id, class_id, month, year, due_date, kas_kelas, biaya_admin,
	total_amount, status, payment_method, payment_proof_url, payment_account_id, paid_at,
	confirmed_by, confirmed_at, created_at, updated_at`

func scanBill(row rowScanner) (*models.CashBill, error) {
	var b models.CashBill
	err := row.Scan(
		&b.ID, &b.BillID, &b.UserID, &b.ClassID, &b.Month, &b.Year, &b.DueDate,
		&b.KasKelas, &b.BiayaAdmin, &b.TotalAmount, &b.Status, &b.PaymentMethod,
		&b.PaymentProofURL, &b.PaymentAccountID, &b.PaidAt, &b.ConfirmedBy,
		&b.ConfirmedAt, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (q *queries) GetBill(ctx context.Context, id string) (*models.CashBill, error) {
	bill, err := scanBill(q.db.QueryRowContext(ctx,
		"SELECT "+billColumns+" FROM cash_bills WHERE id = $1", id))
	if err != nil {
		return nil, notFound(err)
	}
	return bill, nil
}

func (q *queries) GetBillForUpdate(ctx context.Context, id string) (*models.CashBill, error) {
	bill, err := scanBill(q.db.QueryRowContext(ctx,
		"SELECT "+billColumns+" FROM cash_bills WHERE id = $1 FOR UPDATE", id))
	if err != nil {
		return nil, notFound(err)
	}
	return bill, nil
}

func (q *queries) BillExists(ctx context.Context, userID string, period models.Period) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM cash_bills WHERE user_id = $1 AND month = $2 AND year = $3)",
		userID, period.Month, period.Year,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check bill existence: %w", err)
	}
	return exists, nil
}

func (q *queries) CreateBill(ctx context.Context, b *models.CashBill) error {
	result, err := q.db.ExecContext(ctx, `INSERT INTO cash_bills
		(id, bill_id, user_id, class_id, month, year, due_date, kas_kelas, biaya_admin,
		 total_amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (user_id, month, year) DO NOTHING`,
		b.ID, b.BillID, b.UserID, b.ClassID, b.Month, b.Year, b.DueDate, b.KasKelas,
		b.BiayaAdmin, b.TotalAmount, b.Status, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("failed to insert bill: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return repository.ErrConflict
	}
	return nil
}

func (q *queries) UpdateBillIfStatus(ctx context.Context, b *models.CashBill, from models.BillStatus) (bool, error) {
	result, err := q.db.ExecContext(ctx, `UPDATE cash_bills SET
		status = $1, payment_method = $2, payment_proof_url = $3, payment_account_id = $4,
		paid_at = $5, confirmed_by = $6, confirmed_at = $7, updated_at = $8
		WHERE id = $9 AND status = $10`,
		b.Status, b.PaymentMethod, b.PaymentProofURL, b.PaymentAccountID, b.PaidAt,
		b.ConfirmedBy, b.ConfirmedAt, b.UpdatedAt, b.ID, from,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update bill: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func billWhere(f repository.BillFilter) *where {
	w := &where{}
	if f.ClassID != "" {
		w.add("class_id = ?", f.ClassID)
	}
	if f.UserID != "" {
		w.add("user_id = ?", f.UserID)
	}
	if f.Status != "" {
		w.add("status = ?", f.Status)
	}
	if f.Month != 0 {
		w.add("month = ?", f.Month)
	}
	if f.Year != 0 {
		w.add("year = ?", f.Year)
	}
	return w
}

var billSort = map[string][]string{
	"dueDate": {"due_date"},
	"month":   {"year", "month"},
	"status":  {"status"},
}

func (q *queries) ListBills(ctx context.Context, f repository.BillFilter) ([]models.CashBill, int, error) {
	f.Pagination = f.Pagination.Normalize()
	w := billWhere(f)

	total, err := q.count(ctx, "cash_bills", w)
	if err != nil {
		return nil, 0, err
	}

	order := "ASC"
	if f.Desc {
		order = "DESC"
	}
	orderBy := "year DESC, month DESC, created_at DESC"
	if cols, ok := billSort[f.SortBy]; ok {
		orderBy = orderClause(cols, order)
	}

	limit, args := w.page(f.Pagination)
	rows, err := q.db.QueryContext(ctx,
		"SELECT "+billColumns+" FROM cash_bills"+w.String()+" ORDER BY "+orderBy+limit, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list bills: %w", err)
	}
	defer rows.Close()

	var bills []models.CashBill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, 0, err
		}
		bills = append(bills, *b)
	}
	return bills, total, rows.Err()
}

func (q *queries) CountBills(ctx context.Context, f repository.BillFilter) (int, error) {
	return q.count(ctx, "cash_bills", billWhere(f))
}

func (q *queries) CountBillsUsingAccount(ctx context.Context, accountID string) (int, error) {
	w := &where{}
	w.add("payment_account_id = ?", accountID)
	return q.count(ctx, "cash_bills", w)
}

func (q *queries) count(ctx context.Context, table string, w *where) (int, error) {
	var n int
	if err := q.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table+w.String(), w.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}
