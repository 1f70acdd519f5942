package postgres

import (
	"context"
	"fmt"

	"github.com/kaskelas/backend/internal/models"
	"github.com/kaskelas/backend/internal/repository"
)

const transactionColumns = "id, class_id, type, category, amount, description, date, source_type, source_id, created_at"

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(&t.ID, &t.ClassID, &t.Type, &t.Category, &t.Amount, &t.Description,
		&t.Date, &t.SourceType, &t.SourceID, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// AppendTransaction is the only write the ledger supports.
func (q *queries) AppendTransaction(ctx context.Context, t *models.Transaction) error {
	_, err := q.db.ExecContext(ctx, `INSERT INTO transactions
		(id, class_id, type, category, amount, description, date, source_type, source_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		t.ID, t.ClassID, t.Type, t.Category, t.Amount, t.Description, t.Date,
		t.SourceType, t.SourceID, t.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

func (q *queries) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	t, err := scanTransaction(q.db.QueryRowContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE id = $1", id))
	if err != nil {
		return nil, notFound(err)
	}
	return t, nil
}

func rangeWhere(r repository.LedgerRange) *where {
	w := &where{}
	if r.ClassID != "" {
		w.add("class_id = ?", r.ClassID)
	}
	if r.Type != "" {
		w.add("type = ?", r.Type)
	}
	if r.From != nil {
		w.add("date >= ?", *r.From)
	}
	if r.To != nil {
		w.add("date <= ?", *r.To)
	}
	return w
}

var transactionSort = map[string]string{
	"date":   "date",
	"amount": "amount",
	"type":   "type",
}

func (q *queries) ListTransactions(ctx context.Context, f repository.TransactionFilter) ([]models.Transaction, int, error) {
	f.Pagination = f.Pagination.Normalize()
	w := rangeWhere(repository.LedgerRange{ClassID: f.ClassID, Type: f.Type, From: f.From, To: f.To})
	if f.Category != "" {
		w.add("category = ?", f.Category)
	}

	total, err := q.count(ctx, "transactions", w)
	if err != nil {
		return nil, 0, err
	}

	col, ok := transactionSort[f.SortBy]
	if !ok {
		col = "date"
	}
	order := "DESC"
	if f.Asc {
		order = "ASC"
	}

	limit, args := w.page(f.Pagination)
	rows, err := q.db.QueryContext(ctx, "SELECT "+transactionColumns+" FROM transactions"+w.String()+
		" ORDER BY "+col+" "+order+", created_at "+order+limit, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *t)
	}
	return out, total, rows.Err()
}

// SumTransactions returns zero totals for an empty range.
func (q *queries) SumTransactions(ctx context.Context, r repository.LedgerRange) (models.Totals, error) {
	w := rangeWhere(r)
	var totals models.Totals
	err := q.db.QueryRowContext(ctx, `SELECT
		COALESCE(SUM(CASE WHEN type = 'income' THEN amount ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN type = 'expense' THEN amount ELSE 0 END), 0),
		COUNT(*)
		FROM transactions`+w.String(), w.args...,
	).Scan(&totals.Income, &totals.Expense, &totals.Count)
	if err != nil {
		return models.Totals{}, fmt.Errorf("failed to sum transactions: %w", err)
	}
	return totals, nil
}

func (q *queries) DailyTotals(ctx context.Context, r repository.LedgerRange) ([]models.DailyAmount, error) {
	w := rangeWhere(r)
	rows, err := q.db.QueryContext(ctx, `SELECT to_char(date, 'YYYY-MM-DD') AS day, SUM(amount)
		FROM transactions`+w.String()+` GROUP BY day ORDER BY day`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate daily totals: %w", err)
	}
	defer rows.Close()

	var out []models.DailyAmount
	for rows.Next() {
		var d models.DailyAmount
		if err := rows.Scan(&d.Date, &d.Amount); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (q *queries) CategoryTotals(ctx context.Context, r repository.LedgerRange) ([]models.CategoryAmount, error) {
	w := rangeWhere(r)
	rows, err := q.db.QueryContext(ctx, `SELECT category, SUM(amount), COUNT(*)
		FROM transactions`+w.String()+` GROUP BY category ORDER BY SUM(amount) DESC`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate category totals: %w", err)
	}
	defer rows.Close()

	var out []models.CategoryAmount
	for rows.Next() {
		var c models.CategoryAmount
		if err := rows.Scan(&c.Category, &c.Amount, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
