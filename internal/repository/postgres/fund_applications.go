package postgres

import (
	"context"
	"fmt"

	"github.com/kaskelas/backend/internal/models"
	"github.com/kaskelas/backend/internal/repository"
)

const fundColumns = `id, user_id, class_id, purpose, description, category, amount, status,
	reviewed_by, reviewed_at, rejection_reason, attachment_url, created_at, updated_at`

func scanFundApplication(row rowScanner) (*models.FundApplication, error) {
	var a models.FundApplication
	err := row.Scan(&a.ID, &a.UserID, &a.ClassID, &a.Purpose, &a.Description, &a.Category,
		&a.Amount, &a.Status, &a.ReviewedBy, &a.ReviewedAt, &a.RejectionReason,
		&a.AttachmentURL, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (q *queries) CreateFundApplication(ctx context.Context, a *models.FundApplication) error {
	_, err := q.db.ExecContext(ctx, `INSERT INTO fund_applications
		(id, user_id, class_id, purpose, description, category, amount, status, attachment_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		a.ID, a.UserID, a.ClassID, a.Purpose, a.Description, a.Category, a.Amount, a.Status,
		a.AttachmentURL, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert fund application: %w", err)
	}
	return nil
}

func (q *queries) GetFundApplication(ctx context.Context, id string) (*models.FundApplication, error) {
	a, err := scanFundApplication(q.db.QueryRowContext(ctx,
		"SELECT "+fundColumns+" FROM fund_applications WHERE id = $1", id))
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

func (q *queries) GetFundApplicationForUpdate(ctx context.Context, id string) (*models.FundApplication, error) {
	a, err := scanFundApplication(q.db.QueryRowContext(ctx,
		"SELECT "+fundColumns+" FROM fund_applications WHERE id = $1 FOR UPDATE", id))
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

func (q *queries) UpdateFundApplicationIfStatus(ctx context.Context, a *models.FundApplication, from models.FundStatus) (bool, error) {
	result, err := q.db.ExecContext(ctx, `UPDATE fund_applications SET
		status = $1, reviewed_by = $2, reviewed_at = $3, rejection_reason = $4, updated_at = $5
		WHERE id = $6 AND status = $7`,
		a.Status, a.ReviewedBy, a.ReviewedAt, a.RejectionReason, a.UpdatedAt, a.ID, from,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update fund application: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func fundWhere(f repository.FundFilter) *where {
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
	if f.Category != "" {
		w.add("category = ?", f.Category)
	}
	if f.MinAmount > 0 {
		w.add("amount >= ?", f.MinAmount)
	}
	if f.MaxAmount > 0 {
		w.add("amount <= ?", f.MaxAmount)
	}
	return w
}

func (q *queries) ListFundApplications(ctx context.Context, f repository.FundFilter) ([]models.FundApplication, int, error) {
	f.Pagination = f.Pagination.Normalize()
	w := fundWhere(f)

	total, err := q.count(ctx, "fund_applications", w)
	if err != nil {
		return nil, 0, err
	}

	limit, args := w.page(f.Pagination)
	rows, err := q.db.QueryContext(ctx,
		"SELECT "+fundColumns+" FROM fund_applications"+w.String()+" ORDER BY created_at DESC"+limit, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list fund applications: %w", err)
	}
	defer rows.Close()

	var out []models.FundApplication
	for rows.Next() {
		a, err := scanFundApplication(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *a)
	}
	return out, total, rows.Err()
}

func (q *queries) CountFundApplications(ctx context.Context, f repository.FundFilter) (int, error) {
	return q.count(ctx, "fund_applications", fundWhere(f))
}
