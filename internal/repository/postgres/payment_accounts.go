package postgres

import (
	"context"
	"fmt"

	"github.com/kaskelas/backend/internal/models"
)

const accountColumns = "id, name, account_type, account_number, account_holder, description, status, created_at, updated_at"

func scanPaymentAccount(row rowScanner) (*models.PaymentAccount, error) {
	var a models.PaymentAccount
	err := row.Scan(&a.ID, &a.Name, &a.AccountType, &a.AccountNumber, &a.AccountHolder,
		&a.Description, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (q *queries) CreatePaymentAccount(ctx context.Context, a *models.PaymentAccount) error {
	_, err := q.db.ExecContext(ctx, `INSERT INTO payment_accounts
		(id, name, account_type, account_number, account_holder, description, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.Name, a.AccountType, a.AccountNumber, a.AccountHolder, a.Description, a.Status,
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment account: %w", err)
	}
	return nil
}

func (q *queries) GetPaymentAccount(ctx context.Context, id string) (*models.PaymentAccount, error) {
	a, err := scanPaymentAccount(q.db.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM payment_accounts WHERE id = $1", id))
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

func (q *queries) ListPaymentAccounts(ctx context.Context, status models.AccountStatus) ([]models.PaymentAccount, error) {
	w := &where{}
	if status != "" {
		w.add("status = ?", status)
	}
	rows, err := q.db.QueryContext(ctx,
		"SELECT "+accountColumns+" FROM payment_accounts"+w.String()+" ORDER BY created_at DESC", w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment accounts: %w", err)
	}
	defer rows.Close()

	var out []models.PaymentAccount
	for rows.Next() {
		a, err := scanPaymentAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (q *queries) UpdatePaymentAccount(ctx context.Context, a *models.PaymentAccount) error {
	result, err := q.db.ExecContext(ctx, `UPDATE payment_accounts SET
		name = $1, account_type = $2, account_number = $3, account_holder = $4,
		description = $5, status = $6, updated_at = $7
		WHERE id = $8`,
		a.Name, a.AccountType, a.AccountNumber, a.AccountHolder, a.Description, a.Status,
		a.UpdatedAt, a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment account: %w", err)
	}
	return expectOne(result)
}

func (q *queries) DeletePaymentAccount(ctx context.Context, id string) error {
	result, err := q.db.ExecContext(ctx, "DELETE FROM payment_accounts WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete payment account: %w", err)
	}
	return expectOne(result)
}
