package postgres

import (
	"context"
	"fmt"

	"github.com/kaskelas/backend/internal/models"
)

const userColumns = "id, nim, name, email, role, class_id, created_at"

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.NIM, &u.Name, &u.Email, &u.Role, &u.ClassID, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (q *queries) GetUser(ctx context.Context, id string) (*models.User, error) {
	u, err := scanUser(q.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id))
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

func (q *queries) GetUserByNIM(ctx context.Context, nim string) (*models.User, error) {
	u, err := scanUser(q.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE nim = $1", nim))
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

// ListStudents returns every student, or only those of classID when it is set.
func (q *queries) ListStudents(ctx context.Context, classID string) ([]models.User, error) {
	w := studentWhere(classID)
	rows, err := q.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users"+w.String()+" ORDER BY nim", w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	defer rows.Close()

	var out []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (q *queries) CountStudents(ctx context.Context, classID string) (int, error) {
	return q.count(ctx, "users", studentWhere(classID))
}

func studentWhere(classID string) *where {
	w := &where{}
	w.add("role = ?", models.RoleStudent)
	if classID != "" {
		w.add("class_id = ?", classID)
	}
	return w
}
