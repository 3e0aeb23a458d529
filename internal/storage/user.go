package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/lib/pq"

	"voipgate-backend/internal/apperror"
	"voipgate-backend/internal/models"
)

const uniqueViolation = "23505"

func (s *Storage) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUserBy(ctx, "email", email)
}

func (s *Storage) FindUserByVoipmsID(ctx context.Context, clientID string) (*models.User, error) {
	return s.findUserBy(ctx, "voipms_client_id", clientID)
}

func (s *Storage) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.findUserBy(ctx, "id", id)
}

func (s *Storage) findUserBy(ctx context.Context, column, value string) (*models.User, error) {
	query := fmt.Sprintf(`
		SELECT id, email, password_hash, voipms_client_id, company, role, status, created_at
		FROM users
		WHERE %s = $1
	`, column)

	var user models.User
	if err := s.db.GetContext(ctx, &user, query, value); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, password_hash, voipms_client_id, company, role, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	err := s.db.QueryRowContext(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.VoipmsClientID,
		user.Company, user.Role, user.Status,
	).Scan(&user.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == uniqueViolation {
			return fmt.Errorf("%w: user", apperror.ErrConflict)
		}
		return err
	}
	return nil
}

// UpdateUser applies the given column/value pairs. Columns are restricted to
// the mutable user fields.
func (s *Storage) UpdateUser(ctx context.Context, id string, fields map[string]any) (*models.User, error) {
	allowed := map[string]bool{
		"email": true, "password_hash": true, "company": true,
		"role": true, "status": true,
	}

	columns := make([]string, 0, len(fields))
	for col := range fields {
		if !allowed[col] {
			return nil, fmt.Errorf("%w: unknown field %q", apperror.ErrValidation, col)
		}
		columns = append(columns, col)
	}
	if len(columns) == 0 {
		return s.FindUserByID(ctx, id)
	}
	sort.Strings(columns)

	set := ""
	args := make([]any, 0, len(columns)+1)
	for i, col := range columns {
		if i > 0 {
			set += ", "
		}
		set += fmt.Sprintf("%s = $%d", col, i+1)
		args = append(args, fields[col])
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d`, set, len(args))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == uniqueViolation {
			return nil, fmt.Errorf("%w: user", apperror.ErrConflict)
		}
		return nil, err
	}
	return s.FindUserByID(ctx, id)
}

func (s *Storage) DeleteUser(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	return err
}

func (s *Storage) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	query := `
		SELECT id, email, password_hash, voipms_client_id, company, role, status, created_at
		FROM users
		ORDER BY created_at
	`
	err := s.db.SelectContext(ctx, &users, query)
	return users, err
}
