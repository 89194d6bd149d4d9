package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/GRI-ESPCI/intrarez/internal/models"
)

const accountColumns = `id, username, email, first_name, last_name, promo,
			      locale, is_gri, sub_state, password_hash`

func scanAccount(row *sql.Row) (*models.Account, error) {
	a := &models.Account{}
	err := row.Scan(&a.ID, &a.Username, &a.Email, &a.FirstName, &a.LastName,
		&a.Promo, &a.Locale, &a.IsGri, &a.SubState, &a.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// CreateAccount сохраняет нового резидента и возвращает его ID.
func (s *Storage) CreateAccount(ctx context.Context, account models.Account) (int, error) {
	const op = "storage.CreateAccount"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO accounts (username, email, first_name, last_name,
			      promo, locale, is_gri, sub_state, password_hash)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			  RETURNING id`
	var newID int
	err := s.DB.QueryRowContext(ctx, query,
		account.Username, account.Email, account.FirstName, account.LastName,
		account.Promo, account.Locale, account.IsGri, account.SubState,
		account.PasswordHash).Scan(&newID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// FindAccount возвращает аккаунт по ID или nil, если такого нет.
func (s *Storage) FindAccount(ctx context.Context, id int) (*models.Account, error) {
	const op = "storage.FindAccount"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	account, err := scanAccount(s.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return account, nil
}

// FindAccountByUsername возвращает аккаунт по имени пользователя или nil.
func (s *Storage) FindAccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	const op = "storage.FindAccountByUsername"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE username = $1`
	account, err := scanAccount(s.DB.QueryRowContext(ctx, query, username))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return account, nil
}

// ListAccounts возвращает список всех аккаунтов с пагинацией.
func (s *Storage) ListAccounts(ctx context.Context, limit, offset int) ([]*models.Account, error) {
	const op = "storage.ListAccounts"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + accountColumns + `
			  FROM accounts
			  ORDER BY id
			  LIMIT $1 OFFSET $2`
	rows, err := s.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []*models.Account
	for rows.Next() {
		a := &models.Account{}
		if err := rows.Scan(&a.ID, &a.Username, &a.Email, &a.FirstName,
			&a.LastName, &a.Promo, &a.Locale, &a.IsGri, &a.SubState,
			&a.PasswordHash); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// UpdateAccountSubState обновляет кешированное состояние подписки аккаунта.
func (s *Storage) UpdateAccountSubState(ctx context.Context, id int, state models.SubState) error {
	const op = "storage.UpdateAccountSubState"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE accounts SET sub_state = $1 WHERE id = $2`
	if _, err := s.DB.ExecContext(ctx, query, state, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
