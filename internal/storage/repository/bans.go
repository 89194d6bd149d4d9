package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/GRI-ESPCI/intrarez/internal/models"
)

// ErrAlreadyBanned — у аккаунта уже есть действующий бан.
var ErrAlreadyBanned = errors.New("account already has an active ban")

func scanBan(row interface{ Scan(...any) error }) (*models.Ban, error) {
	b := &models.Ban{}
	var end sql.NullTime
	if err := row.Scan(&b.ID, &b.AccountID, &b.Start, &end, &b.Reason, &b.Message); err != nil {
		return nil, err
	}
	if end.Valid {
		b.End = &end.Time
	}
	return b, nil
}

// FindCurrentBan возвращает действующий бан аккаунта или nil.
func (s *Storage) FindCurrentBan(ctx context.Context, accountID int, now time.Time) (*models.Ban, error) {
	const op = "storage.FindCurrentBan"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, account_id, start_time, end_time, reason, message
			  FROM bans
			  WHERE account_id = $1 AND start_time <= $2
				AND (end_time IS NULL OR end_time > $2)
			  ORDER BY start_time DESC
			  LIMIT 1`
	ban, err := scanBan(s.DB.QueryRowContext(ctx, query, accountID, now))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ban, nil
}

// ListBansByAccount возвращает все баны аккаунта, новые первыми.
func (s *Storage) ListBansByAccount(ctx context.Context, accountID int) ([]*models.Ban, error) {
	const op = "storage.ListBansByAccount"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, account_id, start_time, end_time, reason, message
		 FROM bans WHERE account_id = $1 ORDER BY start_time DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []*models.Ban
	for rows.Next() {
		ban, err := scanBan(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, ban)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// CreateBan создаёт бан, следя за тем, чтобы у аккаунта был не более
// одного действующего бана. Возвращает ErrAlreadyBanned при нарушении.
func (s *Storage) CreateBan(ctx context.Context, ban models.Ban) (int, error) {
	const op = "storage.CreateBan"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	var existing int
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM bans
		 WHERE account_id = $1 AND start_time <= $2
		   AND (end_time IS NULL OR end_time > $2)
		 FOR UPDATE`,
		ban.AccountID, ban.Start).Scan(&existing)
	if err == nil {
		return 0, fmt.Errorf("%s: %w", op, ErrAlreadyBanned)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	var id int
	err = tx.QueryRowContext(ctx,
		`INSERT INTO bans (account_id, start_time, end_time, reason, message)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		ban.AccountID, ban.Start, ban.End, ban.Reason, ban.Message).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// CloseBan завершает бан указанным моментом и возвращает количество
// изменённых строк.
func (s *Storage) CloseBan(ctx context.Context, id int, end time.Time) (int, error) {
	const op = "storage.CloseBan"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	result, err := s.DB.ExecContext(ctx,
		`UPDATE bans SET end_time = $1 WHERE id = $2`, end, id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}
