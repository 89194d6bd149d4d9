package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/GRI-ESPCI/intrarez/internal/models"
)

// Ошибки нарушения инвариантов аренды.
var (
	// ErrRoomOccupied — у комнаты уже есть текущая аренда.
	ErrRoomOccupied = errors.New("room already has a current rental")
	// ErrAlreadyRenting — у аккаунта уже есть текущая аренда.
	ErrAlreadyRenting = errors.New("account already has a current rental")
)

// FindRoom возвращает комнату по номеру или nil, если такой нет.
func (s *Storage) FindRoom(ctx context.Context, num int) (*models.Room, error) {
	const op = "storage.FindRoom"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT num, floor, base_ip, ips_allocated FROM rooms WHERE num = $1`
	r := &models.Room{}
	err := s.DB.QueryRowContext(ctx, query, num).Scan(&r.Num, &r.Floor, &r.BaseIP, &r.IPsAllocated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return r, nil
}

// ListRooms возвращает весь каталог комнат.
func (s *Storage) ListRooms(ctx context.Context) ([]*models.Room, error) {
	const op = "storage.ListRooms"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT num, floor, base_ip, ips_allocated FROM rooms ORDER BY num`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []*models.Room
	for rows.Next() {
		r := &models.Room{}
		if err := rows.Scan(&r.Num, &r.Floor, &r.BaseIP, &r.IPsAllocated); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

func scanRental(row interface{ Scan(...any) error }) (*models.Rental, error) {
	r := &models.Rental{}
	var end sql.NullTime
	if err := row.Scan(&r.ID, &r.AccountID, &r.RoomNum, &r.Start, &end); err != nil {
		return nil, err
	}
	if end.Valid {
		r.End = &end.Time
	}
	return r, nil
}

// FindCurrentRentalByAccount возвращает текущую аренду аккаунта или nil.
func (s *Storage) FindCurrentRentalByAccount(ctx context.Context, accountID int, today time.Time) (*models.Rental, error) {
	const op = "storage.FindCurrentRentalByAccount"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, account_id, room_num, start_date, end_date
			  FROM rentals
			  WHERE account_id = $1 AND (end_date IS NULL OR end_date > $2)
			  ORDER BY start_date DESC
			  LIMIT 1`
	rental, err := scanRental(s.DB.QueryRowContext(ctx, query, accountID, today))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return rental, nil
}

// FindCurrentRentalByRoom возвращает текущую аренду комнаты или nil.
func (s *Storage) FindCurrentRentalByRoom(ctx context.Context, roomNum int, today time.Time) (*models.Rental, error) {
	const op = "storage.FindCurrentRentalByRoom"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, account_id, room_num, start_date, end_date
			  FROM rentals
			  WHERE room_num = $1 AND (end_date IS NULL OR end_date > $2)
			  ORDER BY start_date DESC
			  LIMIT 1`
	rental, err := scanRental(s.DB.QueryRowContext(ctx, query, roomNum, today))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return rental, nil
}

// CreateRental создаёт аренду, соблюдая инварианты "не более одной текущей
// аренды на аккаунт и на комнату" в одной транзакции.
//
// Если комната занята и takeOver=false, возвращает ErrRoomOccupied.
// При takeOver=true аренда предыдущего занимающего закрывается сегодняшним
// днём, и возвращается его ID (для уведомления), иначе 0.
func (s *Storage) CreateRental(ctx context.Context, rental models.Rental, takeOver bool, today time.Time) (rentalID, displacedAccountID int, err error) {
	const op = "storage.CreateRental"
	select {
	case <-ctx.Done():
		return 0, 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	// Блокируем комнату, чтобы сериализовать конкурентные заселения.
	if _, err = tx.ExecContext(ctx,
		`SELECT num FROM rooms WHERE num = $1 FOR UPDATE`, rental.RoomNum); err != nil {
		return 0, 0, fmt.Errorf("%s: %w", op, err)
	}

	var ownID int
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM rentals
		 WHERE account_id = $1 AND (end_date IS NULL OR end_date > $2)`,
		rental.AccountID, today).Scan(&ownID)
	if err == nil {
		return 0, 0, fmt.Errorf("%s: %w", op, ErrAlreadyRenting)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, 0, fmt.Errorf("%s: %w", op, err)
	}

	var occupantID int
	err = tx.QueryRowContext(ctx,
		`SELECT account_id FROM rentals
		 WHERE room_num = $1 AND (end_date IS NULL OR end_date > $2)`,
		rental.RoomNum, today).Scan(&occupantID)
	switch {
	case err == nil && !takeOver:
		return 0, 0, fmt.Errorf("%s: %w", op, ErrRoomOccupied)
	case err == nil:
		if _, err = tx.ExecContext(ctx,
			`UPDATE rentals SET end_date = $1
			 WHERE room_num = $2 AND (end_date IS NULL OR end_date > $1)`,
			today, rental.RoomNum); err != nil {
			return 0, 0, fmt.Errorf("%s: %w", op, err)
		}
		displacedAccountID = occupantID
	case !errors.Is(err, sql.ErrNoRows):
		return 0, 0, fmt.Errorf("%s: %w", op, err)
	}

	err = tx.QueryRowContext(ctx,
		`INSERT INTO rentals (account_id, room_num, start_date, end_date)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		rental.AccountID, rental.RoomNum, rental.Start, rental.End).Scan(&rentalID)
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w", op, err)
	}

	if err = tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("%s: %w", op, err)
	}
	return rentalID, displacedAccountID, nil
}

// TerminateRental закрывает аренду указанной датой и возвращает количество
// изменённых строк.
func (s *Storage) TerminateRental(ctx context.Context, id int, end time.Time) (int, error) {
	const op = "storage.TerminateRental"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	result, err := s.DB.ExecContext(ctx,
		`UPDATE rentals SET end_date = $1 WHERE id = $2`, end, id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// UpdateRentalDates изменяет даты аренды и возвращает количество
// изменённых строк.
func (s *Storage) UpdateRentalDates(ctx context.Context, id int, start time.Time, end *time.Time) (int, error) {
	const op = "storage.UpdateRentalDates"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE rentals SET start_date = $1, end_date = $2 WHERE id = $3`
	result, err := s.DB.ExecContext(ctx, query, start, end, id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}
