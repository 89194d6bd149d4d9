package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/GRI-ESPCI/intrarez/internal/models"
)

// CreateDevice сохраняет новое устройство и возвращает его ID.
func (s *Storage) CreateDevice(ctx context.Context, device models.Device) (int, error) {
	const op = "storage.CreateDevice"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO devices (account_id, mac, name, type, registered, last_seen)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  RETURNING id`
	var newID int
	err := s.DB.QueryRowContext(ctx, query,
		device.AccountID, device.MAC, device.Name, device.Type,
		device.Registered, device.LastSeen).Scan(&newID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// FindDeviceByMAC возвращает устройство по MAC-адресу или nil, если
// такой адрес не зарегистрирован.
func (s *Storage) FindDeviceByMAC(ctx context.Context, mac string) (*models.Device, error) {
	const op = "storage.FindDeviceByMAC"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, account_id, mac, name, type, registered, last_seen
			  FROM devices WHERE mac = $1`
	d := &models.Device{}
	var lastSeen sql.NullTime
	err := s.DB.QueryRowContext(ctx, query, mac).Scan(&d.ID, &d.AccountID,
		&d.MAC, &d.Name, &d.Type, &d.Registered, &lastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if lastSeen.Valid {
		d.LastSeen = &lastSeen.Time
	}
	return d, nil
}

// ListDevicesByAccount возвращает все устройства аккаунта.
func (s *Storage) ListDevicesByAccount(ctx context.Context, accountID int) ([]*models.Device, error) {
	const op = "storage.ListDevicesByAccount"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, account_id, mac, name, type, registered, last_seen
			  FROM devices
			  WHERE account_id = $1
			  ORDER BY id`
	rows, err := s.DB.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []*models.Device
	for rows.Next() {
		d := &models.Device{}
		var lastSeen sql.NullTime
		if err := rows.Scan(&d.ID, &d.AccountID, &d.MAC, &d.Name, &d.Type,
			&d.Registered, &lastSeen); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if lastSeen.Valid {
			d.LastSeen = &lastSeen.Time
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// CountDevicesByAccount возвращает число устройств аккаунта.
func (s *Storage) CountDevicesByAccount(ctx context.Context, accountID int) (int, error) {
	const op = "storage.CountDevicesByAccount"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var count int
	query := `SELECT COUNT(*) FROM devices WHERE account_id = $1`
	if err := s.DB.QueryRowContext(ctx, query, accountID).Scan(&count); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}

// FirstDeviceRegistered возвращает момент регистрации самого раннего
// устройства аккаунта или nil, если устройств нет.
func (s *Storage) FirstDeviceRegistered(ctx context.Context, accountID int) (*time.Time, error) {
	const op = "storage.FirstDeviceRegistered"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var first sql.NullTime
	query := `SELECT MIN(registered) FROM devices WHERE account_id = $1`
	if err := s.DB.QueryRowContext(ctx, query, accountID).Scan(&first); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !first.Valid {
		return nil, nil
	}
	return &first.Time, nil
}

// TouchDeviceLastSeen обновляет момент последнего появления устройства.
// Последняя запись побеждает: конкурентные обновления безвредны.
func (s *Storage) TouchDeviceLastSeen(ctx context.Context, id int, when time.Time) error {
	const op = "storage.TouchDeviceLastSeen"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE devices SET last_seen = $1 WHERE id = $2`
	if _, err := s.DB.ExecContext(ctx, query, when, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UpdateDeviceOwner переводит устройство на другой аккаунт и возвращает
// количество изменённых строк.
func (s *Storage) UpdateDeviceOwner(ctx context.Context, id, accountID int) (int, error) {
	const op = "storage.UpdateDeviceOwner"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE devices SET account_id = $1 WHERE id = $2`
	result, err := s.DB.ExecContext(ctx, query, accountID, id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}
