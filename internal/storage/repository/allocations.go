package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/GRI-ESPCI/intrarez/internal/models"
)

// FindAllocation возвращает выданный адрес для пары устройство/комната
// или nil, если адрес ещё не выдавался.
func (s *Storage) FindAllocation(ctx context.Context, deviceID, roomNum int) (*models.Allocation, error) {
	const op = "storage.FindAllocation"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, device_id, room_num, ip FROM allocations
			  WHERE device_id = $1 AND room_num = $2`
	a := &models.Allocation{}
	err := s.DB.QueryRowContext(ctx, query, deviceID, roomNum).
		Scan(&a.ID, &a.DeviceID, &a.RoomNum, &a.IP)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}

// MintAllocation выдаёт устройству адрес в комнате. Пара устройство/комната
// получает адрес ровно один раз: повторный вызов возвращает уже выданный.
// Счётчик комнаты и вставка выполняются в одной транзакции под блокировкой
// строки комнаты.
func (s *Storage) MintAllocation(ctx context.Context, deviceID, roomNum int) (*models.Allocation, error) {
	const op = "storage.MintAllocation"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	var baseIP string
	var ipsAllocated int
	err = tx.QueryRowContext(ctx,
		`SELECT base_ip, ips_allocated FROM rooms WHERE num = $1 FOR UPDATE`,
		roomNum).Scan(&baseIP, &ipsAllocated)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a := &models.Allocation{DeviceID: deviceID, RoomNum: roomNum}
	err = tx.QueryRowContext(ctx,
		`SELECT id, ip FROM allocations WHERE device_id = $1 AND room_num = $2`,
		deviceID, roomNum).Scan(&a.ID, &a.IP)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a.IP = fmt.Sprintf("10.%d.%s", ipsAllocated%256, baseIP)
	err = tx.QueryRowContext(ctx,
		`INSERT INTO allocations (device_id, room_num, ip) VALUES ($1, $2, $3)
		 RETURNING id`,
		deviceID, roomNum, a.IP).Scan(&a.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE rooms SET ips_allocated = ips_allocated + 1 WHERE num = $1`,
		roomNum); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}

// ListLeases возвращает данные для генерации статических аренд DHCP:
// все выданные адреса вместе с MAC устройства и логином владельца.
func (s *Storage) ListLeases(ctx context.Context) ([]*models.Lease, error) {
	const op = "storage.ListLeases"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT acc.username, a.room_num, d.mac, a.ip
			  FROM allocations a
			  JOIN devices d ON d.id = a.device_id
			  JOIN accounts acc ON acc.id = d.account_id
			  ORDER BY a.room_num, a.ip`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []*models.Lease
	for rows.Next() {
		l := &models.Lease{}
		if err := rows.Scan(&l.Username, &l.RoomNum, &l.MAC, &l.IP); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
