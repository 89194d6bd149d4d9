// Package dhcp генерирует файл статических аренд DHCP из таблицы
// выданных адресов: для каждой занятой комнаты — по записи на каждое
// устройство занимающего.
package dhcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/GRI-ESPCI/intrarez/internal/models"
)

// Repository определяет методы хранилища, нужные генератору.
type Repository interface {
	ListRooms(ctx context.Context) ([]*models.Room, error)
	FindCurrentRentalByRoom(ctx context.Context, roomNum int, today time.Time) (*models.Rental, error)
	FindAccount(ctx context.Context, id int) (*models.Account, error)
	ListDevicesByAccount(ctx context.Context, accountID int) ([]*models.Device, error)
}

// Allocator выдаёт IP устройству в комнате (включая диапазон бана).
type Allocator interface {
	Allocate(ctx context.Context, device *models.Device, roomNum int) (string, error)
}

// Service — генератор правил DHCP.
type Service struct {
	log       *slog.Logger
	repo      Repository
	allocator Allocator
	now       func() time.Time
}

// New создает новый Service.
func New(log *slog.Logger, repo Repository, allocator Allocator) *Service {
	return &Service{log: log, repo: repo, allocator: allocator, now: time.Now}
}

// Rules генерирует содержимое файла статических аренд. Свободные комнаты
// пропускаются; адреса берутся из движка выдачи, так что забаненные
// резиденты оказываются в немаршрутизируемом диапазоне.
func (s *Service) Rules(ctx context.Context) (string, error) {
	const op = "dhcp.Rules"

	rooms, err := s.repo.ListRooms(ctx)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	var b strings.Builder
	now := s.now()
	for _, room := range rooms {
		rental, err := s.repo.FindCurrentRentalByRoom(ctx, room.Num, now)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		if rental == nil {
			continue
		}

		occupant, err := s.repo.FindAccount(ctx, rental.AccountID)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		if occupant == nil {
			return "", fmt.Errorf("%s: rental %d references missing account %d",
				op, rental.ID, rental.AccountID)
		}

		devices, err := s.repo.ListDevicesByAccount(ctx, occupant.ID)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		for i, device := range devices {
			ip, err := s.allocator.Allocate(ctx, device, room.Num)
			if err != nil {
				return "", fmt.Errorf("%s: %w", op, err)
			}
			fmt.Fprintf(&b, "host %s-%d-%d {\n\thardware ethernet %s;\n\tfixed-address %s;\n}\n",
				occupant.Username, room.Num, i, device.MAC, ip)
		}
	}
	return b.String(), nil
}

// WriteFile атомарно записывает правила: во временный файл рядом с целью,
// затем rename, чтобы dhcpd никогда не увидел файл наполовину.
func (s *Service) WriteFile(ctx context.Context, path string) error {
	const op = "dhcp.WriteFile"

	rules, err := s.Rules(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, err := tmp.WriteString(rules); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("dhcp hosts file written", slog.String("path", path),
		slog.Int("bytes", len(rules)))
	return nil
}
