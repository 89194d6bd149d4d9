// Package allocation — выдача IP-адресов устройствам резидентов.
//
// Забаненный резидент получает детерминированный адрес из зарезервированного
// диапазона 10.0.8-255.x, закодированный из ID бана: этот диапазон никуда
// не маршрутизируется, поэтому снятие бана мгновенно возвращает устройству
// его сохранённый адрес без перестройки таблиц.
package allocation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/GRI-ESPCI/intrarez/internal/models"
)

// Repository определяет методы хранилища, нужные движку выдачи адресов.
type Repository interface {
	FindCurrentBan(ctx context.Context, accountID int, now time.Time) (*models.Ban, error)
	MintAllocation(ctx context.Context, deviceID, roomNum int) (*models.Allocation, error)
}

// Service — движок выдачи адресов.
type Service struct {
	log  *slog.Logger
	repo Repository
	now  func() time.Time
}

// New создает новый Service.
func New(log *slog.Logger, repo Repository) *Service {
	return &Service{log: log, repo: repo, now: time.Now}
}

// BanIP возвращает адрес из зарезервированного диапазона для бана с
// данным ID (хватает на 126975 банов).
func BanIP(banID int) string {
	return fmt.Sprintf("10.0.%d.%d", 8+banID/256, banID%256)
}

// Allocate возвращает IP устройства в комнате. Для забаненного владельца —
// адрес из диапазона бана, ничего не сохраняя; иначе существующий или
// новый адрес комнаты. Выданные адреса никогда не изменяются: устройство
// в новой комнате получает новый адрес, старые остаются.
func (s *Service) Allocate(ctx context.Context, device *models.Device, roomNum int) (string, error) {
	const op = "allocation.Allocate"

	ban, err := s.repo.FindCurrentBan(ctx, device.AccountID, s.now())
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if ban != nil {
		ip := BanIP(ban.ID)
		s.log.Info("allocated ban-range ip",
			slog.Int("device_id", device.ID),
			slog.Int("ban_id", ban.ID),
			slog.String("ip", ip))
		return ip, nil
	}

	alloc, err := s.repo.MintAllocation(ctx, device.ID, roomNum)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return alloc.IP, nil
}
