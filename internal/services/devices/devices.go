// Package devices — регистрация и передача устройств резидентов.
package devices

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/GRI-ESPCI/intrarez/internal/lib/rabbitmq"
	"github.com/GRI-ESPCI/intrarez/internal/lib/sl"
	"github.com/GRI-ESPCI/intrarez/internal/models"
)

// ErrMACTaken — устройство с таким MAC уже зарегистрировано.
var ErrMACTaken = errors.New("device with this MAC is already registered")

// ErrUnknownDevice — устройства с таким MAC нет.
var ErrUnknownDevice = errors.New("no device with this MAC")

// ErrAlreadyOwn — устройство уже принадлежит этому аккаунту.
var ErrAlreadyOwn = errors.New("device already belongs to this account")

// Repository описывает методы хранилища устройств.
type Repository interface {
	FindDeviceByMAC(ctx context.Context, mac string) (*models.Device, error)
	CreateDevice(ctx context.Context, device models.Device) (int, error)
	UpdateDeviceOwner(ctx context.Context, id, accountID int) (int, error)
	ListDevicesByAccount(ctx context.Context, accountID int) ([]*models.Device, error)
}

// EventPublisher публикует события портала.
type EventPublisher interface {
	Publish(routingKey string, message any) error
}

// Service — бизнес-логика устройств.
type Service struct {
	log    *slog.Logger
	repo   Repository
	events EventPublisher
	now    func() time.Time
}

// New создает новый Service.
func New(log *slog.Logger, repo Repository, events EventPublisher) *Service {
	return &Service{log: log, repo: repo, events: events, now: time.Now}
}

// Register регистрирует устройство на аккаунт. MAC хранится в нижнем
// регистре и глобально уникален.
func (s *Service) Register(ctx context.Context, accountID int, req models.RegisterDeviceRequest) (int, error) {
	const op = "devices.Register"

	mac := strings.ToLower(req.MAC)
	existing, err := s.repo.FindDeviceByMAC(ctx, mac)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if existing != nil {
		return 0, ErrMACTaken
	}

	device := models.Device{
		AccountID:  accountID,
		MAC:        mac,
		Name:       req.Name,
		Type:       req.Type,
		Registered: s.now(),
	}
	id, err := s.repo.CreateDevice(ctx, device)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("device registered",
		slog.Int("device_id", id),
		slog.Int("account_id", accountID),
		slog.String("mac", mac))
	s.publishDHCP("device registered")
	return id, nil
}

// Transfer переводит устройство с указанным MAC на аккаунт.
func (s *Service) Transfer(ctx context.Context, accountID int, req models.TransferDeviceRequest) error {
	const op = "devices.Transfer"

	mac := strings.ToLower(req.MAC)
	device, err := s.repo.FindDeviceByMAC(ctx, mac)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if device == nil {
		return ErrUnknownDevice
	}
	if device.AccountID == accountID {
		return ErrAlreadyOwn
	}

	if _, err := s.repo.UpdateDeviceOwner(ctx, device.ID, accountID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("device transferred",
		slog.Int("device_id", device.ID),
		slog.Int("from_account_id", device.AccountID),
		slog.Int("to_account_id", accountID))
	s.publishDHCP("device transferred")
	return nil
}

// List возвращает устройства аккаунта.
func (s *Service) List(ctx context.Context, accountID int) ([]*models.Device, error) {
	const op = "devices.List"
	devices, err := s.repo.ListDevicesByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return devices, nil
}

func (s *Service) publishDHCP(reason string) {
	err := s.events.Publish(rabbitmq.RoutingKeyDHCP, models.DHCPRegenerateEvent{Reason: reason})
	if err != nil {
		s.log.Error("failed to publish dhcp regenerate event", sl.Err(err))
	}
}
