// Package gris — административные операции сотрудников GRI.
package gris

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/GRI-ESPCI/intrarez/internal/lib/rabbitmq"
	"github.com/GRI-ESPCI/intrarez/internal/lib/sl"
	"github.com/GRI-ESPCI/intrarez/internal/models"
)

// ErrNoSuchAccount — аккаунта с таким ID нет.
var ErrNoSuchAccount = errors.New("account does not exist")

// ErrNotBanned — у аккаунта нет текущего бана.
var ErrNotBanned = errors.New("account has no active ban")

const dateLayout = "2006-01-02"

// Максимум аккаунтов на страницу списка.
const maxPageSize = 200

// Repository описывает методы хранилища, нужные административному сервису.
type Repository interface {
	FindAccount(ctx context.Context, id int) (*models.Account, error)
	ListAccounts(ctx context.Context, limit, offset int) ([]*models.Account, error)
	FindCurrentBan(ctx context.Context, accountID int, now time.Time) (*models.Ban, error)
	CreateBan(ctx context.Context, ban models.Ban) (int, error)
	CloseBan(ctx context.Context, id int, end time.Time) (int, error)
}

// EventPublisher публикует события портала.
type EventPublisher interface {
	Publish(routingKey string, message any) error
}

// Service — бизнес-логика административных операций.
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

// Ban накладывает бан на резидента от имени GRI. Забаненное устройство
// получает адрес из нулевого диапазона при следующей генерации DHCP,
// поэтому после записи публикуется событие перегенерации.
func (s *Service) Ban(ctx context.Context, griID int, req models.BanRequest) (int, error) {
	const op = "gris.Ban"

	account, err := s.repo.FindAccount(ctx, req.AccountID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if account == nil {
		return 0, ErrNoSuchAccount
	}

	var end *time.Time
	if req.End != "" {
		parsed, err := time.Parse(dateLayout, req.End)
		if err != nil {
			return 0, fmt.Errorf("%s: invalid end date: %w", op, err)
		}
		end = &parsed
	}

	ban := models.Ban{
		AccountID: req.AccountID,
		Start:     s.now(),
		End:       end,
		Reason:    req.Reason,
		Message:   req.Message,
	}
	id, err := s.repo.CreateBan(ctx, ban)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("ban created",
		slog.Int("ban_id", id),
		slog.Int("account_id", req.AccountID),
		slog.Int("gri_id", griID),
		slog.String("reason", req.Reason))
	s.publishDHCP("ban created")
	return id, nil
}

// Unban снимает текущий бан с резидента, закрывая его текущим моментом.
func (s *Service) Unban(ctx context.Context, griID int, req models.UnbanRequest) error {
	const op = "gris.Unban"

	now := s.now()
	ban, err := s.repo.FindCurrentBan(ctx, req.AccountID, now)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if ban == nil {
		return ErrNotBanned
	}

	if _, err := s.repo.CloseBan(ctx, ban.ID, now); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("ban lifted",
		slog.Int("ban_id", ban.ID),
		slog.Int("account_id", req.AccountID),
		slog.Int("gri_id", griID))
	s.publishDHCP("ban lifted")
	return nil
}

// Accounts возвращает страницу списка аккаунтов.
func (s *Service) Accounts(ctx context.Context, limit, offset int) ([]*models.Account, error) {
	const op = "gris.Accounts"

	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	accounts, err := s.repo.ListAccounts(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return accounts, nil
}

func (s *Service) publishDHCP(reason string) {
	err := s.events.Publish(rabbitmq.RoutingKeyDHCP, models.DHCPRegenerateEvent{Reason: reason})
	if err != nil {
		s.log.Error("failed to publish dhcp regenerate event", sl.Err(err))
	}
}
