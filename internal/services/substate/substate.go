// Package substate — ежедневный пересчёт кеша состояния подписки.
//
// Состояние sub_state денормализовано в accounts и дрейфует со временем:
// льготный период кончается без каких-либо записей в базе. Раз в сутки
// или по запросу GRI все аккаунты пересчитываются из их подписок.
package substate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/GRI-ESPCI/intrarez/internal/lib/rabbitmq"
	"github.com/GRI-ESPCI/intrarez/internal/lib/sl"
	"github.com/GRI-ESPCI/intrarez/internal/models"
)

// Размер страницы при обходе аккаунтов.
const pageSize = 100

// Repository описывает методы хранилища, нужные пересчёту.
type Repository interface {
	ListAccounts(ctx context.Context, limit, offset int) ([]*models.Account, error)
	ListSubscriptionsByAccount(ctx context.Context, accountID int) ([]*models.Subscription, error)
	UpdateAccountSubState(ctx context.Context, id int, state models.SubState) error
}

// EventPublisher публикует события портала.
type EventPublisher interface {
	Publish(routingKey string, message any) error
}

// Service обходит аккаунты и актуализирует их sub_state.
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

// Stats — итог одного прохода пересчёта.
type Stats struct {
	Scanned int `json:"scanned"`
	Changed int `json:"changed"`
}

// Run запускает пересчёт сразу и затем по таймеру, пока контекст жив.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	s.runLogged(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runLogged(ctx)
		}
	}
}

func (s *Service) runLogged(ctx context.Context) {
	stats, err := s.RunOnce(ctx)
	if err != nil {
		s.log.Error("substate recomputation failed", sl.Err(err))
		return
	}
	s.log.Info("substate recomputation done",
		slog.Int("scanned", stats.Scanned), slog.Int("changed", stats.Changed))
}

// RunOnce пересчитывает состояние всех аккаунтов один раз. Ошибка на
// отдельном аккаунте логируется и не прерывает проход.
func (s *Service) RunOnce(ctx context.Context) (Stats, error) {
	const op = "substate.RunOnce"

	var stats Stats
	today := s.today()
	for offset := 0; ; offset += pageSize {
		accounts, err := s.repo.ListAccounts(ctx, pageSize, offset)
		if err != nil {
			return stats, fmt.Errorf("%s: %w", op, err)
		}
		if len(accounts) == 0 {
			return stats, nil
		}
		for _, account := range accounts {
			stats.Scanned++
			changed, err := s.recompute(ctx, account, today)
			if err != nil {
				s.log.Error("failed to recompute account state",
					slog.Int("account_id", account.ID), sl.Err(err))
				continue
			}
			if changed {
				stats.Changed++
			}
		}
		if len(accounts) < pageSize {
			return stats, nil
		}
	}
}

func (s *Service) recompute(ctx context.Context, account *models.Account, today time.Time) (bool, error) {
	subs, err := s.repo.ListSubscriptionsByAccount(ctx, account.ID)
	if err != nil {
		return false, err
	}
	newState := models.ComputeSubState(subs, today)
	if newState == account.SubState {
		return false, nil
	}
	if err := s.repo.UpdateAccountSubState(ctx, account.ID, newState); err != nil {
		return false, err
	}

	s.log.Info("account state changed",
		slog.Int("account_id", account.ID),
		slog.String("old_state", string(account.SubState)),
		slog.String("new_state", string(newState)))

	notice := models.StateChangeNotice{
		Email:    account.Email,
		Username: account.Username,
		FullName: account.FullName(),
		Locale:   account.Locale,
		OldState: account.SubState,
		NewState: newState,
	}
	if current := models.CurrentSubscription(subs); current != nil {
		notice.CutDay = current.CutDay().Format("2006-01-02")
	}
	if err := s.events.Publish(rabbitmq.RoutingKeyNotification, notice); err != nil {
		s.log.Error("failed to publish state change notice", sl.Err(err))
	}
	return true, nil
}

func (s *Service) today() time.Time {
	now := s.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}
