// Package rooms — оформление, изменение и завершение аренды комнат.
package rooms

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

// ErrNoSuchRoom — комнаты с таким номером нет в каталоге.
var ErrNoSuchRoom = errors.New("room does not exist")

// ErrNoCurrentRental — у аккаунта нет текущей аренды.
var ErrNoCurrentRental = errors.New("account has no current rental")

const dateLayout = "2006-01-02"

// Repository описывает методы хранилища, нужные сервису аренды.
type Repository interface {
	FindRoom(ctx context.Context, num int) (*models.Room, error)
	FindCurrentRentalByAccount(ctx context.Context, accountID int, today time.Time) (*models.Rental, error)
	CreateRental(ctx context.Context, rental models.Rental, takeOver bool, today time.Time) (rentalID, displacedAccountID int, err error)
	UpdateRentalDates(ctx context.Context, id int, start time.Time, end *time.Time) (int, error)
	TerminateRental(ctx context.Context, id int, end time.Time) (int, error)
}

// EventPublisher публикует события портала.
type EventPublisher interface {
	Publish(routingKey string, message any) error
}

// Service — бизнес-логика аренды комнат.
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

// Register оформляет аренду комнаты на аккаунт. Занятая комната без
// подтверждения force даёт ошибку; с подтверждением аренда предыдущего
// занимающего закрывается в той же транзакции. Возвращает ID аренды и,
// при перехвате, ID выселенного аккаунта.
func (s *Service) Register(ctx context.Context, accountID int, req models.RegisterRentalRequest) (int, int, error) {
	const op = "rooms.Register"

	room, err := s.repo.FindRoom(ctx, req.RoomNum)
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w", op, err)
	}
	if room == nil {
		return 0, 0, ErrNoSuchRoom
	}

	start, err := time.Parse(dateLayout, req.Start)
	if err != nil {
		return 0, 0, fmt.Errorf("%s: invalid start date: %w", op, err)
	}
	var end *time.Time
	if req.End != "" {
		parsed, err := time.Parse(dateLayout, req.End)
		if err != nil {
			return 0, 0, fmt.Errorf("%s: invalid end date: %w", op, err)
		}
		end = &parsed
	}

	rental := models.Rental{AccountID: accountID, RoomNum: req.RoomNum, Start: start, End: end}
	rentalID, displaced, err := s.repo.CreateRental(ctx, rental, req.Force, s.today())
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("rental registered",
		slog.Int("rental_id", rentalID),
		slog.Int("account_id", accountID),
		slog.Int("room_num", req.RoomNum),
		slog.Int("displaced_account_id", displaced))
	s.publishDHCP("rental registered")
	return rentalID, displaced, nil
}

// Modify изменяет даты текущей аренды аккаунта.
func (s *Service) Modify(ctx context.Context, accountID int, req models.ModifyRentalRequest) error {
	const op = "rooms.Modify"

	rental, err := s.repo.FindCurrentRentalByAccount(ctx, accountID, s.today())
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rental == nil {
		return ErrNoCurrentRental
	}

	start, err := time.Parse(dateLayout, req.Start)
	if err != nil {
		return fmt.Errorf("%s: invalid start date: %w", op, err)
	}
	var end *time.Time
	if req.End != "" {
		parsed, err := time.Parse(dateLayout, req.End)
		if err != nil {
			return fmt.Errorf("%s: invalid end date: %w", op, err)
		}
		end = &parsed
	}

	if _, err := s.repo.UpdateRentalDates(ctx, rental.ID, start, end); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.publishDHCP("rental modified")
	return nil
}

// Terminate завершает текущую аренду аккаунта указанной датой.
func (s *Service) Terminate(ctx context.Context, accountID int, req models.TerminateRentalRequest) error {
	const op = "rooms.Terminate"

	rental, err := s.repo.FindCurrentRentalByAccount(ctx, accountID, s.today())
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rental == nil {
		return ErrNoCurrentRental
	}

	end, err := time.Parse(dateLayout, req.End)
	if err != nil {
		return fmt.Errorf("%s: invalid end date: %w", op, err)
	}
	if _, err := s.repo.TerminateRental(ctx, rental.ID, end); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("rental terminated",
		slog.Int("rental_id", rental.ID), slog.Int("account_id", accountID))
	s.publishDHCP("rental terminated")
	return nil
}

func (s *Service) today() time.Time {
	now := s.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

// publishDHCP — событие перегенерации DHCP после мутации. Ошибка публикации
// не отменяет уже совершённую мутацию, только логируется.
func (s *Service) publishDHCP(reason string) {
	err := s.events.Publish(rabbitmq.RoutingKeyDHCP, models.DHCPRegenerateEvent{Reason: reason})
	if err != nil {
		s.log.Error("failed to publish dhcp regenerate event", sl.Err(err))
	}
}
