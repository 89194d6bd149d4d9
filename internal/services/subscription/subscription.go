// Package subscription — каталог тарифов и оформление подписок.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/GRI-ESPCI/intrarez/internal/cache"
	"github.com/GRI-ESPCI/intrarez/internal/lib/rabbitmq"
	"github.com/GRI-ESPCI/intrarez/internal/lib/sl"
	"github.com/GRI-ESPCI/intrarez/internal/models"
)

// ErrUnknownOffer — предложения с таким слагом нет или оно неактивно.
var ErrUnknownOffer = errors.New("offer not available")

// Repository описывает методы хранилища подписок.
type Repository interface {
	FindOffer(ctx context.Context, slug string) (*models.Offer, error)
	ListOffers(ctx context.Context) ([]*models.Offer, error)
	ListSubscriptionsByAccount(ctx context.Context, accountID int) ([]*models.Subscription, error)
	CreateSubscription(ctx context.Context, sub models.Subscription) (int, error)
	CreatePayment(ctx context.Context, payment models.Payment) (int, error)
	UpdateAccountSubState(ctx context.Context, id int, state models.SubState) error
}

// Cache описывает методы кеша каталога.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
}

// EventPublisher публикует события портала.
type EventPublisher interface {
	Publish(routingKey string, message any) error
}

// Service — бизнес-логика подписок.
type Service struct {
	log    *slog.Logger
	repo   Repository
	cache  Cache
	events EventPublisher
	now    func() time.Time
}

// New создает новый Service.
func New(log *slog.Logger, repo Repository, c Cache, events EventPublisher) *Service {
	return &Service{log: log, repo: repo, cache: c, events: events, now: time.Now}
}

// Status — подписки аккаунта вместе с производными значениями.
type Status struct {
	Current       *models.Subscription
	History       []*models.Subscription
	ComputedState models.SubState // Пересчитано из подписок
	CachedState   models.SubState // Денормализованное accounts.sub_state
}

// Status возвращает подписки аккаунта. Пересчитанное и кешированное
// состояния отдаются раздельно: их расхождение — признак дрейфа кеша.
func (s *Service) Status(ctx context.Context, account *models.Account) (*Status, error) {
	const op = "subscription.Status"

	subs, err := s.repo.ListSubscriptionsByAccount(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Status{
		Current:       models.CurrentSubscription(subs),
		History:       subs,
		ComputedState: models.ComputeSubState(subs, s.today()),
		CachedState:   account.SubState,
	}, nil
}

// Offers возвращает видимые активные предложения. Каталог статический,
// поэтому читается через кеш с коротким TTL.
func (s *Service) Offers(ctx context.Context) ([]*models.Offer, error) {
	const op = "subscription.Offers"

	var cached []*models.Offer
	found, err := s.cache.Get(ctx, cache.KeyOffers, &cached)
	if err != nil {
		s.log.Warn("offers cache read failed", sl.Err(err))
	}
	if found {
		return cached, nil
	}

	offers, err := s.repo.ListOffers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.cache.Set(ctx, cache.KeyOffers, offers, time.Hour); err != nil {
		s.log.Warn("offers cache write failed", sl.Err(err))
	}
	return offers, nil
}

// Subscribe оформляет подписку аккаунта на предложение. Новая подписка
// начинается со дня продления текущей (день отключения, если та ещё
// действует, иначе сегодня). Платёж записывается вручную; griID — GRI,
// внёсший деньги, или 0 для самообслуживания.
func (s *Service) Subscribe(ctx context.Context, account *models.Account, offerSlug string, griID int) (int, error) {
	const op = "subscription.Subscribe"

	offer, err := s.repo.FindOffer(ctx, offerSlug)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if offer == nil || !offer.Active || offer.Slug == models.FirstOfferSlug {
		return 0, ErrUnknownOffer
	}

	subs, err := s.repo.ListSubscriptionsByAccount(ctx, account.ID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	today := s.today()
	start := today
	if current := models.CurrentSubscription(subs); current != nil {
		start = current.RenewDay(today)
	}

	now := s.now()
	payment := models.Payment{
		AccountID:   account.ID,
		Amount:      offer.Price,
		Created:     now,
		Payed:       &now,
		Status:      models.PaymentStatusManual,
		Correlation: uuid.New().String(),
	}
	if griID != 0 {
		payment.GriID = &griID
	}
	paymentID, err := s.repo.CreatePayment(ctx, payment)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	sub := models.Subscription{
		AccountID: account.ID,
		OfferSlug: offer.Slug,
		PaymentID: &paymentID,
		Start:     start,
		End:       offer.End(start),
	}
	subID, err := s.repo.CreateSubscription(ctx, sub)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	sub.ID = subID

	// Пересчёт кеша состояния из нового списка подписок.
	oldState := account.SubState
	newState := models.ComputeSubState(append(subs, &sub), today)
	if err := s.repo.UpdateAccountSubState(ctx, account.ID, newState); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	account.SubState = newState

	s.log.Info("subscription created",
		slog.Int("subscription_id", subID),
		slog.Int("account_id", account.ID),
		slog.String("offer", offer.Slug),
		slog.Time("start", sub.Start),
		slog.Time("end", sub.End))

	if oldState != newState {
		s.publishNotice(account, oldState, newState, sub.CutDay())
	}
	return subID, nil
}

func (s *Service) today() time.Time {
	now := s.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

func (s *Service) publishNotice(account *models.Account, oldState, newState models.SubState, cutDay time.Time) {
	notice := models.StateChangeNotice{
		Email:    account.Email,
		Username: account.Username,
		FullName: account.FullName(),
		Locale:   account.Locale,
		OldState: oldState,
		NewState: newState,
		CutDay:   cutDay.Format("2006-01-02"),
	}
	if err := s.events.Publish(rabbitmq.RoutingKeyNotification, notice); err != nil {
		s.log.Error("failed to publish state change notice", sl.Err(err))
	}
}
