package substate

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/GRI-ESPCI/intrarez/internal/models"
)

type RepoMock struct {
	mock.Mock
}

func (m *RepoMock) ListAccounts(ctx context.Context, limit, offset int) ([]*models.Account, error) {
	args := m.Called(ctx, limit, offset)
	accounts, _ := args.Get(0).([]*models.Account)
	return accounts, args.Error(1)
}

func (m *RepoMock) ListSubscriptionsByAccount(ctx context.Context, accountID int) ([]*models.Subscription, error) {
	args := m.Called(ctx, accountID)
	subs, _ := args.Get(0).([]*models.Subscription)
	return subs, args.Error(1)
}

func (m *RepoMock) UpdateAccountSubState(ctx context.Context, id int, state models.SubState) error {
	args := m.Called(ctx, id, state)
	return args.Error(0)
}

type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(routingKey string, message any) error {
	args := m.Called(routingKey, message)
	return args.Error(0)
}

var testNow = time.Date(2025, 9, 10, 15, 0, 0, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newService(repo *RepoMock, events *PublisherMock) *Service {
	s := New(slog.New(slog.NewTextHandler(io.Discard, nil)), repo, events)
	s.now = func() time.Time { return testNow }
	return s
}

func TestRunOnce(t *testing.T) {
	t.Run("истёкшая подписка переводит аккаунт в outlaw", func(t *testing.T) {
		repo := &RepoMock{}
		events := &PublisherMock{}
		account := &models.Account{
			ID: 7, Username: "a.martin", Email: "a.martin@espci.fr",
			Locale: "fr", SubState: models.SubStateSubscribed,
		}
		// Отключение месяц после конца: 2025-08-01 — уже позади.
		expired := &models.Subscription{
			ID: 40, AccountID: 7, OfferSlug: "1-month",
			Start: day(2025, 6, 1), End: day(2025, 7, 1),
		}

		repo.On("ListAccounts", mock.Anything, pageSize, 0).
			Return([]*models.Account{account}, nil)
		repo.On("ListSubscriptionsByAccount", mock.Anything, 7).
			Return([]*models.Subscription{expired}, nil)
		repo.On("UpdateAccountSubState", mock.Anything, 7, models.SubStateOutlaw).Return(nil)
		events.On("Publish", "notification", mock.MatchedBy(func(msg any) bool {
			notice, ok := msg.(models.StateChangeNotice)
			return ok && notice.OldState == models.SubStateSubscribed &&
				notice.NewState == models.SubStateOutlaw
		})).Return(nil)

		stats, err := newService(repo, events).RunOnce(context.Background())

		require.NoError(t, err)
		assert.Equal(t, Stats{Scanned: 1, Changed: 1}, stats)
		repo.AssertExpectations(t)
		events.AssertExpectations(t)
	})

	t.Run("актуальное состояние не трогается", func(t *testing.T) {
		repo := &RepoMock{}
		events := &PublisherMock{}
		account := &models.Account{ID: 7, SubState: models.SubStateSubscribed}
		active := &models.Subscription{
			ID: 41, AccountID: 7, OfferSlug: "1-month",
			Start: day(2025, 9, 1), End: day(2025, 10, 1),
		}

		repo.On("ListAccounts", mock.Anything, pageSize, 0).
			Return([]*models.Account{account}, nil)
		repo.On("ListSubscriptionsByAccount", mock.Anything, 7).
			Return([]*models.Subscription{active}, nil)

		stats, err := newService(repo, events).RunOnce(context.Background())

		require.NoError(t, err)
		assert.Equal(t, Stats{Scanned: 1, Changed: 0}, stats)
		repo.AssertNotCalled(t, "UpdateAccountSubState",
			mock.Anything, mock.Anything, mock.Anything)
		events.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	})

	t.Run("ошибка на одном аккаунте не прерывает проход", func(t *testing.T) {
		repo := &RepoMock{}
		events := &PublisherMock{}
		broken := &models.Account{ID: 7, SubState: models.SubStateSubscribed}
		fine := &models.Account{ID: 8, SubState: models.SubStateTrial}
		trial := &models.Subscription{
			ID: 42, AccountID: 8, OfferSlug: models.FirstOfferSlug,
			Start: day(2025, 9, 1), End: day(2025, 9, 5),
		}

		repo.On("ListAccounts", mock.Anything, pageSize, 0).
			Return([]*models.Account{broken, fine}, nil)
		repo.On("ListSubscriptionsByAccount", mock.Anything, 7).
			Return([]*models.Subscription(nil), assert.AnError)
		repo.On("ListSubscriptionsByAccount", mock.Anything, 8).
			Return([]*models.Subscription{trial}, nil)

		stats, err := newService(repo, events).RunOnce(context.Background())

		require.NoError(t, err)
		// Пробный период ещё в льготе, состояние trial не меняется.
		assert.Equal(t, Stats{Scanned: 2, Changed: 0}, stats)
	})

	t.Run("обход постранично", func(t *testing.T) {
		repo := &RepoMock{}
		events := &PublisherMock{}

		full := make([]*models.Account, pageSize)
		for i := range full {
			full[i] = &models.Account{ID: i + 1, SubState: models.SubStateTrial}
		}
		repo.On("ListAccounts", mock.Anything, pageSize, 0).Return(full, nil)
		repo.On("ListAccounts", mock.Anything, pageSize, pageSize).
			Return([]*models.Account{}, nil)
		repo.On("ListSubscriptionsByAccount", mock.Anything, mock.Anything).
			Return([]*models.Subscription(nil), nil)

		stats, err := newService(repo, events).RunOnce(context.Background())

		require.NoError(t, err)
		assert.Equal(t, pageSize, stats.Scanned)
		repo.AssertExpectations(t)
	})
}
