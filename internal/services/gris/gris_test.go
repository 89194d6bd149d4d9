package gris

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
	"github.com/GRI-ESPCI/intrarez/internal/storage/repository"
)

type RepoMock struct {
	mock.Mock
}

func (m *RepoMock) FindAccount(ctx context.Context, id int) (*models.Account, error) {
	args := m.Called(ctx, id)
	account, _ := args.Get(0).(*models.Account)
	return account, args.Error(1)
}

func (m *RepoMock) ListAccounts(ctx context.Context, limit, offset int) ([]*models.Account, error) {
	args := m.Called(ctx, limit, offset)
	accounts, _ := args.Get(0).([]*models.Account)
	return accounts, args.Error(1)
}

func (m *RepoMock) FindCurrentBan(ctx context.Context, accountID int, now time.Time) (*models.Ban, error) {
	args := m.Called(ctx, accountID, now)
	ban, _ := args.Get(0).(*models.Ban)
	return ban, args.Error(1)
}

func (m *RepoMock) CreateBan(ctx context.Context, ban models.Ban) (int, error) {
	args := m.Called(ctx, ban)
	return args.Int(0), args.Error(1)
}

func (m *RepoMock) CloseBan(ctx context.Context, id int, end time.Time) (int, error) {
	args := m.Called(ctx, id, end)
	return args.Int(0), args.Error(1)
}

type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(routingKey string, message any) error {
	args := m.Called(routingKey, message)
	return args.Error(0)
}

var testNow = time.Date(2025, 9, 10, 15, 0, 0, 0, time.UTC)

func newService(repo *RepoMock, events *PublisherMock) *Service {
	s := New(slog.New(slog.NewTextHandler(io.Discard, nil)), repo, events)
	s.now = func() time.Time { return testNow }
	return s
}

func resident() *models.Account {
	return &models.Account{ID: 7, Username: "a.martin"}
}

func TestBan(t *testing.T) {
	t.Run("бессрочный бан", func(t *testing.T) {
		repo := &RepoMock{}
		events := &PublisherMock{}

		repo.On("FindAccount", mock.Anything, 7).Return(resident(), nil)
		repo.On("CreateBan", mock.Anything, mock.MatchedBy(func(b models.Ban) bool {
			return b.AccountID == 7 && b.Start.Equal(testNow) && b.End == nil &&
				b.Reason == "abuse"
		})).Return(300, nil)
		events.On("Publish", "dhcp", mock.Anything).Return(nil)

		id, err := newService(repo, events).Ban(context.Background(), 1,
			models.BanRequest{AccountID: 7, Reason: "abuse", Message: "trop de torrents"})

		require.NoError(t, err)
		assert.Equal(t, 300, id)
		repo.AssertExpectations(t)
		events.AssertExpectations(t)
	})

	t.Run("бан с датой окончания", func(t *testing.T) {
		repo := &RepoMock{}
		events := &PublisherMock{}

		repo.On("FindAccount", mock.Anything, 7).Return(resident(), nil)
		repo.On("CreateBan", mock.Anything, mock.MatchedBy(func(b models.Ban) bool {
			return b.End != nil &&
				b.End.Equal(time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC))
		})).Return(301, nil)
		events.On("Publish", "dhcp", mock.Anything).Return(nil)

		_, err := newService(repo, events).Ban(context.Background(), 1,
			models.BanRequest{AccountID: 7, End: "2025-10-01", Reason: "abuse"})

		require.NoError(t, err)
	})

	t.Run("повторный бан", func(t *testing.T) {
		repo := &RepoMock{}
		events := &PublisherMock{}

		repo.On("FindAccount", mock.Anything, 7).Return(resident(), nil)
		repo.On("CreateBan", mock.Anything, mock.Anything).
			Return(0, repository.ErrAlreadyBanned)

		_, err := newService(repo, events).Ban(context.Background(), 1,
			models.BanRequest{AccountID: 7, Reason: "abuse"})

		assert.ErrorIs(t, err, repository.ErrAlreadyBanned)
		events.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	})

	t.Run("несуществующий аккаунт", func(t *testing.T) {
		repo := &RepoMock{}
		repo.On("FindAccount", mock.Anything, 404).Return((*models.Account)(nil), nil)

		_, err := newService(repo, &PublisherMock{}).Ban(context.Background(), 1,
			models.BanRequest{AccountID: 404, Reason: "abuse"})

		assert.ErrorIs(t, err, ErrNoSuchAccount)
	})
}

func TestUnban(t *testing.T) {
	t.Run("снятие текущего бана", func(t *testing.T) {
		repo := &RepoMock{}
		events := &PublisherMock{}
		ban := &models.Ban{ID: 300, AccountID: 7, Start: testNow.Add(-24 * time.Hour)}

		repo.On("FindCurrentBan", mock.Anything, 7, testNow).Return(ban, nil)
		repo.On("CloseBan", mock.Anything, 300, testNow).Return(300, nil)
		events.On("Publish", "dhcp", mock.Anything).Return(nil)

		err := newService(repo, events).Unban(context.Background(), 1,
			models.UnbanRequest{AccountID: 7})

		require.NoError(t, err)
		repo.AssertExpectations(t)
		events.AssertExpectations(t)
	})

	t.Run("бана нет", func(t *testing.T) {
		repo := &RepoMock{}
		repo.On("FindCurrentBan", mock.Anything, 7, testNow).
			Return((*models.Ban)(nil), nil)

		err := newService(repo, &PublisherMock{}).Unban(context.Background(), 1,
			models.UnbanRequest{AccountID: 7})

		assert.ErrorIs(t, err, ErrNotBanned)
	})
}

func TestAccounts(t *testing.T) {
	t.Run("лимит по умолчанию", func(t *testing.T) {
		repo := &RepoMock{}
		accounts := []*models.Account{resident()}
		repo.On("ListAccounts", mock.Anything, maxPageSize, 0).Return(accounts, nil)

		got, err := newService(repo, &PublisherMock{}).Accounts(context.Background(), 0, -5)

		require.NoError(t, err)
		assert.Equal(t, accounts, got)
	})

	t.Run("явная страница", func(t *testing.T) {
		repo := &RepoMock{}
		repo.On("ListAccounts", mock.Anything, 50, 100).
			Return([]*models.Account{}, nil)

		_, err := newService(repo, &PublisherMock{}).Accounts(context.Background(), 50, 100)

		require.NoError(t, err)
		repo.AssertExpectations(t)
	})
}
