package allocation

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

type RepoMock struct{ mock.Mock }

func (m *RepoMock) FindCurrentBan(ctx context.Context, accountID int, now time.Time) (*models.Ban, error) {
	args := m.Called(ctx, accountID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Ban), args.Error(1)
}
func (m *RepoMock) MintAllocation(ctx context.Context, deviceID, roomNum int) (*models.Allocation, error) {
	args := m.Called(ctx, deviceID, roomNum)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Allocation), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestBanIP(t *testing.T) {
	tests := []struct {
		name  string
		banID int
		want  string
	}{
		{name: "первый бан", banID: 1, want: "10.0.8.1"},
		{name: "граница третьего октета", banID: 255, want: "10.0.8.255"},
		{name: "переход в следующий октет", banID: 256, want: "10.0.9.0"},
		{name: "большой ID", banID: 1000, want: "10.0.11.232"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BanIP(tt.banID))
		})
	}
}

func TestAllocate(t *testing.T) {
	device := &models.Device{ID: 11, AccountID: 7, MAC: "aa:bb:cc:dd:ee:ff"}
	now := time.Date(2025, 9, 10, 12, 0, 0, 0, time.UTC)

	t.Run("без бана выдаётся адрес комнаты", func(t *testing.T) {
		repo := new(RepoMock)
		repo.On("FindCurrentBan", mock.Anything, device.AccountID, now).Return(nil, nil)
		repo.On("MintAllocation", mock.Anything, device.ID, 316).
			Return(&models.Allocation{ID: 1, DeviceID: device.ID, RoomNum: 316, IP: "10.0.3.16"}, nil)

		s := New(newNoopLogger(), repo)
		s.now = func() time.Time { return now }

		ip, err := s.Allocate(context.Background(), device, 316)
		require.NoError(t, err)
		assert.Equal(t, "10.0.3.16", ip)
	})

	t.Run("стабильность: повторный вызов даёт тот же адрес", func(t *testing.T) {
		repo := new(RepoMock)
		repo.On("FindCurrentBan", mock.Anything, device.AccountID, now).Return(nil, nil)
		repo.On("MintAllocation", mock.Anything, device.ID, 316).
			Return(&models.Allocation{ID: 1, DeviceID: device.ID, RoomNum: 316, IP: "10.0.3.16"}, nil)

		s := New(newNoopLogger(), repo)
		s.now = func() time.Time { return now }

		first, err := s.Allocate(context.Background(), device, 316)
		require.NoError(t, err)
		second, err := s.Allocate(context.Background(), device, 316)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	// Сценарий: владелец забанен — адрес из диапазона бана, выдача
	// комнаты не трогается; после снятия бана возвращается прежний адрес.
	t.Run("бан переключает адрес и обратно", func(t *testing.T) {
		ban := &models.Ban{ID: 300, AccountID: device.AccountID, Start: now.Add(-time.Hour)}

		banned := new(RepoMock)
		banned.On("FindCurrentBan", mock.Anything, device.AccountID, now).Return(ban, nil)

		s := New(newNoopLogger(), banned)
		s.now = func() time.Time { return now }

		ip, err := s.Allocate(context.Background(), device, 316)
		require.NoError(t, err)
		assert.Equal(t, "10.0.9.44", ip)
		banned.AssertNotCalled(t, "MintAllocation", mock.Anything, mock.Anything, mock.Anything)

		unbanned := new(RepoMock)
		unbanned.On("FindCurrentBan", mock.Anything, device.AccountID, now).Return(nil, nil)
		unbanned.On("MintAllocation", mock.Anything, device.ID, 316).
			Return(&models.Allocation{ID: 1, DeviceID: device.ID, RoomNum: 316, IP: "10.0.3.16"}, nil)

		s = New(newNoopLogger(), unbanned)
		s.now = func() time.Time { return now }

		ip, err = s.Allocate(context.Background(), device, 316)
		require.NoError(t, err)
		assert.Equal(t, "10.0.3.16", ip)
	})
}
