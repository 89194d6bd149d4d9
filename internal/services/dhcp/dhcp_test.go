package dhcp

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/GRI-ESPCI/intrarez/internal/models"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) ListRooms(ctx context.Context) ([]*models.Room, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Room), args.Error(1)
}
func (m *RepoMock) FindCurrentRentalByRoom(ctx context.Context, roomNum int, today time.Time) (*models.Rental, error) {
	args := m.Called(ctx, roomNum, today)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Rental), args.Error(1)
}
func (m *RepoMock) FindAccount(ctx context.Context, id int) (*models.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}
func (m *RepoMock) ListDevicesByAccount(ctx context.Context, accountID int) ([]*models.Device, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Device), args.Error(1)
}

type AllocatorMock struct{ mock.Mock }

func (m *AllocatorMock) Allocate(ctx context.Context, device *models.Device, roomNum int) (string, error) {
	args := m.Called(ctx, device, roomNum)
	return args.String(0), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestRules(t *testing.T) {
	now := time.Date(2025, 9, 10, 12, 0, 0, 0, time.UTC)

	occupied := &models.Room{Num: 316, Floor: 3, BaseIP: "3.16"}
	empty := &models.Room{Num: 317, Floor: 3, BaseIP: "3.17"}
	occupant := &models.Account{ID: 7, Username: "resident"}
	laptop := &models.Device{ID: 11, AccountID: 7, MAC: "aa:bb:cc:dd:ee:ff"}
	phone := &models.Device{ID: 12, AccountID: 7, MAC: "11:22:33:44:55:66"}

	repo := new(RepoMock)
	repo.On("ListRooms", mock.Anything).Return([]*models.Room{occupied, empty}, nil)
	repo.On("FindCurrentRentalByRoom", mock.Anything, 316, now).
		Return(&models.Rental{ID: 1, AccountID: 7, RoomNum: 316}, nil)
	repo.On("FindCurrentRentalByRoom", mock.Anything, 317, now).Return(nil, nil)
	repo.On("FindAccount", mock.Anything, 7).Return(occupant, nil)
	repo.On("ListDevicesByAccount", mock.Anything, 7).
		Return([]*models.Device{laptop, phone}, nil)

	allocator := new(AllocatorMock)
	allocator.On("Allocate", mock.Anything, laptop, 316).Return("10.0.3.16", nil)
	allocator.On("Allocate", mock.Anything, phone, 316).Return("10.1.3.16", nil)

	s := New(newNoopLogger(), repo, allocator)
	s.now = func() time.Time { return now }

	rules, err := s.Rules(context.Background())
	require.NoError(t, err)

	want := "host resident-316-0 {\n" +
		"\thardware ethernet aa:bb:cc:dd:ee:ff;\n" +
		"\tfixed-address 10.0.3.16;\n" +
		"}\n" +
		"host resident-316-1 {\n" +
		"\thardware ethernet 11:22:33:44:55:66;\n" +
		"\tfixed-address 10.1.3.16;\n" +
		"}\n"
	assert.Equal(t, want, rules)
}

func TestWriteFile(t *testing.T) {
	now := time.Date(2025, 9, 10, 12, 0, 0, 0, time.UTC)

	repo := new(RepoMock)
	repo.On("ListRooms", mock.Anything).Return([]*models.Room{}, nil)

	s := New(newNoopLogger(), repo, new(AllocatorMock))
	s.now = func() time.Time { return now }

	path := filepath.Join(t.TempDir(), "dhcp_hosts")
	require.NoError(t, s.WriteFile(context.Background(), path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, string(content))

	// Временных файлов не остаётся.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
