package entitlement

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
	"github.com/GRI-ESPCI/intrarez/internal/netid"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) FindAccount(ctx context.Context, id int) (*models.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}
func (m *RepoMock) FindCurrentRentalByAccount(ctx context.Context, accountID int, today time.Time) (*models.Rental, error) {
	args := m.Called(ctx, accountID, today)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Rental), args.Error(1)
}
func (m *RepoMock) FindDeviceByMAC(ctx context.Context, mac string) (*models.Device, error) {
	args := m.Called(ctx, mac)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Device), args.Error(1)
}
func (m *RepoMock) CountDevicesByAccount(ctx context.Context, accountID int) (int, error) {
	args := m.Called(ctx, accountID)
	return args.Int(0), args.Error(1)
}
func (m *RepoMock) FirstDeviceRegistered(ctx context.Context, accountID int) (*time.Time, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*time.Time), args.Error(1)
}
func (m *RepoMock) TouchDeviceLastSeen(ctx context.Context, id int, when time.Time) error {
	return m.Called(ctx, id, when).Error(0)
}
func (m *RepoMock) ListSubscriptionsByAccount(ctx context.Context, accountID int) ([]*models.Subscription, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Subscription), args.Error(1)
}
func (m *RepoMock) FindOffer(ctx context.Context, slug string) (*models.Offer, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Offer), args.Error(1)
}
func (m *RepoMock) CreateSubscription(ctx context.Context, sub models.Subscription) (int, error) {
	args := m.Called(ctx, sub)
	return args.Int(0), args.Error(1)
}
func (m *RepoMock) UpdateAccountSubState(ctx context.Context, id int, state models.SubState) error {
	return m.Called(ctx, id, state).Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

var (
	testNow   = time.Date(2025, 9, 10, 15, 0, 0, 0, time.UTC)
	testToday = time.Date(2025, 9, 10, 0, 0, 0, 0, time.UTC)
)

// newService собирает вычислитель с фиксированными часами и снимком ARP,
// где 10.0.3.16 — внутренний адрес с известным MAC.
func newService(repo *RepoMock, maintenance bool) *Service {
	resolver := netid.NewResolver(netid.Static{
		{IP: "10.0.3.16", MAC: "aa:bb:cc:dd:ee:ff"},
	})
	s := New(newNoopLogger(), repo, resolver, maintenance, "", "")
	s.now = func() time.Time { return testNow }
	return s
}

func resident() *models.Account {
	return &models.Account{ID: 7, Username: "resident", SubState: models.SubStateSubscribed}
}

func gri() *models.Account {
	return &models.Account{ID: 1, Username: "gri", IsGri: true}
}

func currentRental(accountID int) *models.Rental {
	return &models.Rental{ID: 3, AccountID: accountID, RoomNum: 316,
		Start: testToday.AddDate(0, -6, 0)}
}

func subscribed(accountID int) []*models.Subscription {
	return []*models.Subscription{{
		ID: 9, AccountID: accountID, OfferSlug: "1year",
		Start: testToday.AddDate(0, -2, 0), End: testToday.AddDate(0, 10, 0),
	}}
}

func TestEvaluate_Anonymous(t *testing.T) {
	tests := []struct {
		name         string
		remoteIP     string
		wantInternal bool
		wantEndpoint string
	}{
		{
			name:         "аноним из внутренней сети идёт на вход",
			remoteIP:     "10.0.3.16",
			wantInternal: true,
			wantEndpoint: EndpointAuthNeeded,
		},
		{
			name:         "аноним из Интернета идёт на внешнюю заглавную",
			remoteIP:     "203.0.113.7",
			wantInternal: false,
			wantEndpoint: EndpointExternalHome,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			s := newService(repo, false)

			ec, err := s.Evaluate(context.Background(), Input{RemoteIP: tt.remoteIP})
			require.NoError(t, err)

			assert.False(t, ec.AllGood)
			assert.False(t, ec.LoggedIn)
			assert.Equal(t, tt.wantInternal, ec.Internal)
			require.NotNil(t, ec.Redemption)
			assert.Equal(t, tt.wantEndpoint, ec.Redemption.Endpoint)
		})
	}
}

// Сценарий: свежий аккаунт без комнаты, внутренняя сеть, MAC ещё не
// зарегистрирован. Отсутствие комнаты важнее отсутствия устройства.
func TestEvaluate_RoomPrecedesDevice(t *testing.T) {
	repo := new(RepoMock)
	account := resident()
	repo.On("FindCurrentRentalByAccount", mock.Anything, account.ID, testNow).Return(nil, nil)
	repo.On("FindDeviceByMAC", mock.Anything, "aa:bb:cc:dd:ee:ff").Return(nil, nil)

	s := newService(repo, false)
	ec, err := s.Evaluate(context.Background(), Input{Principal: account, RemoteIP: "10.0.3.16"})
	require.NoError(t, err)

	assert.False(t, ec.AllGood)
	assert.True(t, ec.Internal)
	assert.False(t, ec.HasRoom)
	require.NotNil(t, ec.Redemption)
	assert.Equal(t, EndpointRoomRegister, ec.Redemption.Endpoint)
	assert.Equal(t, "1", ec.Redemption.Params["hello"])
	repo.AssertExpectations(t)
}

// Сценарий: комната есть, но устройство с этим MAC принадлежит другому.
func TestEvaluate_ForeignDevice(t *testing.T) {
	repo := new(RepoMock)
	account := resident()
	repo.On("FindCurrentRentalByAccount", mock.Anything, account.ID, testNow).
		Return(currentRental(account.ID), nil)
	repo.On("FindDeviceByMAC", mock.Anything, "aa:bb:cc:dd:ee:ff").
		Return(&models.Device{ID: 11, AccountID: 99, MAC: "aa:bb:cc:dd:ee:ff"}, nil)

	s := newService(repo, false)
	ec, err := s.Evaluate(context.Background(), Input{Principal: account, RemoteIP: "10.0.3.16"})
	require.NoError(t, err)

	assert.False(t, ec.AllGood)
	assert.True(t, ec.HasRoom)
	assert.False(t, ec.OwnDevice)
	require.NotNil(t, ec.Redemption)
	assert.Equal(t, EndpointDeviceTransfer, ec.Redemption.Endpoint)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", ec.Redemption.Params["mac"])
	// Чужое устройство не отмечается как появившееся.
	repo.AssertNotCalled(t, "TouchDeviceLastSeen", mock.Anything, mock.Anything, mock.Anything)
}

// Сценарий: комната, своё устройство, действующая подписка, внешняя сеть.
func TestEvaluate_AllGoodFromOutside(t *testing.T) {
	repo := new(RepoMock)
	account := resident()
	repo.On("FindCurrentRentalByAccount", mock.Anything, account.ID, testNow).
		Return(currentRental(account.ID), nil)
	repo.On("CountDevicesByAccount", mock.Anything, account.ID).Return(2, nil)
	repo.On("ListSubscriptionsByAccount", mock.Anything, account.ID).
		Return(subscribed(account.ID), nil)

	s := newService(repo, false)
	ec, err := s.Evaluate(context.Background(), Input{Principal: account, RemoteIP: "203.0.113.7"})
	require.NoError(t, err)

	assert.True(t, ec.AllGood)
	assert.False(t, ec.Internal)
	assert.Nil(t, ec.Redemption)
	repo.AssertNotCalled(t, "FindDeviceByMAC", mock.Anything, mock.Anything)
}

func TestEvaluate_AllGoodInternalTouchesDevice(t *testing.T) {
	repo := new(RepoMock)
	account := resident()
	device := &models.Device{ID: 11, AccountID: account.ID, MAC: "aa:bb:cc:dd:ee:ff"}
	repo.On("FindCurrentRentalByAccount", mock.Anything, account.ID, testNow).
		Return(currentRental(account.ID), nil)
	repo.On("FindDeviceByMAC", mock.Anything, "aa:bb:cc:dd:ee:ff").Return(device, nil)
	repo.On("TouchDeviceLastSeen", mock.Anything, device.ID, testNow).Return(nil)
	repo.On("CountDevicesByAccount", mock.Anything, account.ID).Return(1, nil)
	repo.On("ListSubscriptionsByAccount", mock.Anything, account.ID).
		Return(subscribed(account.ID), nil)

	s := newService(repo, false)
	ec, err := s.Evaluate(context.Background(), Input{Principal: account, RemoteIP: "10.0.3.16"})
	require.NoError(t, err)

	assert.True(t, ec.AllGood)
	assert.True(t, ec.OwnDevice)
	repo.AssertExpectations(t)
}

func TestEvaluate_DeviceRegisterTarget(t *testing.T) {
	t.Run("внутренняя сеть, незнакомый MAC", func(t *testing.T) {
		repo := new(RepoMock)
		account := resident()
		repo.On("FindCurrentRentalByAccount", mock.Anything, account.ID, testNow).
			Return(currentRental(account.ID), nil)
		repo.On("FindDeviceByMAC", mock.Anything, "aa:bb:cc:dd:ee:ff").Return(nil, nil)

		s := newService(repo, false)
		ec, err := s.Evaluate(context.Background(), Input{Principal: account, RemoteIP: "10.0.3.16"})
		require.NoError(t, err)

		assert.False(t, ec.AllGood)
		require.NotNil(t, ec.Redemption)
		assert.Equal(t, EndpointDeviceRegister, ec.Redemption.Endpoint)
		assert.Equal(t, "aa:bb:cc:dd:ee:ff", ec.Redemption.Params["mac"])
	})

	t.Run("внешняя сеть, ни одного устройства на счету", func(t *testing.T) {
		repo := new(RepoMock)
		account := resident()
		repo.On("FindCurrentRentalByAccount", mock.Anything, account.ID, testNow).
			Return(currentRental(account.ID), nil)
		repo.On("CountDevicesByAccount", mock.Anything, account.ID).Return(0, nil)

		s := newService(repo, false)
		ec, err := s.Evaluate(context.Background(), Input{Principal: account, RemoteIP: "203.0.113.7"})
		require.NoError(t, err)

		assert.False(t, ec.AllGood)
		require.NotNil(t, ec.Redemption)
		assert.Equal(t, EndpointDeviceRegister, ec.Redemption.Endpoint)
		assert.Empty(t, ec.Redemption.Params)
	})
}

func TestEvaluate_Doas(t *testing.T) {
	t.Run("GRI действует от имени резидента", func(t *testing.T) {
		repo := new(RepoMock)
		staff := gri()
		target := resident()
		repo.On("FindAccount", mock.Anything, target.ID).Return(target, nil)
		repo.On("FindCurrentRentalByAccount", mock.Anything, target.ID, testNow).
			Return(nil, nil)

		s := newService(repo, false)
		ec, err := s.Evaluate(context.Background(),
			Input{Principal: staff, DoasID: "7", RemoteIP: "203.0.113.7"})
		require.NoError(t, err)

		assert.True(t, ec.Doas)
		assert.Equal(t, target.ID, ec.Account.ID)
		assert.False(t, ec.IsGri) // флаг берётся у подменённого аккаунта
		require.NotNil(t, ec.Redemption)
		assert.Equal(t, EndpointRoomRegister, ec.Redemption.Endpoint)
		// При doas приветственный маркер не передаётся.
		assert.Empty(t, ec.Redemption.Params["hello"])
	})

	// Сценарий: не-GRI подставляет doas — параметр срезается редиректом
	// на себя, без ошибки сервера.
	t.Run("не-GRI с параметром doas", func(t *testing.T) {
		repo := new(RepoMock)
		account := resident()
		target := gri()
		repo.On("FindAccount", mock.Anything, target.ID).Return(target, nil)

		s := newService(repo, false)
		ec, err := s.Evaluate(context.Background(),
			Input{Principal: account, DoasID: "1", RemoteIP: "10.0.3.16"})
		require.NoError(t, err)

		assert.True(t, ec.StripDoas)
		assert.False(t, ec.Doas)
		repo.AssertNotCalled(t, "FindCurrentRentalByAccount",
			mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("несуществующий doas игнорируется", func(t *testing.T) {
		repo := new(RepoMock)
		staff := gri()
		repo.On("FindAccount", mock.Anything, 999).Return(nil, nil)
		repo.On("FindCurrentRentalByAccount", mock.Anything, staff.ID, testNow).
			Return(currentRental(staff.ID), nil)
		repo.On("CountDevicesByAccount", mock.Anything, staff.ID).Return(1, nil)
		repo.On("ListSubscriptionsByAccount", mock.Anything, staff.ID).
			Return(subscribed(staff.ID), nil)

		s := newService(repo, false)
		ec, err := s.Evaluate(context.Background(),
			Input{Principal: staff, DoasID: "999", RemoteIP: "203.0.113.7"})
		require.NoError(t, err)

		assert.False(t, ec.Doas)
		assert.False(t, ec.StripDoas)
		assert.True(t, ec.AllGood)
	})
}

func TestEvaluate_Maintenance(t *testing.T) {
	t.Run("резидент получает отказ в обслуживании", func(t *testing.T) {
		repo := new(RepoMock)
		s := newService(repo, true)
		ec, err := s.Evaluate(context.Background(),
			Input{Principal: resident(), RemoteIP: "10.0.3.16"})
		require.NoError(t, err)

		assert.True(t, ec.ServiceClosed)
	})

	t.Run("GRI проходит с предупреждением", func(t *testing.T) {
		repo := new(RepoMock)
		staff := gri()
		repo.On("FindCurrentRentalByAccount", mock.Anything, staff.ID, testNow).
			Return(currentRental(staff.ID), nil)
		repo.On("CountDevicesByAccount", mock.Anything, staff.ID).Return(1, nil)
		repo.On("ListSubscriptionsByAccount", mock.Anything, staff.ID).
			Return(subscribed(staff.ID), nil)

		s := newService(repo, true)
		ec, err := s.Evaluate(context.Background(),
			Input{Principal: staff, RemoteIP: "203.0.113.7"})
		require.NoError(t, err)

		assert.False(t, ec.ServiceClosed)
		assert.True(t, ec.MaintenanceWarning)
		assert.True(t, ec.AllGood)
	})
}

func TestEvaluate_MissingClientIP(t *testing.T) {
	t.Run("резидент отправляется на страницу ошибки", func(t *testing.T) {
		repo := new(RepoMock)
		s := newService(repo, false)
		ec, err := s.Evaluate(context.Background(),
			Input{Principal: resident(), RemoteIP: ""})
		require.NoError(t, err)

		assert.False(t, ec.AllGood)
		require.NotNil(t, ec.Redemption)
		assert.Equal(t, EndpointDeviceError, ec.Redemption.Endpoint)
		assert.Equal(t, "ip", ec.Redemption.Params["reason"])
	})

	t.Run("GRI видит диагностику и продолжает", func(t *testing.T) {
		repo := new(RepoMock)
		staff := gri()
		repo.On("FindCurrentRentalByAccount", mock.Anything, staff.ID, testNow).
			Return(currentRental(staff.ID), nil)
		repo.On("CountDevicesByAccount", mock.Anything, staff.ID).Return(1, nil)
		repo.On("ListSubscriptionsByAccount", mock.Anything, staff.ID).
			Return(subscribed(staff.ID), nil)

		s := newService(repo, false)
		ec, err := s.Evaluate(context.Background(), Input{Principal: staff, RemoteIP: ""})
		require.NoError(t, err)

		assert.True(t, ec.IPFault)
		assert.True(t, ec.AllGood)
		assert.False(t, ec.Internal)
	})
}

func TestEvaluate_FirstSubscriptionBootstrap(t *testing.T) {
	account := resident()
	firstSeen := testToday.AddDate(0, 0, -10)
	welcome := &models.Offer{Slug: models.FirstOfferSlug, Months: 1}

	expectedSub := models.Subscription{
		AccountID: account.ID,
		OfferSlug: models.FirstOfferSlug,
		Start:     firstSeen,
		End:       testToday,
	}

	t.Run("подписок нет — оформляется приветственная", func(t *testing.T) {
		repo := new(RepoMock)
		repo.On("FindCurrentRentalByAccount", mock.Anything, account.ID, testNow).
			Return(currentRental(account.ID), nil)
		repo.On("CountDevicesByAccount", mock.Anything, account.ID).Return(1, nil)
		repo.On("ListSubscriptionsByAccount", mock.Anything, account.ID).
			Return([]*models.Subscription{}, nil)
		repo.On("FirstDeviceRegistered", mock.Anything, account.ID).Return(&firstSeen, nil)
		repo.On("FindOffer", mock.Anything, models.FirstOfferSlug).Return(welcome, nil)
		repo.On("CreateSubscription", mock.Anything, expectedSub).Return(42, nil)
		repo.On("UpdateAccountSubState", mock.Anything, account.ID, models.SubStateTrial).Return(nil)

		s := newService(repo, false)
		ec, err := s.Evaluate(context.Background(),
			Input{Principal: account, RemoteIP: "203.0.113.7"})
		require.NoError(t, err)

		assert.True(t, ec.AllGood)
		assert.Equal(t, models.SubStateTrial, ec.Account.SubState)
		repo.AssertExpectations(t)
	})

	t.Run("повторное вычисление подписку не дублирует", func(t *testing.T) {
		repo := new(RepoMock)
		repo.On("FindCurrentRentalByAccount", mock.Anything, account.ID, testNow).
			Return(currentRental(account.ID), nil)
		repo.On("CountDevicesByAccount", mock.Anything, account.ID).Return(1, nil)
		repo.On("ListSubscriptionsByAccount", mock.Anything, account.ID).
			Return([]*models.Subscription{{ID: 42, AccountID: account.ID,
				OfferSlug: models.FirstOfferSlug, Start: firstSeen, End: testToday}}, nil)

		s := newService(repo, false)
		ec, err := s.Evaluate(context.Background(),
			Input{Principal: account, RemoteIP: "203.0.113.7"})
		require.NoError(t, err)

		assert.True(t, ec.AllGood)
		repo.AssertNotCalled(t, "CreateSubscription", mock.Anything, mock.Anything)
	})

	t.Run("аккаунт без устройств — ошибка состояния", func(t *testing.T) {
		repo := new(RepoMock)
		repo.On("FindCurrentRentalByAccount", mock.Anything, account.ID, testNow).
			Return(currentRental(account.ID), nil)
		repo.On("CountDevicesByAccount", mock.Anything, account.ID).Return(1, nil)
		repo.On("ListSubscriptionsByAccount", mock.Anything, account.ID).
			Return([]*models.Subscription{}, nil)
		repo.On("FirstDeviceRegistered", mock.Anything, account.ID).Return(nil, nil)

		s := newService(repo, false)
		_, err := s.Evaluate(context.Background(),
			Input{Principal: account, RemoteIP: "203.0.113.7"})
		require.Error(t, err)
	})
}

// Детеминизм: одно и то же состояние хранилища и часов даёт один и тот же
// результат при повторных вычислениях.
func TestEvaluate_Deterministic(t *testing.T) {
	account := resident()
	repo := new(RepoMock)
	repo.On("FindCurrentRentalByAccount", mock.Anything, account.ID, testNow).Return(nil, nil)
	repo.On("FindDeviceByMAC", mock.Anything, "aa:bb:cc:dd:ee:ff").Return(nil, nil)

	s := newService(repo, false)
	in := Input{Principal: account, RemoteIP: "10.0.3.16"}

	first, err := s.Evaluate(context.Background(), in)
	require.NoError(t, err)
	second, err := s.Evaluate(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, first.AllGood, second.AllGood)
	assert.Equal(t, first.Redemption, second.Redemption)
}

func TestEvaluate_ForcedIdentity(t *testing.T) {
	repo := new(RepoMock)
	account := resident()
	device := &models.Device{ID: 5, AccountID: account.ID, MAC: "de:ad:be:ef:00:01"}
	repo.On("FindCurrentRentalByAccount", mock.Anything, account.ID, testNow).
		Return(currentRental(account.ID), nil)
	repo.On("FindDeviceByMAC", mock.Anything, "de:ad:be:ef:00:01").Return(device, nil)
	repo.On("TouchDeviceLastSeen", mock.Anything, device.ID, testNow).Return(nil)
	repo.On("CountDevicesByAccount", mock.Anything, account.ID).Return(1, nil)
	repo.On("ListSubscriptionsByAccount", mock.Anything, account.ID).
		Return(subscribed(account.ID), nil)

	resolver := netid.NewResolver(netid.Static{})
	s := New(newNoopLogger(), repo, resolver, false, "10.0.9.9", "de:ad:be:ef:00:01")
	s.now = func() time.Time { return testNow }

	ec, err := s.Evaluate(context.Background(), Input{Principal: account, RemoteIP: ""})
	require.NoError(t, err)

	assert.Equal(t, "10.0.9.9", ec.RemoteIP)
	assert.Equal(t, "de:ad:be:ef:00:01", ec.MAC)
	assert.True(t, ec.Internal)
	assert.True(t, ec.AllGood)
}
