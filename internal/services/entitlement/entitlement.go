// Package entitlement вычисляет право резидента пользоваться сетью.
//
// На каждый запрос строится неизменяемый Context: сетевая личность
// (внутренняя сеть, MAC), действующий аккаунт (с учётом doas), комната,
// устройство и итоговое решение AllGood. Если решение отрицательное,
// Context содержит единственную страницу исправления (Redemption),
// на которую роутер перенаправит пользователя.
package entitlement

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/GRI-ESPCI/intrarez/internal/lib/sl"
	"github.com/GRI-ESPCI/intrarez/internal/models"
)

// Страницы исправления. Первая же неудачная проверка определяет
// назначение; последующие проверки его не перезаписывают.
const (
	EndpointAuthNeeded     = "/api/v1/auth/needed"
	EndpointExternalHome   = "/api/v1/external"
	EndpointDeviceError    = "/api/v1/devices/error"
	EndpointRoomRegister   = "/api/v1/rooms/register"
	EndpointDeviceRegister = "/api/v1/devices/register"
	EndpointDeviceTransfer = "/api/v1/devices/transfer"
)

// Redemption — страница, которую пользователь должен посетить, чтобы
// исправить свою ситуацию, и её параметры запроса.
type Redemption struct {
	Endpoint string
	Params   map[string]string
}

// Context — результат вычисления права доступа для одного запроса.
// Все значения по умолчанию запрещающие.
type Context struct {
	RemoteIP string
	MAC      string
	Internal bool

	LoggedIn bool
	Account  *models.Account // Действующий аккаунт (подменённый при doas)
	IsGri    bool            // Является ли действующий аккаунт GRI
	Doas     bool            // Действует ли GRI от имени другого резидента

	HasRoom   bool
	Rental    *models.Rental
	Device    *models.Device
	OwnDevice bool

	AllGood    bool
	Redemption *Redemption

	// Решения, которые роутер исполняет до обычного перенаправления.
	StripDoas          bool // Неавторизованный doas: редирект на себя без параметра
	ServiceClosed      bool // Режим обслуживания: 503 для не-GRI
	MaintenanceWarning bool // GRI во время обслуживания видит предупреждение
	IPFault            bool // Нет заголовка с IP клиента: диагностика для GRI
}

// Repository определяет методы хранилища, нужные вычислителю.
type Repository interface {
	FindAccount(ctx context.Context, id int) (*models.Account, error)
	FindCurrentRentalByAccount(ctx context.Context, accountID int, today time.Time) (*models.Rental, error)
	FindDeviceByMAC(ctx context.Context, mac string) (*models.Device, error)
	CountDevicesByAccount(ctx context.Context, accountID int) (int, error)
	FirstDeviceRegistered(ctx context.Context, accountID int) (*time.Time, error)
	TouchDeviceLastSeen(ctx context.Context, id int, when time.Time) error
	ListSubscriptionsByAccount(ctx context.Context, accountID int) ([]*models.Subscription, error)
	FindOffer(ctx context.Context, slug string) (*models.Offer, error)
	CreateSubscription(ctx context.Context, sub models.Subscription) (int, error)
	UpdateAccountSubState(ctx context.Context, id int, state models.SubState) error
}

// MACResolver возвращает MAC-адрес по IP из ARP-таблицы
// или пустую строку, если адрес пришёл не из внутренней сети.
type MACResolver interface {
	MAC(ctx context.Context, remoteIP string) (string, error)
}

// Service — вычислитель права доступа.
type Service struct {
	log      *slog.Logger
	repo     Repository
	resolver MACResolver

	maintenance bool
	forceIP     string
	forceMAC    string

	now func() time.Time
}

// New создает новый Service.
func New(log *slog.Logger, repo Repository, resolver MACResolver, maintenance bool, forceIP, forceMAC string) *Service {
	return &Service{
		log:         log,
		repo:        repo,
		resolver:    resolver,
		maintenance: maintenance,
		forceIP:     forceIP,
		forceMAC:    forceMAC,
		now:         time.Now,
	}
}

// Input — сырые факты запроса, из которых строится Context.
type Input struct {
	Principal *models.Account // Аутентифицированный аккаунт, nil для анонима
	DoasID    string          // Значение параметра doas, "" если отсутствует
	RemoteIP  string          // IP клиента из доверенного заголовка, "" если нет
}

// Evaluate строит Context запроса. Порядок проверок строгий: принципал,
// doas, режим обслуживания, IP, MAC, комната, устройство, наличие хотя бы
// одного устройства, первая подписка. Первая неудачная проверка
// фиксирует страницу исправления; отсутствие комнаты имеет приоритет
// над отсутствием устройства.
func (s *Service) Evaluate(ctx context.Context, in Input) (*Context, error) {
	const op = "entitlement.Evaluate"
	now := s.now()

	ec := &Context{}
	allGood := true

	// Принципал.
	if in.Principal != nil {
		ec.LoggedIn = true
		ec.Account = in.Principal
		ec.IsGri = in.Principal.IsGri
	} else {
		allGood = false
		ec.Redemption = &Redemption{Endpoint: EndpointAuthNeeded}
	}

	// Doas: параметр действует только для GRI. У остальных он
	// срезается редиректом на тот же адрес без параметра.
	if target, err := s.resolveDoas(ctx, in.DoasID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	} else if target != nil {
		if ec.IsGri {
			ec.Account = target
			ec.IsGri = target.IsGri
			ec.Doas = true
		} else {
			ec.StripDoas = true
			return ec, nil
		}
	}

	// Режим обслуживания: GRI проходят с предупреждением.
	if s.maintenance {
		if ec.IsGri {
			ec.MaintenanceWarning = true
		} else {
			ec.ServiceClosed = true
			return ec, nil
		}
	}

	// IP клиента. Отсутствие заголовка — проблема настройки Nginx,
	// а не вина клиента.
	ec.RemoteIP = in.RemoteIP
	if s.forceIP != "" {
		ec.RemoteIP = s.forceIP
	}
	if ec.RemoteIP == "" {
		if ec.IsGri {
			ec.IPFault = true
		} else {
			ec.Redemption = &Redemption{
				Endpoint: EndpointDeviceError,
				Params:   map[string]string{"reason": "ip"},
			}
			return ec, nil
		}
	}

	// MAC: запись в ARP-таблице означает внутреннюю сеть.
	if s.forceMAC != "" {
		ec.MAC = s.forceMAC
	} else if ec.RemoteIP != "" {
		mac, err := s.resolver.MAC(ctx, ec.RemoteIP)
		if err != nil {
			// Снимок ARP недоступен: считаем запрос внешним.
			s.log.Error("failed to resolve MAC", slog.String("op", op),
				slog.String("remote_ip", ec.RemoteIP), sl.Err(err))
		}
		ec.MAC = mac
	}
	ec.Internal = ec.MAC != ""

	// Аноним из внешней сети попадает на внешнюю заглавную вместо
	// страницы входа; внутри сети остаётся страница входа.
	if !ec.Internal && !allGood {
		ec.Redemption = &Redemption{Endpoint: EndpointExternalHome}
	}

	// Дальнейшим проверкам нужен аккаунт.
	if !ec.LoggedIn {
		return ec, nil
	}

	// Комната.
	rental, err := s.repo.FindCurrentRentalByAccount(ctx, ec.Account.ID, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	ec.Rental = rental
	ec.HasRoom = rental != nil
	if !ec.HasRoom {
		allGood = false
		params := map[string]string{}
		if !ec.Doas {
			params["hello"] = "1"
		}
		ec.Redemption = &Redemption{Endpoint: EndpointRoomRegister, Params: params}
	}

	// Устройство текущего запроса.
	if ec.Internal {
		device, err := s.repo.FindDeviceByMAC(ctx, ec.MAC)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if device == nil {
			if allGood {
				allGood = false
				params := map[string]string{"mac": ec.MAC}
				if !ec.Doas {
					params["hello"] = "1"
				}
				ec.Redemption = &Redemption{Endpoint: EndpointDeviceRegister, Params: params}
			}
			ec.AllGood = false
			return ec, nil
		}
		ec.Device = device
		ec.OwnDevice = device.AccountID == ec.Account.ID
		if !ec.OwnDevice {
			if allGood {
				allGood = false
				params := map[string]string{"mac": ec.MAC}
				if !ec.Doas {
					params["hello"] = "1"
				}
				ec.Redemption = &Redemption{Endpoint: EndpointDeviceTransfer, Params: params}
			}
			ec.AllGood = false
			return ec, nil
		}
		// Своё устройство: отмечаем появление. Запись должна лечь
		// до ответа — следующий запрос может зависеть от неё.
		if err := s.repo.TouchDeviceLastSeen(ctx, device.ID, now); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	// Хотя бы одно устройство должно быть зарегистрировано,
	// даже при заходе с внешней сети.
	if allGood {
		count, err := s.repo.CountDevicesByAccount(ctx, ec.Account.ID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if count == 0 {
			ec.Redemption = &Redemption{Endpoint: EndpointDeviceRegister}
			ec.AllGood = false
			return ec, nil
		}
	}

	// Первая подписка: бесплатный месяц с даты регистрации первого
	// устройства. Единственная мутация состояния при вычислении,
	// кроме отметки появления устройства.
	if allGood {
		subs, err := s.repo.ListSubscriptionsByAccount(ctx, ec.Account.ID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if len(subs) == 0 {
			if err := s.bootstrapFirstSubscription(ctx, ec.Account, now); err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
		}
	}

	ec.AllGood = allGood
	return ec, nil
}

// resolveDoas возвращает аккаунт из параметра doas или nil, если параметр
// отсутствует, не числовой или аккаунт не найден.
func (s *Service) resolveDoas(ctx context.Context, doasID string) (*models.Account, error) {
	if doasID == "" {
		return nil, nil
	}
	id, err := strconv.Atoi(doasID)
	if err != nil {
		return nil, nil
	}
	return s.repo.FindAccount(ctx, id)
}

// bootstrapFirstSubscription оформляет приветственную подписку: с даты
// регистрации первого устройства по сегодня. Вызывается только когда у
// аккаунта есть устройства и нет ни одной подписки; нарушение этих
// предусловий — ошибка состояния, о ней сообщаем громко.
func (s *Service) bootstrapFirstSubscription(ctx context.Context, account *models.Account, now time.Time) error {
	const op = "entitlement.bootstrapFirstSubscription"

	first, err := s.repo.FirstDeviceRegistered(ctx, account.ID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if first == nil {
		s.log.Error("first subscription bootstrap for account without devices",
			slog.String("op", op), slog.Int("account_id", account.ID))
		return fmt.Errorf("%s: account %d has no devices", op, account.ID)
	}

	offer, err := s.repo.FindOffer(ctx, models.FirstOfferSlug)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if offer == nil {
		s.log.Error("welcome offer missing from catalogue",
			slog.String("op", op), slog.String("slug", models.FirstOfferSlug))
		return fmt.Errorf("%s: offer %q not found", op, models.FirstOfferSlug)
	}

	start := truncateToDay(*first)
	sub := models.Subscription{
		AccountID: account.ID,
		OfferSlug: offer.Slug,
		Start:     start,
		End:       truncateToDay(now),
	}
	id, err := s.repo.CreateSubscription(ctx, sub)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.repo.UpdateAccountSubState(ctx, account.ID, models.SubStateTrial); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	account.SubState = models.SubStateTrial

	s.log.Info("added first subscription",
		slog.Int("subscription_id", id),
		slog.Int("account_id", account.ID),
		slog.Time("start", sub.Start),
		slog.Time("end", sub.End))
	return nil
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
