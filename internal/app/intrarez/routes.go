package intrarez

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/GRI-ESPCI/intrarez/internal/config"
	"github.com/GRI-ESPCI/intrarez/internal/http/handlers/auth/login"
	"github.com/GRI-ESPCI/intrarez/internal/http/handlers/auth/needed"
	"github.com/GRI-ESPCI/intrarez/internal/http/handlers/auth/register"
	"github.com/GRI-ESPCI/intrarez/internal/http/handlers/devices/deviceerror"
	devicelist "github.com/GRI-ESPCI/intrarez/internal/http/handlers/devices/list"
	deviceregister "github.com/GRI-ESPCI/intrarez/internal/http/handlers/devices/register"
	"github.com/GRI-ESPCI/intrarez/internal/http/handlers/devices/transfer"
	"github.com/GRI-ESPCI/intrarez/internal/http/handlers/gris/accounts"
	"github.com/GRI-ESPCI/intrarez/internal/http/handlers/gris/ban"
	"github.com/GRI-ESPCI/intrarez/internal/http/handlers/gris/rundhcp"
	"github.com/GRI-ESPCI/intrarez/internal/http/handlers/gris/runsubstate"
	"github.com/GRI-ESPCI/intrarez/internal/http/handlers/gris/unban"
	"github.com/GRI-ESPCI/intrarez/internal/http/handlers/health"
	"github.com/GRI-ESPCI/intrarez/internal/http/handlers/me"
	"github.com/GRI-ESPCI/intrarez/internal/http/handlers/portal/capture"
	"github.com/GRI-ESPCI/intrarez/internal/http/handlers/portal/external"
	"github.com/GRI-ESPCI/intrarez/internal/http/handlers/portal/home"
	"github.com/GRI-ESPCI/intrarez/internal/http/handlers/rooms/modify"
	roomregister "github.com/GRI-ESPCI/intrarez/internal/http/handlers/rooms/register"
	"github.com/GRI-ESPCI/intrarez/internal/http/handlers/rooms/terminate"
	"github.com/GRI-ESPCI/intrarez/internal/http/handlers/subscriptions/list"
	"github.com/GRI-ESPCI/intrarez/internal/http/handlers/subscriptions/offers"
	"github.com/GRI-ESPCI/intrarez/internal/http/handlers/subscriptions/subscribe"
	"github.com/GRI-ESPCI/intrarez/internal/http/middlewarectx"
	"github.com/GRI-ESPCI/intrarez/internal/lib/rabbitmq"
	authservice "github.com/GRI-ESPCI/intrarez/internal/services/auth"
	devicesservice "github.com/GRI-ESPCI/intrarez/internal/services/devices"
	entitlementservice "github.com/GRI-ESPCI/intrarez/internal/services/entitlement"
	grisservice "github.com/GRI-ESPCI/intrarez/internal/services/gris"
	roomsservice "github.com/GRI-ESPCI/intrarez/internal/services/rooms"
	substateservice "github.com/GRI-ESPCI/intrarez/internal/services/substate"
	subservice "github.com/GRI-ESPCI/intrarez/internal/services/subscription"
)

// Services — собранные сервисы портала, которые роутер раздаёт обработчикам.
type Services struct {
	Auth         *authservice.Service
	Entitlement  *entitlementservice.Service
	Rooms        *roomsservice.Service
	Devices      *devicesservice.Service
	Subscription *subservice.Service
	Gris         *grisservice.Service
	Substate     *substateservice.Service
	Events       *rabbitmq.Publisher
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, cfg *config.Config, s Services) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	// Лимитер открытых точек аутентификации, общий на процесс.
	authLimiter := rate.NewLimiter(rate.Every(time.Second), 10)

	session := middlewarectx.Session(s.Auth, cfg.CookieName, logger)
	entitled := middlewarectx.Entitlement(s.Entitlement, cfg.ClientIPHeader, logger)

	r.With(session, entitled).Get("/", home.New(logger).ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RateLimit(authLimiter, logger))
			r.Post("/auth/register", register.New(logger, s.Auth).ServeHTTP)
			r.Post("/auth/login", login.New(logger, s.Auth, cfg.CookieName).ServeHTTP)
		})

		// Группа с сессией и вычислением допуска
		r.Group(func(r chi.Router) {
			r.Use(session, entitled)

			// Страницы исправления, доступные из любого состояния
			r.Get("/external", external.New(logger).ServeHTTP)
			r.Get("/auth/needed", needed.New(logger).ServeHTTP)
			r.Get("/devices/error", deviceerror.New(logger).ServeHTTP)

			r.With(middlewarectx.LoggedInOnly).Get("/me", me.New(logger).ServeHTTP)
			r.With(middlewarectx.LoggedInOnly).Get("/devices", devicelist.New(logger, s.Devices).ServeHTTP)

			// Действия резидента: каждая точка сама является страницей
			// исправления для своего условия, петли разруливает AllGoodOnly.
			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.AllGoodOnly)
				r.Post("/rooms/register", roomregister.New(logger, s.Rooms).ServeHTTP)
				r.Put("/rooms/rental", modify.New(logger, s.Rooms).ServeHTTP)
				r.Post("/rooms/terminate", terminate.New(logger, s.Rooms).ServeHTTP)
				r.With(middlewarectx.InternalOnly).Post("/devices/register", deviceregister.New(logger, s.Devices).ServeHTTP)
				r.Post("/devices/transfer", transfer.New(logger, s.Devices).ServeHTTP)
				r.Get("/subscriptions", list.New(logger, s.Subscription).ServeHTTP)
				r.Get("/offers", offers.New(logger, s.Subscription).ServeHTTP)
				r.Post("/subscriptions/subscribe", subscribe.New(logger, s.Subscription).ServeHTTP)
			})

			// Администрирование GRI
			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.GrisOnly)
				r.Post("/gris/ban", ban.New(logger, s.Gris).ServeHTTP)
				r.Post("/gris/unban", unban.New(logger, s.Gris).ServeHTTP)
				r.Get("/gris/accounts", accounts.New(logger, s.Gris).ServeHTTP)
				r.Post("/gris/substate/run", runsubstate.New(logger, s.Substate).ServeHTTP)
				r.Post("/gris/dhcp/run", rundhcp.New(logger, s.Events).ServeHTTP)
			})
		})
	})

	r.Get("/capture", capture.New(logger, cfg.ClientIPHeader, cfg.NetLocs).ServeHTTP)
	r.Get("/healthz", health.New(logger).ServeHTTP)

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
