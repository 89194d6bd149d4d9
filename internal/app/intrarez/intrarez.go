// Package intrarez собирает HTTP-приложение капчивного портала:
// хранилище, кеш, брокер событий и все сервисы с маршрутами.
package intrarez

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/GRI-ESPCI/intrarez/internal/cache"
	"github.com/GRI-ESPCI/intrarez/internal/config"
	"github.com/GRI-ESPCI/intrarez/internal/lib/rabbitmq"
	"github.com/GRI-ESPCI/intrarez/internal/lib/token"
	"github.com/GRI-ESPCI/intrarez/internal/migrations"
	"github.com/GRI-ESPCI/intrarez/internal/netid"
	authservice "github.com/GRI-ESPCI/intrarez/internal/services/auth"
	devicesservice "github.com/GRI-ESPCI/intrarez/internal/services/devices"
	entitlementservice "github.com/GRI-ESPCI/intrarez/internal/services/entitlement"
	grisservice "github.com/GRI-ESPCI/intrarez/internal/services/gris"
	roomsservice "github.com/GRI-ESPCI/intrarez/internal/services/rooms"
	substateservice "github.com/GRI-ESPCI/intrarez/internal/services/substate"
	subservice "github.com/GRI-ESPCI/intrarez/internal/services/subscription"
	"github.com/GRI-ESPCI/intrarez/internal/storage/repository"
)

// App - HTTP-приложение портала со всеми зависимостями.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	conn   *amqp.Connection
	ch     *amqp.Channel
}

// New подключает PostgreSQL, Redis и RabbitMQ, применяет миграции,
// собирает сервисы и роутер.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, "./migrations"); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetPortalQueues())
	if err != nil {
		return nil, err
	}
	publisher := rabbitmq.NewPublisher(ch)

	tokenMaker := token.NewMaker(cfg.SecretKey, cfg.TokenTTL)
	resolver := netid.NewResolver(netid.NewARPTable(cfg.ARPCommand))

	authService := authservice.New(db, tokenMaker)
	entitlementService := entitlementservice.New(logger, db, resolver, cfg.Maintenance, cfg.ForceIP, cfg.ForceMAC)
	roomsService := roomsservice.New(logger, db, publisher)
	devicesService := devicesservice.New(logger, db, publisher)
	subscriptionService := subservice.New(logger, db, cacheRedis, publisher)
	grisService := grisservice.New(logger, db, publisher)
	substateService := substateservice.New(logger, db, publisher)

	router := chi.NewRouter()

	RegisterRoutes(router, logger, cfg, Services{
		Auth:         authService,
		Entitlement:  entitlementService,
		Rooms:        roomsService,
		Devices:      devicesService,
		Subscription: subscriptionService,
		Gris:         grisService,
		Substate:     substateService,
		Events:       publisher,
	})

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		conn:   conn,
		ch:     ch,
	}, nil
}

// Run запускает сервер и ждет либо фатальной ошибки, либо отмены
// контекста, после чего корректно завершает работу.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		_ = a.ch.Close()
		_ = a.conn.Close()
		_ = a.db.DB.Close()
		return err
	}
}
