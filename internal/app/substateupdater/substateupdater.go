// Package substateupdater собирает воркер пересчёта состояний подписки:
// периодический проход по всем аккаунтам с публикацией уведомлений.
package substateupdater

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/GRI-ESPCI/intrarez/internal/config"
	"github.com/GRI-ESPCI/intrarez/internal/lib/rabbitmq"
	substateservice "github.com/GRI-ESPCI/intrarez/internal/services/substate"
	"github.com/GRI-ESPCI/intrarez/internal/storage/repository"
)

// App — приложение воркера пересчёта.
type App struct {
	substateService *substateservice.Service
	interval        time.Duration
	conn            *amqp.Connection
	ch              *amqp.Channel
	logger          *slog.Logger
}

func waitForDB(db *repository.Storage) error {
	for i := 0; i < 10; i++ {
		err := repository.CheckDatabaseReady(db)
		if err == nil {
			return nil
		}
		time.Sleep(3 * time.Second)
	}
	return fmt.Errorf("database not ready after retries")
}

// New подключает PostgreSQL и RabbitMQ и собирает сервис пересчёта.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err := waitForDB(db); err != nil {
		return nil, err
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetPortalQueues())
	if err != nil {
		conn.Close()
		return nil, err
	}

	substateService := substateservice.New(logger, db, rabbitmq.NewPublisher(ch))

	return &App{
		substateService: substateService,
		interval:        cfg.SubStateInterval,
		conn:            conn,
		ch:              ch,
		logger:          logger,
	}, nil
}

// Run запускает периодический пересчёт и ждет отмены контекста.
func (a *App) Run(ctx context.Context) error {
	go a.substateService.Run(ctx, a.interval)

	<-ctx.Done()
	a.logger.Info("substate updater shutting down gracefully")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", slog.Any("err", err))
	}

	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", slog.Any("err", err))
	}

	return nil
}
