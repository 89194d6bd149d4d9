// Package dhcpwatcher собирает воркер перегенерации файла хостов DHCP:
// потребитель очереди событий dhcp и генератор правил.
package dhcpwatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/GRI-ESPCI/intrarez/internal/config"
	"github.com/GRI-ESPCI/intrarez/internal/lib/rabbitmq"
	"github.com/GRI-ESPCI/intrarez/internal/lib/sl"
	"github.com/GRI-ESPCI/intrarez/internal/models"
	allocationservice "github.com/GRI-ESPCI/intrarez/internal/services/allocation"
	dhcpservice "github.com/GRI-ESPCI/intrarez/internal/services/dhcp"
	"github.com/GRI-ESPCI/intrarez/internal/storage/repository"
)

// App — приложение воркера DHCP.
type App struct {
	conn        *amqp.Connection
	ch          *amqp.Channel
	dhcpService *dhcpservice.Service
	hostsFile   string
	logger      *slog.Logger
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

// New подключает PostgreSQL и RabbitMQ и собирает генератор правил.
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

	allocator := allocationservice.New(logger, db)
	dhcpService := dhcpservice.New(logger, db, allocator)

	return &App{
		conn:        conn,
		ch:          ch,
		dhcpService: dhcpService,
		hostsFile:   cfg.DHCPHostsFile,
		logger:      logger,
	}, nil
}

// Run перегенерирует файл при старте, затем по каждому событию из
// очереди dhcp, и ждет отмены контекста.
func (a *App) Run(ctx context.Context) error {
	if err := a.dhcpService.WriteFile(ctx, a.hostsFile); err != nil {
		a.logger.Error("initial dhcp hosts generation failed", sl.Err(err))
		return err
	}

	err := rabbitmq.ConsumerMessage(ctx, a.ch, rabbitmq.QueueDHCP, func(body []byte) error {
		var event models.DHCPRegenerateEvent
		if err := json.Unmarshal(body, &event); err != nil {
			a.logger.Error("failed to decode dhcp event", sl.Err(err))
			return err
		}
		a.logger.Info("regenerating dhcp hosts", slog.String("reason", event.Reason))
		return a.dhcpService.WriteFile(ctx, a.hostsFile)
	})
	if err != nil {
		a.logger.Error("failed to start dhcp consumer", slog.Any("err", err))
		return err
	}

	<-ctx.Done()
	a.logger.Info("dhcp watcher shutting down gracefully")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", slog.Any("err", err))
	}

	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", slog.Any("err", err))
	}

	return nil
}
