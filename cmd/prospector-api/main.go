// Prospector API — HTTP-интерфейс оператора и провайдеров.
//
// API:
//   - Claim RPC для внешних scrape-воркеров (/api/v1/tasks/claim, /finish)
//   - Команды оператора: discover, reclaim, requeue, enqueue доставок
//   - Запись лидов в кампании и ручные касания
//   - Входящие события провайдеров (/webhooks/inbound)
//   - CRUD расписаний discover
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Prospector/internal/api"
	"github.com/shaiso/Prospector/internal/cadence"
	"github.com/shaiso/Prospector/internal/channels"
	"github.com/shaiso/Prospector/internal/config"
	"github.com/shaiso/Prospector/internal/delivery"
	"github.com/shaiso/Prospector/internal/interrupt"
	"github.com/shaiso/Prospector/internal/mq"
	"github.com/shaiso/Prospector/internal/repo"
	"github.com/shaiso/Prospector/internal/telemetry"
)

var startTime = time.Now()

func main() {
	logger := telemetry.SetupLogger()
	logger.Info("starting prospector-api")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := repo.NewPool(ctx, cfg.DBURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("connected to database")

	// RabbitMQ опционален: без него воркеры работают на polling.
	var publisher *mq.Publisher
	mqConn, err := mq.NewConnection(cfg.RabbitMQURL, "prospector-api", logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, wake-ups disabled", "error", err)
	} else {
		defer mqConn.Close()
		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}
		publisher = mq.NewPublisher(mqConn, logger)
	}

	taskRepo := repo.NewTaskRepo(pool, cfg.Queue.VisibilityTimeout)
	deliveryRepo := repo.NewDeliveryRepo(pool, cfg.Queue.VisibilityTimeout)
	leadRepo := repo.NewLeadRepo(pool)
	touchRepo := repo.NewTouchRepo(pool)
	scheduleRepo := repo.NewScheduleRepo(pool)

	senders, err := channels.FromConfig(ctx, cfg.Channels, logger)
	if err != nil {
		logger.Error("failed to configure channels", "error", err)
		os.Exit(1)
	}

	// Dispatcher здесь не крутит цикл: только ExecuteOne и SendAdHoc по запросу.
	dispatcher := cadence.NewDispatcher(cadence.DispatcherConfig{
		WorkerID: cfg.WorkerID,
		Touches:  touchRepo,
		Leads:    leadRepo,
		Senders:  senders,
		Logger:   logger,
	})

	handler := api.NewHandler(api.Config{
		Tasks:         taskRepo,
		Deliveries:    deliveryRepo,
		Enqueuer:      delivery.NewEnqueuer(leadRepo, deliveryRepo, logger),
		Leads:         leadRepo,
		Touches:       touchRepo,
		Enroller:      cadence.NewBuilder(touchRepo, publisher, logger),
		Executor:      dispatcher,
		Inbound:       interrupt.NewService(leadRepo, touchRepo, publisher, logger),
		Schedules:     scheduleRepo,
		Notifier:      publisher,
		WebhookSecret: cfg.WebhookSecret,
		Visibility:    cfg.Queue.VisibilityTimeout,
		Logger:        logger,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	handler.RegisterRoutes(mux)

	addr := ":" + cfg.APIPort
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}
