// Prospector Scheduler — периодические действия, выполняемые одним лидером.
//
// Лидерство — pg_try_advisory_lock; остальные реплики пропускают тики.
// Лидер:
//   - создаёт discover-задачи по due-расписаниям и сдвигает next_due_at
//   - возвращает в очередь протухшие claim'ы задач, доставок и касаний
//   - создаёт доставки для новых лидов и переводит касания в scheduled
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Prospector/internal/config"
	"github.com/shaiso/Prospector/internal/delivery"
	"github.com/shaiso/Prospector/internal/mq"
	"github.com/shaiso/Prospector/internal/repo"
	"github.com/shaiso/Prospector/internal/scheduler"
	"github.com/shaiso/Prospector/internal/telemetry"
)

const (
	tickInterval        = 1 * time.Second
	maintenanceInterval = 1 * time.Minute
)

func main() {
	logger := telemetry.SetupLogger()
	logger.Info("starting prospector-scheduler")

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
	logger.Info("database connected")

	var publisher *mq.Publisher
	mqConn, err := mq.NewConnection(cfg.RabbitMQURL, "prospector-scheduler", logger)
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

	sched := scheduler.New(scheduler.Config{
		Schedules: repo.NewScheduleRepo(pool),
		Tasks:     taskRepo,
		Notifier:  publisher,
		Logger:    logger,
	})

	maint := scheduler.NewMaintenance(scheduler.MaintenanceConfig{
		Tasks:          taskRepo,
		Deliveries:     deliveryRepo,
		Touches:        touchRepo,
		Enqueuer:       delivery.NewEnqueuer(leadRepo, deliveryRepo, logger),
		Promoter:       touchRepo,
		Visibility:     cfg.Queue.VisibilityTimeout,
		PromoteHorizon: cfg.Cadence.PromoteHorizon,
		Logger:         logger,
	})

	leader := scheduler.NewLeader(pool, scheduler.LockKey, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":" + cfg.SchedulerPort
	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	tick := time.NewTicker(tickInterval)
	defer tick.Stop()
	maintTick := time.NewTicker(maintenanceInterval)
	defer maintTick.Stop()

	defer leader.Release(context.Background())

	for {
		select {
		case t := <-tick.C:
			if !leader.TryAcquire(ctx) {
				continue
			}
			if _, err := sched.Tick(ctx, t); err != nil {
				logger.Error("scheduler tick failed", "error", err)
			}

		case <-maintTick.C:
			if !leader.TryAcquire(ctx) {
				continue
			}
			maint.Run(ctx)

		case <-ctx.Done():
			logger.Info("prospector-scheduler stopped")
			return
		}
	}
}
