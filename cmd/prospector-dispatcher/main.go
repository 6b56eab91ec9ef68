// Prospector Dispatcher — исходящие действия по лидам.
//
// В одном процессе крутятся два цикла:
//   - delivery: лид → POST в CRM webhook, retry с backoff, dead после MaxAttempts
//   - cadence: due-касания → отправка в канал (email/sms/whatsapp/voice)
//
// Оба цикла просыпаются по delivery.ready / touch.ready и опрашивают базу по таймеру.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/shaiso/Prospector/internal/cadence"
	"github.com/shaiso/Prospector/internal/channels"
	"github.com/shaiso/Prospector/internal/config"
	"github.com/shaiso/Prospector/internal/delivery"
	"github.com/shaiso/Prospector/internal/mq"
	"github.com/shaiso/Prospector/internal/queue"
	"github.com/shaiso/Prospector/internal/repo"
	"github.com/shaiso/Prospector/internal/telemetry"
)

func main() {
	logger := telemetry.SetupLogger()
	logger.Info("starting prospector-dispatcher")

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

	deliveryRepo := repo.NewDeliveryRepo(pool, cfg.Queue.VisibilityTimeout)
	leadRepo := repo.NewLeadRepo(pool)
	touchRepo := repo.NewTouchRepo(pool)

	deliveryWake := make(chan struct{}, 1)
	touchWake := make(chan struct{}, 1)

	mqConn, err := mq.NewConnection(cfg.RabbitMQURL, "prospector-dispatcher", logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, running in polling-only mode", "error", err)
	} else {
		defer mqConn.Close()
		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}
		for q, wake := range map[mq.Queue]chan struct{}{
			mq.QueueDeliveriesReady: deliveryWake,
			mq.QueueTouchesReady:    touchWake,
		} {
			consumer := mq.NewConsumer(mqConn, logger, mq.ConsumerConfig{
				Queue:   string(q),
				Handler: mq.WakeHandler(wake),
			})
			go func() {
				if err := consumer.Start(ctx); err != nil {
					logger.Warn("wake consumer stopped", "queue", q, "error", err)
				}
			}()
		}
	}

	senders, err := channels.FromConfig(ctx, cfg.Channels, logger)
	if err != nil {
		logger.Error("failed to configure channels", "error", err)
		os.Exit(1)
	}
	logger.Info("channels configured", "channels", senders.Channels())

	g, gctx := errgroup.WithContext(ctx)

	// Без webhook URL доставка выключена, касания работают.
	poster, err := delivery.NewPoster(delivery.PosterConfig{
		URL:        cfg.Delivery.WebhookURL,
		Timeout:    cfg.Delivery.Timeout,
		RatePerSec: cfg.Delivery.RatePerSec,
	})
	if err != nil {
		logger.Warn("delivery worker disabled", "error", err)
	} else {
		deliveries := delivery.NewWorker(delivery.WorkerConfig{
			WorkerID:         cfg.WorkerID,
			Deliveries:       deliveryRepo,
			Leads:            leadRepo,
			Poster:           poster,
			Enqueuer:         delivery.NewEnqueuer(leadRepo, deliveryRepo, logger),
			Backoff:          queue.Backoff{Base: cfg.Delivery.BackoffBase, Cap: cfg.Delivery.BackoffCap},
			MaxAttempts:      cfg.Delivery.MaxAttempts,
			PollInterval:     cfg.Queue.PollInterval,
			BatchSize:        cfg.Queue.BatchSize,
			MaxStoreFailures: cfg.Queue.MaxStoreFailures,
			Wake:             deliveryWake,
			Logger:           logger,
		})
		g.Go(func() error { return deliveries.Run(gctx) })
	}

	touches := cadence.NewDispatcher(cadence.DispatcherConfig{
		WorkerID:         cfg.WorkerID,
		Touches:          touchRepo,
		Leads:            leadRepo,
		Senders:          senders,
		PromoteHorizon:   cfg.Cadence.PromoteHorizon,
		PollInterval:     cfg.Queue.PollInterval,
		BatchSize:        cfg.Queue.BatchSize,
		MaxStoreFailures: cfg.Queue.MaxStoreFailures,
		Wake:             touchWake,
		Logger:           logger,
	})
	g.Go(func() error { return touches.Run(gctx) })

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":" + cfg.DispatcherPort
	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	if err := g.Wait(); err != nil {
		logger.Error("dispatcher stopped", "error", err)
		os.Exit(1)
	}

	logger.Info("prospector-dispatcher stopped")
}
