// Prospector Scraper — scrape-воркер.
//
// Worker:
//   - Забирает discover/detail задачи claim'ом из Postgres
//   - Открывает страницы в Chrome (chromedp), разбирает их goquery
//   - discover порождает detail-задачи, detail сохраняет лид
//   - Просыпается по tasks.ready из RabbitMQ, иначе опрашивает по таймеру
//
// Воркеры масштабируются горизонтально: claim не даёт двум воркерам одну задачу.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Prospector/internal/cache"
	"github.com/shaiso/Prospector/internal/config"
	"github.com/shaiso/Prospector/internal/domain"
	"github.com/shaiso/Prospector/internal/mq"
	"github.com/shaiso/Prospector/internal/repo"
	"github.com/shaiso/Prospector/internal/scraper"
	"github.com/shaiso/Prospector/internal/telemetry"
)

func main() {
	logger := telemetry.SetupLogger()
	logger.Info("starting prospector-scraper")

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

	taskRepo := repo.NewTaskRepo(pool, cfg.Queue.VisibilityTimeout)
	leadRepo := repo.NewLeadRepo(pool)

	wake := make(chan struct{}, 1)

	var publisher *mq.Publisher
	mqConn, err := mq.NewConnection(cfg.RabbitMQURL, "prospector-scraper", logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, running in polling-only mode", "error", err)
	} else {
		defer mqConn.Close()
		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}
		publisher = mq.NewPublisher(mqConn, logger)

		consumer := mq.NewConsumer(mqConn, logger, mq.ConsumerConfig{
			Queue:   string(mq.QueueTasksReady),
			Handler: mq.WakeHandler(wake),
		})
		go func() {
			if err := consumer.Start(ctx); err != nil {
				logger.Warn("tasks.ready consumer stopped", "error", err)
			}
		}()
	}

	selectors := scraper.DefaultSelectors()
	if cfg.Scraper.SelectorsFile != "" {
		selectors, err = scraper.LoadSelectors(cfg.Scraper.SelectorsFile)
		if err != nil {
			logger.Error("failed to load selectors", "error", err)
			os.Exit(1)
		}
	}
	extractor := scraper.NewSelectorExtractor(selectors)

	recent, err := cache.NewRecent(cache.DefaultRecentCapacity, cache.DefaultRecentTTL)
	if err != nil {
		logger.Error("failed to create recent cache", "error", err)
		os.Exit(1)
	}
	defer recent.Close()

	registry := scraper.NewRegistry()
	registry.Register(domain.TaskTypeDiscover, scraper.NewDiscoverHandler(scraper.DiscoverConfig{
		Tasks:            taskRepo,
		Extractor:        extractor,
		Recent:           recent,
		Notifier:         publisher,
		IndexURLTemplate: cfg.Scraper.IndexURLTemplate,
		Cap:              cfg.Scraper.DiscoverCap,
	}))
	registry.Register(domain.TaskTypeDetail, scraper.NewDetailHandler(scraper.DetailConfig{
		Leads:     leadRepo,
		Extractor: extractor,
		Notifier:  publisher,
		Source:    cfg.Scraper.Source,
	}))

	browser, err := scraper.NewChromeBrowser(ctx, scraper.ChromeConfig{
		Headless:  cfg.Scraper.Headless,
		SlowMo:    cfg.Scraper.SlowMo,
		ExecPath:  cfg.Scraper.ExecPath,
		UserAgent: cfg.Scraper.UserAgent,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("failed to start browser", "error", err)
		os.Exit(1)
	}
	defer browser.Close()

	worker := scraper.NewWorker(scraper.WorkerConfig{
		WorkerID:         cfg.WorkerID,
		Tasks:            taskRepo,
		Browser:          browser,
		Registry:         registry,
		Pacer:            scraper.NewPacer(cfg.Scraper.JitterMin, cfg.Scraper.JitterMax),
		Evidence:         scraper.NewEvidence(cfg.Scraper.EvidenceDir, cfg.Scraper.Evidence),
		GotoTimeout:      cfg.Scraper.GotoTimeout,
		WaitTimeout:      cfg.Scraper.WaitTimeout,
		PollInterval:     cfg.Queue.PollInterval,
		BatchSize:        cfg.Queue.BatchSize,
		MaxStoreFailures: cfg.Queue.MaxStoreFailures,
		Wake:             wake,
		Logger:           logger,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":" + cfg.ScraperPort
	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ошибка Run (хранилище или браузер недоступны) завершает процесс:
	// процесс перезапускается снаружи, протухшие claim'ы вернёт reclaim.
	if err := worker.Run(ctx); err != nil {
		logger.Error("scraper worker stopped", "error", err)
		cancel()
		browser.Close()
		os.Exit(1)
	}

	logger.Info("prospector-scraper stopped")
}
