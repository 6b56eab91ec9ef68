package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TasksFinished — завершённые scrape-задачи.
	// outcome: ok, rejected, goto_timeout, blocked_403, ...
	// Отказ по content policy имеет свою метку и не считается ошибкой.
	TasksFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prospector_tasks_finished_total",
		Help: "Scrape tasks finished, by type and outcome",
	}, []string{"type", "outcome"})

	// DetailTasksEnqueued — detail-задачи, созданные discover'ом.
	DetailTasksEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prospector_detail_tasks_enqueued_total",
		Help: "Detail tasks inserted by discover runs",
	})

	// Deliveries — попытки доставки. outcome: sent, failed, dead.
	Deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prospector_deliveries_total",
		Help: "Webhook delivery attempts, by outcome",
	}, []string{"outcome"})

	// Touches — выполнение касаний. outcome: sent, failed, refused.
	Touches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prospector_touches_total",
		Help: "Touch executions, by channel and outcome",
	}, []string{"channel", "outcome"})

	// Interrupts — обработанные входящие события. result: applied, deduped, unresolved.
	Interrupts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prospector_interrupts_total",
		Help: "Inbound interrupt events, by kind and result",
	}, []string{"kind", "result"})

	// NavigationSeconds — длительность навигации браузера.
	NavigationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "prospector_navigation_seconds",
		Help:    "Browser navigation latency",
		Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30},
	})

	// PageResets — пересоздания страницы после жёстких ошибок.
	PageResets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prospector_page_resets_total",
		Help: "Browser page resets after unrecoverable errors",
	})
)
