package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// stealthJS скрывает самые очевидные признаки автоматизации.
const stealthJS = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined});`

// ChromeConfig — параметры запуска Chrome.
type ChromeConfig struct {
	Headless bool

	// SlowMo — пауза перед каждым действием на странице.
	SlowMo time.Duration

	// ExecPath — путь к бинарнику Chrome; пусто — поиск в PATH.
	ExecPath string

	UserAgent string

	// StartupTimeout — сколько ждать запуска браузера (default: 30s).
	StartupTimeout time.Duration

	Logger *slog.Logger
}

// ChromeBrowser — Browser поверх chromedp.
type ChromeBrowser struct {
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	slowMo        time.Duration
	logger        *slog.Logger
}

var _ Browser = (*ChromeBrowser)(nil)

// NewChromeBrowser запускает Chrome и проверяет, что он отвечает.
//
// ctx ограничивает только время жизни процесса браузера.
func NewChromeBrowser(ctx context.Context, cfg ChromeConfig) (*ChromeBrowser, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	startup := cfg.StartupTimeout
	if startup <= 0 {
		startup = 30 * time.Second
	}

	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-infobars", true),
		chromedp.WindowSize(1366, 900),
	)
	if cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(s string, args ...any) {
			logger.Debug(fmt.Sprintf("chromedp: "+s, args...))
		}),
	)

	// Первый Run выделяет браузер; его ctx не должен быть с таймаутом,
	// иначе отмена таймаута закроет браузер.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	testCtx, testCancel := context.WithTimeout(browserCtx, startup)
	defer testCancel()
	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("browser failed startup test: %w", err)
	}

	logger.Info("browser started", "headless", cfg.Headless)

	return &ChromeBrowser{
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
		slowMo:        cfg.SlowMo,
		logger:        logger,
	}, nil
}

// NewPage открывает новую вкладку.
func (b *ChromeBrowser) NewPage(ctx context.Context) (Page, error) {
	tabCtx, tabCancel := chromedp.NewContext(b.browserCtx)

	p := &chromePage{
		tabCtx:    tabCtx,
		tabCancel: tabCancel,
		slowMo:    b.slowMo,
	}

	chromedp.ListenTarget(tabCtx, func(ev any) {
		switch e := ev.(type) {
		case *network.EventResponseReceived:
			// Первый document-ответ после Goto — основной документ.
			if e.Type == network.ResourceTypeDocument && e.Response != nil {
				p.status.CompareAndSwap(0, e.Response.Status)
			}
		}
	})

	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		return nil, fmt.Errorf("open tab: %w", err)
	}
	if err := p.run(ctx,
		network.Enable(),
		chromedp.Evaluate(stealthJS, nil),
	); err != nil {
		tabCancel()
		return nil, fmt.Errorf("open tab: %w", err)
	}

	return p, nil
}

// Close останавливает браузер.
func (b *ChromeBrowser) Close() error {
	b.browserCancel()
	b.allocCancel()
	b.logger.Info("browser stopped")
	return nil
}

// chromePage — вкладка chromedp.
type chromePage struct {
	tabCtx    context.Context
	tabCancel context.CancelFunc
	slowMo    time.Duration

	status atomic.Int64
}

// run выполняет actions в контексте вкладки с дедлайном и отменой из ctx.
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.tabCtx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if p.slowMo > 0 {
		actions = append([]chromedp.Action{chromedp.Sleep(p.slowMo)}, actions...)
	}

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return fmt.Errorf("%w: %v", ctx.Err(), err)
	}
	if err != nil && runCtx.Err() != nil {
		return fmt.Errorf("%w: %v", runCtx.Err(), err)
	}
	return err
}

func (p *chromePage) Goto(ctx context.Context, url string) (int, error) {
	p.status.Store(0)
	if err := p.run(ctx, chromedp.Navigate(url)); err != nil {
		return int(p.status.Load()), err
	}
	return int(p.status.Load()), nil
}

func (p *chromePage) WaitFor(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.WaitReady(selector, chromedp.ByQuery))
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

func (p *chromePage) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	// quality 100 — PNG.
	if err := p.run(ctx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, err
	}
	return buf, nil
}

func (p *chromePage) Close() error {
	p.tabCancel()
	return nil
}
