package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shaiso/Prospector/internal/domain"
	"github.com/shaiso/Prospector/internal/telemetry"
)

// evidenceTimeout ограничивает съём артефактов с зависшей страницы.
const evidenceTimeout = 10 * time.Second

func isBlocked(status int) bool {
	return status == http.StatusForbidden || status == http.StatusServiceUnavailable
}

// open открывает url и ждёт marker.
//
// На 403/503 делает ровно одну повторную попытку после паузы Pacer.
// Возвращает ok=false и готовый Result, если страницу разбирать нельзя.
func (e *Env) open(ctx context.Context, task *domain.Task, url, marker string) (Result, bool) {
	status, err := e.gotoURL(ctx, url)
	if err == nil && isBlocked(status) {
		e.Logger.Warn("blocked by source, retrying once", "status", status, "url", url)
		if werr := e.Pacer.Wait(ctx); werr != nil {
			return Result{Outcome: domain.Blocked(status)}, false
		}
		status, err = e.gotoURL(ctx, url)
		if err == nil && isBlocked(status) {
			e.capture(ctx, task)
			return Result{Outcome: domain.Blocked(status)}, false
		}
	}

	if err != nil {
		e.capture(ctx, task)
		if isTimeout(ctx, err) {
			e.Logger.Warn("navigation timed out", "url", url, "timeout", e.GotoTimeout)
			return Result{Outcome: domain.Failed(domain.ReasonGotoTimeout), ResetPage: true}, false
		}
		e.Logger.Warn("navigation failed", "url", url, "error", err)
		return Result{Outcome: domain.Failed(domain.ReasonPageCrash), ResetPage: true}, false
	}

	if status >= 400 {
		return Result{Outcome: domain.Failed(fmt.Sprintf("%s%d", domain.ReasonHTTPPrefix, status))}, false
	}

	if marker == "" {
		return Result{}, true
	}

	wctx, cancel := context.WithTimeout(ctx, e.WaitTimeout)
	defer cancel()
	if err := e.Page.WaitFor(wctx, marker); err != nil {
		e.capture(ctx, task)
		if isTimeout(ctx, err) {
			e.Logger.Warn("content marker did not appear", "url", url, "marker", marker)
			return Result{Outcome: domain.Failed(domain.ReasonGotoTimeout), ResetPage: true}, false
		}
		return Result{Outcome: domain.Failed(domain.ReasonPageCrash), ResetPage: true}, false
	}

	return Result{}, true
}

func (e *Env) gotoURL(ctx context.Context, url string) (int, error) {
	gctx, cancel := context.WithTimeout(ctx, e.GotoTimeout)
	defer cancel()

	start := time.Now()
	status, err := e.Page.Goto(gctx, url)
	telemetry.NavigationSeconds.Observe(time.Since(start).Seconds())
	return status, err
}

// html читает DOM с таймаутом ожидания.
func (e *Env) html(ctx context.Context) (string, error) {
	hctx, cancel := context.WithTimeout(ctx, e.WaitTimeout)
	defer cancel()
	return e.Page.HTML(hctx)
}

// capture сохраняет evidence; ошибки только логируются.
func (e *Env) capture(ctx context.Context, task *domain.Task) {
	if ctx.Err() != nil {
		return
	}
	cctx, cancel := context.WithTimeout(ctx, evidenceTimeout)
	defer cancel()

	path, err := e.Evidence.Capture(cctx, e.Page, task.Type, task.City)
	if err != nil {
		e.Logger.Warn("evidence capture incomplete", "path", path, "error", err)
		return
	}
	if path != "" {
		e.Logger.Info("evidence captured", "path", path)
	}
}

// isTimeout — истёк дедлайн операции, а не отменён родительский ctx.
func isTimeout(parent context.Context, err error) bool {
	return errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil
}
