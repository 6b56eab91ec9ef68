package scraper

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/shaiso/Prospector/internal/domain"
)

var unsafeNameRe = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// Evidence сохраняет HTML и скриншот страницы при неудаче.
//
// Имена файлов: <type>_<city>_<timestamp>.html и .png.
type Evidence struct {
	dir     string
	enabled bool
	now     func() time.Time
}

// NewEvidence создаёт Evidence. При enabled=false Capture ничего не делает.
func NewEvidence(dir string, enabled bool) *Evidence {
	return &Evidence{dir: dir, enabled: enabled, now: time.Now}
}

// Capture снимает HTML и скриншот. Ошибки отдельных артефактов не прерывают другие.
// Возвращает базовый путь без расширения.
func (e *Evidence) Capture(ctx context.Context, page Page, taskType domain.TaskType, city string) (string, error) {
	if e == nil || !e.enabled || page == nil {
		return "", nil
	}

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("create evidence dir: %w", err)
	}

	base := filepath.Join(e.dir, e.name(taskType, city))

	var firstErr error
	if html, err := page.HTML(ctx); err != nil {
		firstErr = fmt.Errorf("capture html: %w", err)
	} else if err := os.WriteFile(base+".html", []byte(html), 0o644); err != nil {
		firstErr = fmt.Errorf("write html: %w", err)
	}

	if png, err := page.Screenshot(ctx); err != nil {
		if firstErr == nil {
			firstErr = fmt.Errorf("capture screenshot: %w", err)
		}
	} else if err := os.WriteFile(base+".png", png, 0o644); err != nil {
		if firstErr == nil {
			firstErr = fmt.Errorf("write screenshot: %w", err)
		}
	}

	return base, firstErr
}

func (e *Evidence) name(taskType domain.TaskType, city string) string {
	ts := e.now().UTC().Format("20060102T150405.000Z")
	ts = unsafeNameRe.ReplaceAllString(ts, "")
	city = unsafeNameRe.ReplaceAllString(city, "-")
	if city == "" {
		city = "unknown"
	}
	return fmt.Sprintf("%s_%s_%s", taskType, city, ts)
}
