package channels

import (
	"context"
	"log/slog"

	"github.com/shaiso/Prospector/internal/domain"
)

// LogSender только логирует касание (dry-run).
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender создаёт LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, touch *domain.TouchRun, lead *domain.Lead) (string, error) {
	s.logger.Info("dry-run touch",
		"touch_id", touch.ID,
		"lead_id", lead.ID,
		"channel", touch.Channel,
		"step", touch.Step,
	)
	return "dryrun-" + touch.ID.String(), nil
}
