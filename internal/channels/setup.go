package channels

import (
	"context"
	"log/slog"

	"github.com/shaiso/Prospector/internal/config"
	"github.com/shaiso/Prospector/internal/domain"
)

// FromConfig собирает реестр отправителей.
//
// DryRun — все каналы через LogSender. Иначе email идёт через SES (если задан SESFrom),
// sms/whatsapp/voice через HTTP-шлюз (если задан ProviderURL). Канал без отправителя
// не регистрируется: его касания завершаются ошибкой ErrNoSender.
func FromConfig(ctx context.Context, cfg config.ChannelsConfig, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := NewRegistry()

	if cfg.DryRun {
		dry := NewLogSender(logger)
		for _, ch := range []domain.Channel{domain.ChannelEmail, domain.ChannelSMS, domain.ChannelWhatsApp, domain.ChannelVoice} {
			r.Register(ch, dry)
		}
		logger.Warn("channels in dry-run mode, nothing will be sent")
		return r, nil
	}

	if cfg.SESFrom != "" {
		ses, err := NewSESSender(ctx, cfg.SESFrom)
		if err != nil {
			return nil, err
		}
		r.Register(domain.ChannelEmail, ses)
	}

	if cfg.ProviderURL != "" {
		provider := NewHTTPSender(cfg.ProviderURL, cfg.ProviderToken, nil)
		r.Register(domain.ChannelSMS, provider)
		r.Register(domain.ChannelWhatsApp, provider)
		r.Register(domain.ChannelVoice, provider)
	}

	logger.Info("channels configured", "channels", r.Channels())
	return r, nil
}
