package cmd

import (
	"context"
	"time"

	"github.com/pithecene-io/rpbridge/config"
	"github.com/pithecene-io/rpbridge/log"
	"github.com/pithecene-io/rpbridge/notify"
	"github.com/pithecene-io/rpbridge/notify/redis"
	"github.com/pithecene-io/rpbridge/notify/webhook"
	"github.com/pithecene-io/rpbridge/runtime"
)

// notifyTimeout bounds all notifications of one run.
const notifyTimeout = 30 * time.Second

// newNotifiers builds the notifiers enabled in cfg.
func newNotifiers(cfg *config.Config) ([]notify.Notifier, error) {
	retries := notify.DefaultRetries
	if cfg.Notify.Retries != nil {
		retries = *cfg.Notify.Retries
	}

	var out []notify.Notifier
	if wh := cfg.Notify.Webhook; wh.URL != "" {
		n, err := webhook.New(webhook.Config{
			URL:     wh.URL,
			Headers: wh.Headers,
			Timeout: wh.Timeout.Duration,
			Retries: retries,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if rc := cfg.Notify.Redis; rc.URL != "" {
		n, err := redis.New(redis.Config{
			URL:     rc.URL,
			Channel: rc.Channel,
			Retries: retries,
		})
		if err != nil {
			_ = notify.CloseAll(out)
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// publishRunFinished notifies every target. Failures are logged only; the
// run is already reported.
func publishRunFinished(notifiers []notify.Notifier, report *runtime.RunReport, project string, logger *log.Logger) {
	if len(notifiers) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	ev := notify.NewRunFinishedEvent(report, project, time.Now())
	if err := notify.PublishAll(ctx, notifiers, ev); err != nil {
		logger.Warn("run notification failed", map[string]any{"error": err.Error()})
		return
	}
	logger.Info("run notification sent", map[string]any{"targets": len(notifiers)})
}
