package mail

import (
	"context"
	"log/slog"
)

// LogDispatcher writes the code to the log instead of delivering it. Used
// in development, and as the SMS driver when no gateway is configured.
type LogDispatcher struct {
	Log     *slog.Logger
	Channel string // "email" or "sms", for the log line
}

func NewLogDispatcher(log *slog.Logger, channel string) *LogDispatcher {
	return &LogDispatcher{Log: log, Channel: channel}
}

func (d *LogDispatcher) SendCode(ctx context.Context, to, code string) error {
	d.Log.Info("login code issued",
		"channel", d.Channel,
		"to", to,
		"code", code,
	)
	return nil
}
