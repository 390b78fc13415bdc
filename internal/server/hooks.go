package server

import (
	"context"
	"time"

	"netpulse/internal/analytics"
	"netpulse/internal/cache"
	"netpulse/internal/logger"
	"netpulse/internal/metrics"
	"netpulse/internal/models"
	"netpulse/internal/session"
	"netpulse/internal/stream"
)

const (
	FrameTick  = "tick"
	FrameClock = "clock"

	archiveTimeout = 5 * time.Second
)

// ClockFrame is the payload of a clock message.
type ClockFrame struct {
	Timestamp     int64  `json:"timestamp"`
	FormattedTime string `json:"formattedTime"`
}

// EngineHooks connects runner output to metrics, the stream hub and the
// session archive.
func EngineHooks(ctl *session.Controller, archive cache.Archive, hub *stream.Hub, log *logger.Logger) session.Hooks {
	return session.Hooks{
		OnStart: func(models.Session) {
			hub.Publish(stream.TopicLive, FrameTick, ctl.Snapshot())
		},
		OnTick: func(batch []models.PingRecord, view session.View) {
			metrics.ObserveTick(batch, view.Live, view.Session)
			hub.Publish(stream.TopicLive, FrameTick, ctl.Snapshot())
		},
		OnStop: func(sess models.Session) {
			metrics.ObserveSessionEnd()
			ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
			defer cancel()
			if err := archive.StoreSession(ctx, sess); err != nil {
				log.Error("archive session failed", "session", sess.ID, "error", err)
			}
			hub.Publish(stream.TopicLive, FrameTick, ctl.Snapshot())
		},
		OnClock: func(now time.Time) {
			hub.Publish(stream.TopicClock, FrameClock, ClockFrame{
				Timestamp:     now.UnixMilli(),
				FormattedTime: analytics.FormatClock(now.UnixMilli(), ctl.Location()),
			})
		},
	}
}
