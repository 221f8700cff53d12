package infra

import (
	"go.uber.org/zap"

	"github.com/appquota/appquota/internal/domain"
)

// LogSink is the default presentation gateway when no UI is attached:
// every monitor event becomes a structured log line.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a logging event sink.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Publish logs the event.
func (s *LogSink) Publish(ev domain.Event) {
	switch ev.Type {
	case domain.EventWarningTriggered:
		s.logger.Info("usage warning",
			zap.String("rule", ev.RuleName),
			zap.Int("remaining_minutes", ev.RemainingMinutes))
	case domain.EventAppKilled:
		s.logger.Info("application terminated",
			zap.String("rule", ev.RuleName),
			zap.String("process", ev.ProcessName))
	case domain.EventAppKillFailed:
		s.logger.Warn("application termination failed, close it manually",
			zap.String("rule", ev.RuleName),
			zap.String("process", ev.ProcessName),
			zap.String("reason", ev.Reason))
	case domain.EventUsageUpdated:
		s.logger.Debug("usage updated",
			zap.String("rule_id", ev.RuleID),
			zap.Int("used_seconds", ev.UsedSeconds),
			zap.Int("limit_seconds", ev.LimitSeconds))
	}
}

// ChannelSink buffers events for an external consumer (tray UI,
// notifier). Publish never blocks: when the consumer lags, the new
// event is dropped, keeping the enforcement cycle decoupled from
// presentation speed.
type ChannelSink struct {
	ch chan domain.Event
}

// NewChannelSink creates a channel sink with the given buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{ch: make(chan domain.Event, buffer)}
}

// Publish enqueues the event, dropping it if the buffer is full.
func (s *ChannelSink) Publish(ev domain.Event) {
	select {
	case s.ch <- ev:
	default:
	}
}

// Events returns the channel the consumer drains.
func (s *ChannelSink) Events() <-chan domain.Event {
	return s.ch
}

// FanoutSink publishes each event to every wrapped sink, preserving
// per-cycle ordering.
type FanoutSink struct {
	sinks []domain.EventSink
}

// NewFanoutSink creates a fan-out over the given sinks.
func NewFanoutSink(sinks ...domain.EventSink) *FanoutSink {
	return &FanoutSink{sinks: sinks}
}

// Publish forwards the event to all sinks in order.
func (s *FanoutSink) Publish(ev domain.Event) {
	for _, sink := range s.sinks {
		sink.Publish(ev)
	}
}

var (
	_ domain.EventSink = (*LogSink)(nil)
	_ domain.EventSink = (*ChannelSink)(nil)
	_ domain.EventSink = (*FanoutSink)(nil)
)
