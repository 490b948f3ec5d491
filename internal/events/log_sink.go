package events

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// LogSink writes events as structured log entries.
type LogSink struct {
	logger *log.Logger
}

// NewLogSink uses logger, or the standard logrus logger when nil.
func NewLogSink(logger *log.Logger) *LogSink {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Record(_ context.Context, ev Event) error {
	entry := s.logger.WithFields(log.Fields{
		"event":     ev.Name,
		"timestamp": ev.Timestamp,
	})
	if ev.CommitmentID != "" {
		entry = entry.WithField("commitment_id", ev.CommitmentID)
	}
	if ev.Actor != "" {
		entry = entry.WithField("actor", ev.Actor)
	}
	for k, v := range ev.Data {
		entry = entry.WithField(k, v)
	}
	if ev.Name == Failure {
		entry.WithField("code", ev.Code).Warn(ev.Message)
		return nil
	}
	entry.Info("event")
	return nil
}

func (s *LogSink) Close() error { return nil }

// NoopSink drops events.
type NoopSink struct{}

func (NoopSink) Record(context.Context, Event) error { return nil }
func (NoopSink) Close() error                        { return nil }
