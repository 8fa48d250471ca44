package callbacks

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/reqtrace/pkg/domain"
)

type logState struct {
	streamID string
	started  time.Time
	events   int
}

// Logger writes every event to a structured logger.
type Logger struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogger creates a logging callback emitting events at level.
func NewLogger(logger *slog.Logger, level slog.Level) *Logger {
	return &Logger{logger: logger, level: level}
}

func (l *Logger) OnInit(streamID string, rc *domain.RequestContext, _ domain.Options) (domain.State, error) {
	attrs := []any{"stream_id", streamID}
	if rc != nil {
		attrs = append(attrs, "method", rc.Method, "path", rc.Path)
	}
	l.logger.Info("Trace started", attrs...)
	return &logState{streamID: streamID, started: time.Now()}, nil
}

func (l *Logger) OnEvent(ev domain.TraceEvent, st domain.State) (domain.State, error) {
	s := st.(*logState)
	s.events++
	l.logger.Log(context.Background(), l.level, "Trace event",
		"stream_id", s.streamID,
		"seq", ev.Seq,
		"kind", ev.Kind,
		"routine", ev.Routine,
		"payload", ev.Payload,
	)
	return s, nil
}

func (l *Logger) OnTerminate(st domain.State) {
	s := st.(*logState)
	l.logger.Info("Trace finished",
		"stream_id", s.streamID,
		"events", s.events,
		"duration", time.Since(s.started),
	)
}
