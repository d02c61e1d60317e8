package telemetry

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// LogSink writes structured LogRecords through a zerolog.Logger, grounded
// on the corpus's logiface-zerolog wiring (see DESIGN.md "Logging"):
// zerolog is used directly here since the bus has exactly one log backend
// to drive.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a LogSink writing to w (os.Stdout if nil).
func NewLogSink(w io.Writer) *LogSink {
	if w == nil {
		w = os.Stdout
	}
	return &LogSink{logger: zerolog.New(w).With().Timestamp().Logger()}
}

func (s *LogSink) Write(rec LogRecord) {
	var ev *zerolog.Event
	switch rec.Level {
	case LevelDebug:
		ev = s.logger.Debug()
	case LevelWarn:
		ev = s.logger.Warn()
	case LevelError:
		ev = s.logger.Error()
	default:
		ev = s.logger.Info()
	}

	ev = ev.Uint64("sim_time_ns", rec.SimTime.Nanos()).
		Uint32("node", uint32(rec.Node)).
		Uint64("trace", uint64(rec.Trace))

	for k, v := range rec.Fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(rec.Message)
}
