// Package tracker implements sinks which track named series of metrics
// during an experiment, and functionality to save and plot the tracked
// data after the experiment has finished
package tracker

import (
	"github.com/rs/zerolog"
)

// Sink records values of named metrics. Recording a value never
// fails, sinks which write to external storage should buffer values
// and report errors when they are saved.
type Sink interface {
	Record(name string, value float64)
}

// Nop is a Sink that discards all values
type Nop struct{}

// Record implements the Sink interface
func (Nop) Record(string, float64) {}

// Multi is a Sink which records each value to each of its Sinks
type Multi []Sink

// Record implements the Sink interface
func (m Multi) Record(name string, value float64) {
	for _, sink := range m {
		sink.Record(name, value)
	}
}

// LogSink is a Sink which writes each value as a debug log event
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink returns a new LogSink writing to logger
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// Record implements the Sink interface
func (l *LogSink) Record(name string, value float64) {
	l.logger.Debug().Str("metric", name).Float64("value", value).Msg("")
}
