// Package display decouples the engine from any rendering technology. The
// engine addresses targets by index through the Sink interface; concrete
// sinks forward the state changes to whatever draws them.
package display

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"bvep.dev/stimulus-next/internal/model"
)

// Sink receives transient visual state changes. Implementations must be
// cheap and non-blocking: SetState is called for every target on every frame
// while the engine is running.
type Sink interface {
	// SetState updates one target's visual state.
	SetState(target int, state model.VisualState)

	// Strip renders the sequence-task feedback strip, one state per
	// position of the target sequence.
	Strip(states []model.VisualState)

	// Reset turns every target off and clears the strip.
	Reset()
}

// Multi fans state changes out to several sinks.
func Multi(sinks ...Sink) Sink {
	return multiSink(sinks)
}

type multiSink []Sink

func (m multiSink) SetState(target int, state model.VisualState) {
	for _, s := range m {
		s.SetState(target, state)
	}
}

func (m multiSink) Strip(states []model.VisualState) {
	for _, s := range m {
		s.Strip(states)
	}
}

func (m multiSink) Reset() {
	for _, s := range m {
		s.Reset()
	}
}

// NopSink discards all state changes. Used in tests and headless runs.
type NopSink struct{}

func (NopSink) SetState(int, model.VisualState) {}
func (NopSink) Strip([]model.VisualState)       {}
func (NopSink) Reset()                          {}

// LogSink traces state changes through zerolog. Frame-rate output, so it logs
// at trace level only.
type LogSink struct {
	l zerolog.Logger
}

func NewLogSink() *LogSink {
	return &LogSink{l: log.With().Str("evt.name", "display").Logger()}
}

func (s *LogSink) SetState(target int, state model.VisualState) {
	s.l.Trace().Int("target", target).Str("state", string(state)).Msg("set state")
}

func (s *LogSink) Strip(states []model.VisualState) {
	arr := zerolog.Arr()
	for _, st := range states {
		arr.Str(string(st))
	}
	s.l.Trace().Array("strip", arr).Msg("strip")
}

func (s *LogSink) Reset() {
	s.l.Trace().Msg("reset")
}
