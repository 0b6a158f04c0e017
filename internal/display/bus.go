package display

import (
	"github.com/rs/zerolog/log"

	"bvep.dev/stimulus-next/internal/model"
)

// Publisher is the outbound half of the session gateway, narrowed to what a
// sink needs.
type Publisher interface {
	Event(name string, payload any) error
}

// BusSink forwards visual state changes over the event bus so a thin renderer
// process can mirror them. Per-frame on/off toggles are intentionally NOT
// forwarded: the renderer derives those from the epoch stream, and doubling
// them here would also double the bus traffic per frame.
type BusSink struct {
	bus Publisher
}

func NewBusSink(bus Publisher) *BusSink {
	return &BusSink{bus: bus}
}

type stateChange struct {
	Target int               `json:"target"`
	State  model.VisualState `json:"state"`
}

func (s *BusSink) SetState(target int, state model.VisualState) {
	if state == model.VisualOn || state == model.VisualOff {
		return
	}
	if err := s.bus.Event("display", stateChange{Target: target, State: state}); err != nil {
		log.Error().Err(err).Msg("display: failed to publish state change")
	}
}

func (s *BusSink) Strip(states []model.VisualState) {
	if err := s.bus.Event("display_strip", states); err != nil {
		log.Error().Err(err).Msg("display: failed to publish strip")
	}
}

func (s *BusSink) Reset() {
	if err := s.bus.Event("display_reset", nil); err != nil {
		log.Error().Err(err).Msg("display: failed to publish reset")
	}
}
