package model

import (
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

// Target is one flashing element on the display. Index is stable and
// assigned by registration order; Pattern is the target's private burst code.
// Visual on/off/cue state is transient display-side state, not part of
// identity, and lives behind the display.Sink interface.
type Target struct {
	Index   int       `json:"index"`
	Label   string    `json:"label"`
	Pattern BurstCode `json:"-"`
}

// VisualState is the transient display state of a target or of a feedback
// strip position.
type VisualState string

const (
	VisualOff     VisualState = "off"
	VisualOn      VisualState = "on"
	VisualCue     VisualState = "cue"
	VisualLock    VisualState = "lock"
	VisualSuccess VisualState = "success"
	VisualFailure VisualState = "failure"
	VisualActive  VisualState = "active"
	VisualError   VisualState = "error"
	VisualHidden  VisualState = "hidden"
)

// Epoch is the per-tick metadata record the backend classifier uses to align
// raw samples to code bits. Single-target stages carry Cue and Bit;
// multi-target stages carry Bits, one entry per target in layout order.
type Epoch struct {
	Index int   `json:"index"`
	Cue   *int  `json:"cue,omitempty"`
	Bit   *int  `json:"bit,omitempty"`
	Bits  []int `json:"bits,omitempty"`
}

// Prediction is the decision payload delivered by the accumulation node.
// Frames is the latency of the decision in display frames.
type Prediction struct {
	Target int `json:"target"`
	Frames int `json:"frames"`
}

// UnmarshalJSON accepts both the current object form {"target": t, "frames": f}
// and the legacy protocol variant where the payload is a bare target integer.
func (p *Prediction) UnmarshalJSON(data []byte) error {
	if n, err := strconv.Atoi(strings.TrimSpace(string(data))); err == nil {
		p.Target = n
		p.Frames = 0
		return nil
	}
	type plain Prediction
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return errors.Wrap(err, "prediction payload")
	}
	*p = Prediction(v)
	return nil
}

// RejectTarget is the sentinel target index the accumulation node emits when
// it rejects the current attempt instead of naming a target.
const RejectTarget = -1
