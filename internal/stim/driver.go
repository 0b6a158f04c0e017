package stim

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"bvep.dev/stimulus-next/internal/display"
	"bvep.dev/stimulus-next/internal/layout"
	"bvep.dev/stimulus-next/internal/model"
	"bvep.dev/stimulus-next/internal/pkg/observability"
	"bvep.dev/stimulus-next/internal/signals"
)

// TickInfo describes one invocation of the fixed-rate tick source.
type TickInfo struct {
	// Scheduled is when this tick was supposed to fire.
	Scheduled time.Time
	// Actual is when it fired.
	Actual time.Time
	// Elapsed is the gap since the previous tick.
	Elapsed time.Duration
	// Rate is the measured tick rate in Hz.
	Rate float64
}

// Bus is the outbound half of the session gateway, narrowed to what the
// driver needs.
type Bus interface {
	Event(name string, payload any) error
}

// EventEpoch is the outbound event the backend pipeline aligns raw samples
// with. It is the only coupling point between the engine and the classifier.
const EventEpoch = "epoch"

// Driver renders the current bit of every active code once per tick and
// emits the matching epoch marker. It owns the Sequence and the run flag;
// the orchestrator configures stage, layout and cue, and flips the flag.
//
// One mutex makes every Tick and every orchestrator mutation atomic with
// respect to each other, so a tick never observes a half-applied stage
// change.
type Driver struct {
	mu   sync.Mutex
	bus  Bus
	sink display.Sink
	hub  *signals.Hub

	running     bool
	stage       model.Stage
	cue         int
	cueOnly     bool
	layout      *layout.Layout
	seq         *Sequence
	repetitions int

	ticks  uint64
	epochs uint64
}

// NoCue marks the absence of a cued target.
const NoCue = -1

func NewDriver(bus Bus, sink display.Sink, hub *signals.Hub) *Driver {
	return &Driver{bus: bus, sink: sink, hub: hub, cue: NoCue}
}

// Activate switches the driver to a stage and its layout. The frame counter
// is recreated for the new code length, the cue is cleared and the run flag
// dropped. repetitions only matters for calibration: it is the cycle count
// after which the driver raises done; zero disables the stop condition.
func (d *Driver) Activate(stage model.Stage, l *layout.Layout, repetitions int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stage = stage
	d.layout = l
	d.cue = NoCue
	d.cueOnly = false
	d.running = false
	d.repetitions = repetitions
	if l != nil {
		d.seq = NewSequence(l.CodeLen())
	} else {
		d.seq = nil
	}
}

// SetCue marks the currently cued target, carried in single-target epochs.
func (d *Driver) SetCue(target int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cue = target
}

func (d *Driver) ClearCue() {
	d.SetCue(NoCue)
}

// SetCueOnly restricts visual updates to the cued target, used by the
// active-only calibration mode where non-cued targets stay hidden.
func (d *Driver) SetCueOnly(on bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cueOnly = on
}

// Run flips the run flag on. The next tick starts rendering and emitting
// epochs from the current frame position.
func (d *Driver) Run() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.running = true
}

// Halt flips the run flag off. Ticks become no-ops until the next Run.
func (d *Driver) Halt() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.running = false
}

// ResetSequence restores the frame counter to its start position; cycle
// counting for the calibration stop condition begins anew.
func (d *Driver) ResetSequence() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seq != nil {
		d.seq.Reset()
	}
}

// Tick is invoked by the fixed-rate source. While the run flag is down, or no
// layout is active, it is a no-op with zero side effects.
func (d *Driver) Tick(t TickInfo) {
	observability.TicksTotal.Inc()

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running || d.layout == nil || d.layout.Len() == 0 || d.seq == nil {
		return
	}
	d.ticks++

	if t.Rate > 0 && t.Elapsed > 0 {
		period := time.Duration(float64(time.Second) / t.Rate)
		if t.Elapsed > period+period/2 {
			observability.LateTicksTotal.Inc()
			log.Warn().
				Dur("elapsed", t.Elapsed).
				Dur("period", period).
				Msg("stim: late tick, display may have dropped a frame")
		}
	}

	idx := d.seq.Index()

	// Exactly one epoch per running tick, published under the driver mutex
	// so epochs leave in tick order.
	if err := d.bus.Event(EventEpoch, d.epoch(idx)); err != nil {
		log.Error().Err(err).Int("index", idx).Msg("stim: failed to emit epoch")
	}
	d.epochs++
	observability.EpochsTotal.Inc()

	for _, tgt := range d.layout.Targets() {
		if d.cueOnly && tgt.Index != d.cue {
			continue
		}
		state := model.VisualOff
		if tgt.Pattern.Bit(idx) == 1 {
			state = model.VisualOn
		}
		d.sink.SetState(tgt.Index, state)
	}

	d.seq.Next()

	// Stop condition is checked after advancing so the last repetition is
	// fully rendered before the done signal fires.
	if d.stage == model.StageCalibration && d.repetitions > 0 && d.seq.Cycle() >= d.repetitions {
		d.running = false
		d.sink.Reset()
		d.hub.Raise(signals.Done, nil)
	}
}

// epoch builds the per-tick metadata record. Single-target stages carry the
// cue and its bit; multi-target stages carry the bit of every target in
// layout order.
func (d *Driver) epoch(idx int) model.Epoch {
	if d.stage == model.StageCalibration || d.stage == model.StageTaskCue {
		cue := d.cue
		bit := 0
		if tgt, ok := d.layout.Target(cue); ok {
			bit = tgt.Pattern.Bit(idx)
		}
		return model.Epoch{Index: idx, Cue: &cue, Bit: &bit}
	}

	bits := make([]int, 0, d.layout.Len())
	for _, tgt := range d.layout.Targets() {
		bits = append(bits, tgt.Pattern.Bit(idx))
	}
	return model.Epoch{Index: idx, Bits: bits}
}

// Status is a point-in-time view of the driver for the monitor server.
type Status struct {
	Running bool        `json:"running"`
	Stage   model.Stage `json:"stage"`
	Cue     int         `json:"cue"`
	Index   int         `json:"index"`
	Cycle   int         `json:"cycle"`
	Ticks   uint64      `json:"ticks"`
	Epochs  uint64      `json:"epochs"`
}

func (d *Driver) Snapshot() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	st := Status{
		Running: d.running,
		Stage:   d.stage,
		Cue:     d.cue,
		Ticks:   d.ticks,
		Epochs:  d.epochs,
	}
	if d.seq != nil {
		st.Index = d.seq.Index()
		st.Cycle = d.seq.Cycle()
	}
	return st
}
