// Package protocol loads and validates the experiment protocol definition:
// burst code banks per stage group, timing durations, task enablement and
// the calibration schedule parameters. The protocol file is trusted input,
// but shape errors fail fast at load time with configuration errors instead
// of surfacing later inside the tick driver.
package protocol

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"bvep.dev/stimulus-next/internal/layout"
	"bvep.dev/stimulus-next/internal/model"
	"bvep.dev/stimulus-next/internal/pkg/errs"
)

// Protocol is the full experiment definition, one TOML file per session.
type Protocol struct {
	// RefreshHz is the design frame rate used to convert latency frames to
	// milliseconds in score statistics. It is a protocol constant, not the
	// measured display rate.
	RefreshHz float64 `toml:"refresh_hz" validate:"gt=0"`

	Calibration Calibration `toml:"calibration"`
	Task        Task        `toml:"task"`
	Run         Run         `toml:"run"`
}

type Calibration struct {
	Codes  []string `toml:"codes" validate:"min=1"`
	Labels []string `toml:"labels"`

	// Blocks is the total number of cued draws in the calibration schedule.
	Blocks int `toml:"blocks" validate:"min=1"`

	// Repetitions is the number of full code cycles rendered per draw before
	// the driver raises done.
	Repetitions int `toml:"repetitions" validate:"min=1"`

	// ActiveOnly hides every non-cued target while a draw is running.
	ActiveOnly bool `toml:"active_only"`

	Timing CalibrationTiming `toml:"timing"`
}

type CalibrationTiming struct {
	FixationMs int `toml:"fixation_ms"`
	RestMs     int `toml:"rest_ms"`
	CueOnMs    int `toml:"cue_on_ms"`
	CueOffMs   int `toml:"cue_off_ms"`
	PauseMs    int `toml:"pause_ms"`
}

func (t CalibrationTiming) Fixation() time.Duration { return ms(t.FixationMs) }
func (t CalibrationTiming) Rest() time.Duration     { return ms(t.RestMs) }
func (t CalibrationTiming) CueOn() time.Duration    { return ms(t.CueOnMs) }
func (t CalibrationTiming) CueOff() time.Duration   { return ms(t.CueOffMs) }
func (t CalibrationTiming) Pause() time.Duration    { return ms(t.PauseMs) }

type Task struct {
	Codes  []string `toml:"codes" validate:"min=1"`
	Labels []string `toml:"labels"`

	Cue      CueTask      `toml:"cue"`
	Sequence SequenceTask `toml:"sequence"`
	Timing   TaskTiming   `toml:"timing"`
}

type CueTask struct {
	Enabled bool `toml:"enabled"`

	// Targets is the literal cue list. When empty, Random draws are used.
	Targets []int `toml:"targets"`

	// Random is the number of random draws when Targets is empty. Repeats
	// are allowed.
	Random int `toml:"random" validate:"min=0"`
}

type SequenceTask struct {
	Enabled bool `toml:"enabled"`

	// Sequences are the target index sequences to type, in order.
	Sequences [][]int `toml:"sequences"`

	// Backspace is the reserved target index that deletes the last two
	// entries of the predicted list. Negative disables the backspace
	// variant.
	Backspace int `toml:"backspace"`

	// CueExpected highlights the next expected target before each attempt.
	CueExpected bool `toml:"cue_expected"`
}

type TaskTiming struct {
	RestMs    int `toml:"rest_ms"`
	CueOnMs   int `toml:"cue_on_ms"`
	CueOffMs  int `toml:"cue_off_ms"`
	SuccessMs int `toml:"success_ms"`
	FailureMs int `toml:"failure_ms"`
	LockOnMs  int `toml:"lock_on_ms"`
	LockOffMs int `toml:"lock_off_ms"`
	ErrorMs   int `toml:"error_ms"`
}

func (t TaskTiming) Rest() time.Duration    { return ms(t.RestMs) }
func (t TaskTiming) CueOn() time.Duration   { return ms(t.CueOnMs) }
func (t TaskTiming) CueOff() time.Duration  { return ms(t.CueOffMs) }
func (t TaskTiming) Success() time.Duration { return ms(t.SuccessMs) }
func (t TaskTiming) Failure() time.Duration { return ms(t.FailureMs) }
func (t TaskTiming) LockOn() time.Duration  { return ms(t.LockOnMs) }
func (t TaskTiming) LockOff() time.Duration { return ms(t.LockOffMs) }
func (t TaskTiming) Error() time.Duration   { return ms(t.ErrorMs) }

type Run struct {
	Enabled bool `toml:"enabled"`

	// PrevKey restarts calibration from scratch; NextKey ends the session.
	PrevKey string `toml:"prev_key"`
	NextKey string `toml:"next_key"`
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// Load reads, defaults and validates a protocol file.
func Load(path string) (*Protocol, error) {
	var p Protocol
	if _, err := toml.DecodeFile(path, &p); err != nil {
		return nil, errors.Wrapf(err, "protocol: failed to decode %s", path)
	}
	p.applyDefaults()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Protocol) applyDefaults() {
	if p.RefreshHz == 0 {
		p.RefreshHz = 60
	}
	if len(p.Calibration.Labels) == 0 {
		p.Calibration.Labels = defaultLabels(len(p.Calibration.Codes))
	}
	if len(p.Task.Labels) == 0 {
		p.Task.Labels = defaultLabels(len(p.Task.Codes))
	}
	if p.Calibration.Timing == (CalibrationTiming{}) {
		p.Calibration.Timing = CalibrationTiming{
			FixationMs: 3000, RestMs: 2000, CueOnMs: 1500, CueOffMs: 500, PauseMs: 1000,
		}
	}
	if p.Task.Timing == (TaskTiming{}) {
		p.Task.Timing = TaskTiming{
			RestMs: 2000, CueOnMs: 1500, CueOffMs: 500,
			SuccessMs: 1000, FailureMs: 1000, LockOnMs: 1500, LockOffMs: 500, ErrorMs: 1000,
		}
	}
	if p.Run.PrevKey == "" {
		p.Run.PrevKey = "ArrowLeft"
	}
	if p.Run.NextKey == "" {
		p.Run.NextKey = "ArrowRight"
	}
}

// Validate performs struct-tag validation plus the cross-field checks tags
// cannot express. All failures are configuration errors.
func (p *Protocol) Validate() error {
	if err := validator.New().Struct(p); err != nil {
		return errs.NewConfiguration("protocol: %s", err.Error())
	}

	if _, err := p.Layouts(); err != nil {
		return err
	}

	taskLen := len(p.Task.Codes)
	for i, t := range p.Task.Cue.Targets {
		if t < 0 || t >= taskLen {
			return errs.NewConfiguration("protocol: cue target %d (entry %d) out of range [0,%d)", t, i, taskLen)
		}
	}
	if p.Task.Cue.Enabled && len(p.Task.Cue.Targets) == 0 && p.Task.Cue.Random == 0 {
		return errs.NewConfiguration("protocol: cue task enabled with neither a target list nor a random draw count")
	}

	if p.Task.Sequence.Enabled {
		if len(p.Task.Sequence.Sequences) == 0 {
			return errs.NewConfiguration("protocol: sequence task enabled without sequences")
		}
		bs := p.Task.Sequence.Backspace
		if bs >= taskLen {
			return errs.NewConfiguration("protocol: backspace index %d out of range [0,%d)", bs, taskLen)
		}
		for si, seq := range p.Task.Sequence.Sequences {
			if len(seq) == 0 {
				return errs.NewConfiguration("protocol: sequence %d is empty", si)
			}
			for pi, t := range seq {
				if t < 0 || t >= taskLen {
					return errs.NewConfiguration("protocol: sequence %d position %d references unknown target %d", si, pi, t)
				}
				if bs >= 0 && t == bs {
					return errs.NewConfiguration("protocol: sequence %d position %d uses the reserved backspace target %d", si, pi, t)
				}
			}
		}
	}

	return nil
}

// Layouts parses the code banks and assembles the per-group target
// registries.
func (p *Protocol) Layouts() (*layout.Registry, error) {
	calib, err := buildLayout(model.GroupCalibration, p.Calibration.Labels, p.Calibration.Codes)
	if err != nil {
		return nil, err
	}
	task, err := buildLayout(model.GroupTask, p.Task.Labels, p.Task.Codes)
	if err != nil {
		return nil, err
	}
	return layout.NewRegistry(calib, task), nil
}

func buildLayout(group model.Group, labels, raw []string) (*layout.Layout, error) {
	codes := make([]model.BurstCode, 0, len(raw))
	for i, s := range raw {
		code, err := model.ParseBurstCode(s)
		if err != nil {
			return nil, errs.NewConfiguration("protocol: layout %q code %d: %s", group, i, err.Error())
		}
		codes = append(codes, code)
	}
	return layout.New(group, labels, codes)
}

func defaultLabels(n int) []string {
	labels := make([]string, n)
	for i := range labels {
		labels[i] = fmt.Sprintf("T%d", i)
	}
	return labels
}
