// Package session sequences the experiment protocol: fixation, calibration,
// the model-training wait, the cued task, the sequence-typing task and the
// free run. Each phase runs as straight-line code that suspends only on timed
// pauses and named hub signals; all shared stimulus state is mutated through
// the driver, whose mutex keeps phase resumptions and ticks atomic with
// respect to each other.
package session

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"bvep.dev/stimulus-next/internal/display"
	"bvep.dev/stimulus-next/internal/layout"
	"bvep.dev/stimulus-next/internal/model"
	"bvep.dev/stimulus-next/internal/protocol"
	"bvep.dev/stimulus-next/internal/score"
	"bvep.dev/stimulus-next/internal/signals"
)

// Bus is the outbound half of the session gateway.
type Bus interface {
	Event(name string, payload any) error
}

// Driver is the tick driver surface the orchestrator configures. Satisfied
// by *stim.Driver.
type Driver interface {
	Activate(stage model.Stage, l *layout.Layout, repetitions int)
	SetCue(target int)
	ClearCue()
	SetCueOnly(on bool)
	Run()
	Halt()
	ResetSequence()
}

// Orchestrator owns the session flow. One Orchestrator runs one session; its
// Run method is a single goroutine from start to teardown.
type Orchestrator struct {
	proto  *protocol.Protocol
	reg    *layout.Registry
	driver Driver
	bus    Bus
	hub    *signals.Hub
	sink   display.Sink
	score  *score.Score

	rng         *rand.Rand
	waitTimeout time.Duration

	mu    sync.Mutex
	phase string
}

type Option func(*Orchestrator)

// WithRand fixes the schedule/draw randomness, used by tests.
func WithRand(rng *rand.Rand) Option {
	return func(o *Orchestrator) { o.rng = rng }
}

// WithWaitTimeout bounds every signal wait. Waits are unbounded by default;
// a non-zero timeout turns a dead classifier pipeline into a session error
// instead of a hang.
func WithWaitTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.waitTimeout = d }
}

func New(proto *protocol.Protocol, reg *layout.Registry, driver Driver, bus Bus, hub *signals.Hub, sink display.Sink, sc *score.Score, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		proto:  proto,
		reg:    reg,
		driver: driver,
		bus:    bus,
		hub:    hub,
		sink:   sink,
		score:  sc,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Phase reports the currently running protocol phase for the monitor server.
func (o *Orchestrator) Phase() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

func (o *Orchestrator) setPhase(p string) {
	o.mu.Lock()
	o.phase = p
	o.mu.Unlock()
	log.Info().Str("phase", p).Msg("session: entering phase")
}

// Run drives the full protocol. A designated key during the free run loops
// back to calibration after a full reinit; the other key, or a disabled free
// run, ends the session.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.emit(EventSessionBegins, o.proto)
	defer o.emit(EventSessionEnds, nil)

	for {
		if err := o.fixation(ctx); err != nil {
			return err
		}
		if err := o.calibration(ctx); err != nil {
			return err
		}
		if err := o.waitReady(ctx); err != nil {
			return err
		}
		if o.proto.Task.Cue.Enabled {
			if err := o.cuedTask(ctx); err != nil {
				return err
			}
		}
		if o.proto.Task.Sequence.Enabled {
			if err := o.sequenceTask(ctx); err != nil {
				return err
			}
		}
		if !o.proto.Run.Enabled {
			return nil
		}

		key, err := o.freeRun(ctx)
		if err != nil {
			return err
		}
		if key == o.proto.Run.PrevKey {
			o.reinit()
			continue
		}
		return nil
	}
}

func (o *Orchestrator) fixation(ctx context.Context) error {
	o.setPhase("fixation")
	return o.pause(ctx, o.proto.Calibration.Timing.Fixation())
}

// calibration cues a balanced shuffled schedule of targets. Each draw flashes
// the cued code for the configured repetition count; the driver raises done
// when the count is reached, which is the suspension this phase resumes on.
func (o *Orchestrator) calibration(ctx context.Context) error {
	o.setPhase("calibration")
	l := o.reg.Get(model.GroupCalibration)
	timing := o.proto.Calibration.Timing

	o.driver.Activate(model.StageCalibration, l, o.proto.Calibration.Repetitions)
	o.emit(EventCalibrationBegins, nil)

	schedule := BuildSchedule(l.Len(), o.proto.Calibration.Blocks, o.rng)
	for _, target := range schedule {
		if err := o.pause(ctx, timing.Rest()); err != nil {
			return err
		}
		if err := o.cue(ctx, target, timing.CueOn(), timing.CueOff()); err != nil {
			return err
		}

		if o.proto.Calibration.ActiveOnly {
			for _, tgt := range l.Targets() {
				if tgt.Index != target {
					o.sink.SetState(tgt.Index, model.VisualHidden)
				}
			}
			o.driver.SetCueOnly(true)
		}

		o.driver.SetCue(target)
		o.driver.ResetSequence()
		o.driver.Run()

		if _, _, err := o.wait(ctx, signals.Done); err != nil {
			return err
		}
		// The driver has already dropped the run flag and turned all
		// visuals off when done fired.

		if o.proto.Calibration.ActiveOnly {
			o.driver.SetCueOnly(false)
			for _, tgt := range l.Targets() {
				if tgt.Index != target {
					o.sink.SetState(tgt.Index, model.VisualOff)
				}
			}
		}
		o.driver.ClearCue()
	}

	if err := o.pause(ctx, timing.Pause()); err != nil {
		return err
	}
	o.emit(EventCalibrationEnds, nil)
	o.driver.Activate(model.StageTaskCue, o.reg.Get(model.GroupTask), 0)
	return nil
}

// waitReady suspends until the backend reports the classification model is
// fitted.
func (o *Orchestrator) waitReady(ctx context.Context) error {
	o.setPhase("model-training-wait")
	_, _, err := o.wait(ctx, signals.Ready)
	if err != nil {
		return err
	}
	log.Info().Msg("session: classification model ready")
	return nil
}

// cuedTask runs a cued single-target block: each cue flashes all task codes
// until the classifier decides, then the decision is scored and flashed back.
func (o *Orchestrator) cuedTask(ctx context.Context) error {
	o.setPhase("task-cue")
	l := o.reg.Get(model.GroupTask)
	timing := o.proto.Task.Timing

	o.driver.Activate(model.StageTaskCue, l, 0)
	o.emit(EventTaskBegins, taskBeginsPayload{Task: TaskCue})
	o.score.Block()

	cues := o.proto.Task.Cue.Targets
	if len(cues) == 0 {
		cues = randomCues(o.proto.Task.Cue.Random, l.Len(), o.rng)
	}

	for _, target := range cues {
		if err := o.pause(ctx, timing.Rest()); err != nil {
			return err
		}
		if err := o.cue(ctx, target, timing.CueOn(), timing.CueOff()); err != nil {
			return err
		}

		o.driver.SetCue(target)
		o.driver.Run()

		pred, err := o.waitPredict(ctx)
		if err != nil {
			return err
		}
		o.driver.Halt()
		o.sink.Reset()
		o.driver.ClearCue()

		hit := pred.Target == target
		o.recordTrial(hit, pred.Frames)
		if err := o.flashOutcome(ctx, pred.Target, hit); err != nil {
			return err
		}
	}

	o.emit(EventTaskEnds, taskEndsPayload{Score: o.score.Stats()})
	return nil
}

// freeRun flashes every task code indefinitely, racing the classifier's
// decisions against the operator's keyboard. Returns the key that broke the
// loop.
func (o *Orchestrator) freeRun(ctx context.Context) (string, error) {
	o.setPhase("run")
	l := o.reg.Get(model.GroupTask)
	timing := o.proto.Task.Timing

	o.driver.Activate(model.StageRun, l, 0)
	o.emit(EventRunBegins, nil)

	for {
		o.driver.Run()

		name, payload, err := o.wait(ctx, signals.Predict, signals.Key)
		if err != nil {
			return "", err
		}
		o.driver.Halt()

		if name == signals.Key {
			key, _ := payload.(string)
			o.sink.Reset()
			o.emit(EventRunEnds, nil)
			return key, nil
		}

		pred, ok := payload.(model.Prediction)
		if !ok {
			log.Error().Interface("payload", payload).Msg("session: predict signal with unexpected payload; ignored")
			continue
		}
		if _, valid := l.Target(pred.Target); valid {
			o.sink.SetState(pred.Target, model.VisualLock)
			if err := o.pause(ctx, timing.LockOn()); err != nil {
				return "", err
			}
			o.sink.SetState(pred.Target, model.VisualOff)
			if err := o.pause(ctx, timing.LockOff()); err != nil {
				return "", err
			}
		}
		o.sink.Reset()
	}
}

// reinit restores the engine to its pre-calibration state: hub generation
// bumped so stale signals die, calibration layout re-activated, visuals
// cleared. The score is append-only and survives the restart.
func (o *Orchestrator) reinit() {
	o.hub.Reset()
	o.driver.Activate(model.StageCalibration, o.reg.Get(model.GroupCalibration), o.proto.Calibration.Repetitions)
	o.sink.Reset()
	o.emit(EventReset, nil)
	log.Info().Msg("session: reinitialized, restarting calibration")
}

// cue runs the shared highlight sequence: cue event, highlight, cue-on pause,
// highlight off, cue-off pause.
func (o *Orchestrator) cue(ctx context.Context, target int, on, off time.Duration) error {
	o.emit(EventCue, cuePayload{Target: target})
	o.sink.SetState(target, model.VisualCue)
	if err := o.pause(ctx, on); err != nil {
		return err
	}
	o.sink.SetState(target, model.VisualOff)
	return o.pause(ctx, off)
}

// flashOutcome color-flashes the predicted target with the success or
// failure state for its configured duration.
func (o *Orchestrator) flashOutcome(ctx context.Context, target int, hit bool) error {
	l := o.reg.Get(model.GroupTask)
	if _, valid := l.Target(target); !valid {
		return nil
	}
	state, dur := model.VisualFailure, o.proto.Task.Timing.Failure()
	if hit {
		state, dur = model.VisualSuccess, o.proto.Task.Timing.Success()
	}
	o.sink.SetState(target, state)
	if err := o.pause(ctx, dur); err != nil {
		return err
	}
	o.sink.SetState(target, model.VisualOff)
	return nil
}

// waitPredict suspends until the classifier decides and unwraps the payload.
func (o *Orchestrator) waitPredict(ctx context.Context) (model.Prediction, error) {
	_, payload, err := o.wait(ctx, signals.Predict)
	if err != nil {
		return model.Prediction{}, err
	}
	pred, ok := payload.(model.Prediction)
	if !ok {
		return model.Prediction{}, errors.Errorf("session: predict signal carried %T, want model.Prediction", payload)
	}
	return pred, nil
}

func (o *Orchestrator) wait(ctx context.Context, names ...string) (string, any, error) {
	if o.waitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.waitTimeout)
		defer cancel()
	}
	name, payload, err := o.hub.Wait(ctx, names...)
	if errors.Is(err, context.DeadlineExceeded) {
		return "", nil, errors.Wrapf(err, "session: timed out waiting for %v", names)
	}
	return name, payload, err
}

func (o *Orchestrator) pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) recordTrial(hit bool, frames int) {
	if err := o.score.Trial(hit, frames); err != nil {
		log.Error().Err(err).Msg("session: failed to record trial")
	}
}

// emit publishes an outbound event; emission failures are logged, never
// fatal, so a transport hiccup cannot abort a running stage.
func (o *Orchestrator) emit(name string, payload any) {
	if err := o.bus.Event(name, payload); err != nil {
		log.Error().Err(err).Str("event", name).Msg("session: failed to emit event")
	}
}
