package session

import (
	"context"

	"github.com/samber/lo"

	"bvep.dev/stimulus-next/internal/model"
)

// sequenceTask types each configured target sequence. With a reserved
// backspace target the attempt keeps an explicit predicted list that the
// backspace truncates; otherwise a simple expected pointer advances on match.
func (o *Orchestrator) sequenceTask(ctx context.Context) error {
	o.setPhase("task-sequence")
	l := o.reg.Get(model.GroupTask)

	o.driver.Activate(model.StageTaskSequence, l, 0)
	o.emit(EventTaskBegins, taskBeginsPayload{Task: TaskSequence})

	for _, seq := range o.proto.Task.Sequence.Sequences {
		o.score.Block()
		var err error
		if o.proto.Task.Sequence.Backspace >= 0 {
			err = o.typeSequenceBackspace(ctx, seq)
		} else {
			err = o.typeSequenceStrict(ctx, seq)
		}
		if err != nil {
			return err
		}
	}

	o.emit(EventTaskEnds, taskEndsPayload{Score: o.score.Stats()})
	return nil
}

// typeSequenceStrict advances an expected pointer only on a matching
// prediction and terminates when the pointer exhausts the sequence.
func (o *Orchestrator) typeSequenceStrict(ctx context.Context, seq []int) error {
	pos := 0
	o.renderStrip(len(seq), pos)

	for pos < len(seq) {
		expected := seq[pos]

		pred, err := o.attempt(ctx, expected, len(seq))
		if err != nil {
			return err
		}
		if pred == nil {
			continue // rejected attempt, unscored
		}

		hit := pred.Target == expected
		if hit {
			pos++
		}
		o.recordTrial(hit, pred.Frames)
		o.renderStrip(len(seq), pos)
		if err := o.flashOutcome(ctx, pred.Target, hit); err != nil {
			return err
		}
	}
	return nil
}

// typeSequenceBackspace keeps the explicit predicted list. The expected
// target is the sequence entry at the first divergence point, or the
// backspace itself while the list diverges; termination is exact equality
// with the target sequence.
func (o *Orchestrator) typeSequenceBackspace(ctx context.Context, seq []int) error {
	backspace := o.proto.Task.Sequence.Backspace
	preds := make([]int, 0, len(seq))
	o.renderStripPreds(preds, seq)

	for !equalInts(preds, seq) {
		div := divergence(preds, seq)
		expected := backspace
		if div == len(preds) {
			expected = seq[div]
		}

		pred, err := o.attempt(ctx, expected, len(seq))
		if err != nil {
			return err
		}
		if pred == nil {
			continue
		}

		if pred.Target == backspace {
			preds = truncateBackspace(preds)
		} else {
			preds = append(preds, pred.Target)
		}

		hit := pred.Target == expected
		o.recordTrial(hit, pred.Frames)
		o.renderStripPreds(preds, seq)
		if err := o.flashOutcome(ctx, pred.Target, hit); err != nil {
			return err
		}
	}
	return nil
}

// attempt runs one prediction round: optional cue of the expected target,
// run until the classifier decides, halt. A rejected attempt (sentinel
// target) flashes the strip error indication, resets the frame counter and
// returns nil without scoring.
func (o *Orchestrator) attempt(ctx context.Context, expected, stripLen int) (*model.Prediction, error) {
	timing := o.proto.Task.Timing

	if err := o.pause(ctx, timing.Rest()); err != nil {
		return nil, err
	}
	if o.proto.Task.Sequence.CueExpected {
		if err := o.cue(ctx, expected, timing.CueOn(), timing.CueOff()); err != nil {
			return nil, err
		}
	}

	o.driver.Run()
	pred, err := o.waitPredict(ctx)
	o.driver.Halt()
	if err != nil {
		return nil, err
	}

	if pred.Target == model.RejectTarget {
		if err := o.flashStripError(ctx, stripLen); err != nil {
			return nil, err
		}
		o.driver.ResetSequence()
		return nil, nil
	}
	return &pred, nil
}

// renderStrip paints the feedback strip from an expected pointer: matched
// positions succeed, the current position is active.
func (o *Orchestrator) renderStrip(total, pos int) {
	o.sink.Strip(lo.Times(total, func(i int) model.VisualState {
		switch {
		case i < pos:
			return model.VisualSuccess
		case i == pos:
			return model.VisualActive
		default:
			return model.VisualOff
		}
	}))
}

// renderStripPreds paints the strip from the predicted list: the matched
// prefix succeeds and the first divergent or next position is active.
func (o *Orchestrator) renderStripPreds(preds, seq []int) {
	o.renderStrip(len(seq), divergence(preds, seq))
}

// flashStripError marks every strip position with the error indication for
// the configured duration. The caller repaints the strip on the next attempt.
func (o *Orchestrator) flashStripError(ctx context.Context, total int) error {
	o.sink.Strip(lo.Times(total, func(int) model.VisualState { return model.VisualError }))
	if err := o.pause(ctx, o.proto.Task.Timing.Error()); err != nil {
		return err
	}
	o.sink.Strip(lo.Times(total, func(int) model.VisualState { return model.VisualOff }))
	return nil
}
