package stim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bvep.dev/stimulus-next/internal/layout"
	"bvep.dev/stimulus-next/internal/model"
	"bvep.dev/stimulus-next/internal/signals"
)

type recordedEvent struct {
	name    string
	payload any
}

type fakeBus struct {
	events []recordedEvent
}

func (b *fakeBus) Event(name string, payload any) error {
	b.events = append(b.events, recordedEvent{name, payload})
	return nil
}

type stateChange struct {
	target int
	state  model.VisualState
}

type fakeSink struct {
	changes []stateChange
	resets  int
}

func (s *fakeSink) SetState(target int, state model.VisualState) {
	s.changes = append(s.changes, stateChange{target, state})
}

func (s *fakeSink) Strip(states []model.VisualState) {}

func (s *fakeSink) Reset() { s.resets++ }

func mustLayout(t *testing.T, group model.Group, codes ...string) *layout.Layout {
	t.Helper()
	parsed := make([]model.BurstCode, 0, len(codes))
	labels := make([]string, 0, len(codes))
	for i, c := range codes {
		bc, err := model.ParseBurstCode(c)
		require.NoError(t, err)
		parsed = append(parsed, bc)
		labels = append(labels, string(rune('A'+i)))
	}
	l, err := layout.New(group, labels, parsed)
	require.NoError(t, err)
	return l
}

func tick(d *Driver) {
	d.Tick(TickInfo{Scheduled: time.Now(), Actual: time.Now()})
}

func TestDriverIdleTickIsNoOp(t *testing.T) {
	bus := &fakeBus{}
	sink := &fakeSink{}
	d := NewDriver(bus, sink, signals.NewHub())

	// No layout at all.
	tick(d)

	// Layout active but run flag down.
	d.Activate(model.StageCalibration, mustLayout(t, model.GroupCalibration, "1010"), 0)
	tick(d)

	assert.Empty(t, bus.events, "idle ticks must not emit epochs")
	assert.Empty(t, sink.changes, "idle ticks must not touch the display")
	assert.Equal(t, uint64(0), d.Snapshot().Ticks)
}

func TestDriverEpochBits(t *testing.T) {
	bus := &fakeBus{}
	sink := &fakeSink{}
	d := NewDriver(bus, sink, signals.NewHub())

	d.Activate(model.StageCalibration, mustLayout(t, model.GroupCalibration, "1010"), 0)
	d.SetCue(0)
	d.Run()

	tick(d) // index 0, bit 1
	tick(d) // index 1, bit 0
	tick(d) // index 2, bit 1

	require.Len(t, bus.events, 3)
	want := []struct {
		index int
		bit   int
	}{{0, 1}, {1, 0}, {2, 1}}
	for i, ev := range bus.events {
		assert.Equal(t, EventEpoch, ev.name)
		ep, ok := ev.payload.(model.Epoch)
		require.True(t, ok)
		assert.Equal(t, want[i].index, ep.Index)
		require.NotNil(t, ep.Cue)
		assert.Equal(t, 0, *ep.Cue)
		require.NotNil(t, ep.Bit)
		assert.Equal(t, want[i].bit, *ep.Bit, "epoch %d", i)
		assert.Nil(t, ep.Bits, "single-target stages carry no bit vector")
	}
}

func TestDriverMultiTargetEpoch(t *testing.T) {
	bus := &fakeBus{}
	d := NewDriver(bus, &fakeSink{}, signals.NewHub())

	d.Activate(model.StageTaskSequence, mustLayout(t, model.GroupTask, "10", "01", "11"), 0)
	d.Run()
	tick(d)

	require.Len(t, bus.events, 1)
	ep, ok := bus.events[0].payload.(model.Epoch)
	require.True(t, ok)
	assert.Equal(t, 0, ep.Index)
	assert.Nil(t, ep.Cue)
	assert.Nil(t, ep.Bit)
	assert.Equal(t, []int{1, 0, 1}, ep.Bits)
}

func TestDriverVisualStates(t *testing.T) {
	sink := &fakeSink{}
	d := NewDriver(&fakeBus{}, sink, signals.NewHub())

	d.Activate(model.StageTaskCue, mustLayout(t, model.GroupTask, "10", "01"), 0)
	d.Run()
	tick(d) // index 0: target 0 on, target 1 off

	assert.Equal(t, []stateChange{
		{0, model.VisualOn},
		{1, model.VisualOff},
	}, sink.changes)
}

func TestDriverCueOnlySkipsOtherTargets(t *testing.T) {
	sink := &fakeSink{}
	d := NewDriver(&fakeBus{}, sink, signals.NewHub())

	d.Activate(model.StageCalibration, mustLayout(t, model.GroupCalibration, "11", "11"), 0)
	d.SetCue(1)
	d.SetCueOnly(true)
	d.Run()
	tick(d)

	assert.Equal(t, []stateChange{{1, model.VisualOn}}, sink.changes)
}

func TestDriverCalibrationStopsAfterRepetitions(t *testing.T) {
	bus := &fakeBus{}
	sink := &fakeSink{}
	hub := signals.NewHub()
	d := NewDriver(bus, sink, hub)

	const codeLen, repetitions = 4, 3
	d.Activate(model.StageCalibration, mustLayout(t, model.GroupCalibration, "1010"), repetitions)
	d.SetCue(0)
	d.Run()

	done := make(chan struct{})
	go func() {
		name, _, err := hub.Wait(context.Background(), signals.Done)
		assert.NoError(t, err)
		assert.Equal(t, signals.Done, name)
		close(done)
	}()
	// The hub drops raises with no pending wait; make sure the waiter is
	// registered before the stopping tick fires.
	time.Sleep(50 * time.Millisecond)

	for i := 0; i < codeLen*repetitions; i++ {
		assert.True(t, d.Snapshot().Running, "tick %d: driver must stay running", i)
		tick(d)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("done signal never raised")
	}

	assert.False(t, d.Snapshot().Running)
	assert.Len(t, bus.events, codeLen*repetitions, "exactly one epoch per running tick")
	assert.Equal(t, 1, sink.resets, "display cleared once at stop")

	// Further ticks are no-ops.
	tick(d)
	assert.Len(t, bus.events, codeLen*repetitions)
}

func TestDriverZeroRepetitionsNeverStops(t *testing.T) {
	d := NewDriver(&fakeBus{}, &fakeSink{}, signals.NewHub())
	d.Activate(model.StageCalibration, mustLayout(t, model.GroupCalibration, "10"), 0)
	d.Run()

	for i := 0; i < 20; i++ {
		tick(d)
	}
	assert.True(t, d.Snapshot().Running)
}

func TestDriverActivateResetsState(t *testing.T) {
	d := NewDriver(&fakeBus{}, &fakeSink{}, signals.NewHub())
	d.Activate(model.StageCalibration, mustLayout(t, model.GroupCalibration, "1010"), 2)
	d.SetCue(0)
	d.Run()
	tick(d)

	d.Activate(model.StageRun, mustLayout(t, model.GroupTask, "10", "01"), 0)
	st := d.Snapshot()
	assert.False(t, st.Running)
	assert.Equal(t, NoCue, st.Cue)
	assert.Equal(t, 0, st.Index, "frame counter recreated for the new layout")
	assert.Equal(t, model.StageRun, st.Stage)
}
