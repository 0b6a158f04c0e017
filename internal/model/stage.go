package model

// Stage identifies a phase of the experiment protocol. Exactly one stage is
// active at any time; transitions are owned by the session orchestrator.
type Stage string

const (
	StageCalibration  Stage = "calibration"
	StageTaskCue      Stage = "task-cue"
	StageTaskSequence Stage = "task-sequence"
	StageRun          Stage = "run"
)

// Group selects which layout a stage flashes. Calibration uses its own code
// bank; all task stages share the task bank.
type Group string

const (
	GroupCalibration Group = "calibration"
	GroupTask        Group = "task"
)

// Group returns the layout group the stage draws its targets from.
func (s Stage) Group() Group {
	if s == StageCalibration {
		return GroupCalibration
	}
	return GroupTask
}
