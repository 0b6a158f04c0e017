package session

import "bvep.dev/stimulus-next/internal/score"

// Outbound event names, the narrow contract with the transport layer.
const (
	EventSessionBegins     = "session_begins"
	EventSessionEnds       = "session_ends"
	EventCalibrationBegins = "calibration_begins"
	EventCalibrationEnds   = "calibration_ends"
	EventCue               = "cue"
	EventTaskBegins        = "task_begins"
	EventTaskEnds          = "task_ends"
	EventRunBegins         = "run_begins"
	EventRunEnds           = "run_ends"
	EventReset             = "reset"
)

// Task names carried by task_begins.
const (
	TaskCue      = "cue"
	TaskSequence = "sequence"
)

type cuePayload struct {
	Target int `json:"target"`
}

type taskBeginsPayload struct {
	Task string `json:"task"`
}

type taskEndsPayload struct {
	Score score.Stats `json:"score"`
}
