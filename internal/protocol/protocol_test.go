package protocol

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bvep.dev/stimulus-next/internal/model"
	"bvep.dev/stimulus-next/internal/pkg/errs"
)

const validProtocol = `
refresh_hz = 60

[calibration]
codes = ["1010", "0110"]
labels = ["Left", "Right"]
blocks = 6
repetitions = 5
active_only = true

[calibration.timing]
fixation_ms = 100
rest_ms = 50
cue_on_ms = 40
cue_off_ms = 10
pause_ms = 20

[task]
codes = ["110100", "011010", "101001"]

[task.cue]
enabled = true
targets = [0, 2, 1]

[task.sequence]
enabled = true
sequences = [[0, 1], [1, 0, 1]]
backspace = 2
cue_expected = true

[run]
enabled = true
prev_key = "ArrowLeft"
next_key = "ArrowRight"
`

func writeProtocol(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "protocol.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadValidProtocol(t *testing.T) {
	p, err := Load(writeProtocol(t, validProtocol))
	require.NoError(t, err)

	assert.Equal(t, 60.0, p.RefreshHz)
	assert.Equal(t, 6, p.Calibration.Blocks)
	assert.Equal(t, 5, p.Calibration.Repetitions)
	assert.True(t, p.Calibration.ActiveOnly)
	assert.Equal(t, 100*time.Millisecond, p.Calibration.Timing.Fixation())
	assert.Equal(t, []int{0, 2, 1}, p.Task.Cue.Targets)
	assert.Equal(t, 2, p.Task.Sequence.Backspace)
	assert.True(t, p.Task.Sequence.CueExpected)
	assert.Equal(t, "ArrowRight", p.Run.NextKey)
}

func TestLoadAppliesDefaults(t *testing.T) {
	p, err := Load(writeProtocol(t, `
[calibration]
codes = ["10"]
blocks = 1
repetitions = 1

[task]
codes = ["10", "01"]

[task.sequence]
backspace = -1
`))
	require.NoError(t, err)

	assert.Equal(t, 60.0, p.RefreshHz)
	assert.Equal(t, []string{"T0"}, p.Calibration.Labels)
	assert.Equal(t, []string{"T0", "T1"}, p.Task.Labels)
	assert.Equal(t, 3*time.Second, p.Calibration.Timing.Fixation())
	assert.Equal(t, 2*time.Second, p.Task.Timing.Rest())
	assert.Equal(t, "ArrowLeft", p.Run.PrevKey)
	assert.Equal(t, "ArrowRight", p.Run.NextKey)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no calibration codes", `
[calibration]
blocks = 1
repetitions = 1
[task]
codes = ["10"]
`},
		{"zero blocks", `
[calibration]
codes = ["10"]
blocks = 0
repetitions = 1
[task]
codes = ["10"]
`},
		{"unequal code lengths", `
[calibration]
codes = ["10", "011"]
blocks = 1
repetitions = 1
[task]
codes = ["10"]
`},
		{"non-binary code", `
[calibration]
codes = ["1020"]
blocks = 1
repetitions = 1
[task]
codes = ["10"]
`},
		{"cue target out of range", `
[calibration]
codes = ["10"]
blocks = 1
repetitions = 1
[task]
codes = ["10", "01"]
[task.cue]
enabled = true
targets = [2]
`},
		{"cue enabled with nothing to draw", `
[calibration]
codes = ["10"]
blocks = 1
repetitions = 1
[task]
codes = ["10", "01"]
[task.cue]
enabled = true
`},
		{"sequence task without sequences", `
[calibration]
codes = ["10"]
blocks = 1
repetitions = 1
[task]
codes = ["10", "01"]
[task.sequence]
enabled = true
backspace = -1
`},
		{"empty sequence", `
[calibration]
codes = ["10"]
blocks = 1
repetitions = 1
[task]
codes = ["10", "01"]
[task.sequence]
enabled = true
sequences = [[]]
backspace = -1
`},
		{"sequence references backspace target", `
[calibration]
codes = ["10"]
blocks = 1
repetitions = 1
[task]
codes = ["10", "01", "11"]
[task.sequence]
enabled = true
sequences = [[0, 2]]
backspace = 2
`},
		{"backspace out of range", `
[calibration]
codes = ["10"]
blocks = 1
repetitions = 1
[task]
codes = ["10", "01"]
[task.sequence]
enabled = true
sequences = [[0]]
backspace = 5
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeProtocol(t, tt.body))
			require.Error(t, err)
			assert.ErrorIs(t, err, errs.ErrConfiguration)
		})
	}
}

func TestLayouts(t *testing.T) {
	p, err := Load(writeProtocol(t, validProtocol))
	require.NoError(t, err)

	reg, err := p.Layouts()
	require.NoError(t, err)

	calib := reg.Get(model.GroupCalibration)
	require.NotNil(t, calib)
	assert.Equal(t, 2, calib.Len())
	assert.Equal(t, 4, calib.CodeLen())

	task := reg.Get(model.GroupTask)
	require.NotNil(t, task)
	assert.Equal(t, 3, task.Len())
	assert.Equal(t, 6, task.CodeLen())

	tgt, ok := calib.Target(0)
	require.True(t, ok)
	assert.Equal(t, "Left", tgt.Label)
}
