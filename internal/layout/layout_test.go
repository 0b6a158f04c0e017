package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bvep.dev/stimulus-next/internal/model"
	"bvep.dev/stimulus-next/internal/pkg/errs"
)

func codes(t *testing.T, raw ...string) []model.BurstCode {
	t.Helper()
	out := make([]model.BurstCode, 0, len(raw))
	for _, r := range raw {
		c, err := model.ParseBurstCode(r)
		require.NoError(t, err)
		out = append(out, c)
	}
	return out
}

func TestLayoutNew(t *testing.T) {
	l, err := New(model.GroupTask, []string{"A", "B", "C"}, codes(t, "1010", "0101", "1100"))
	require.NoError(t, err)

	assert.Equal(t, model.GroupTask, l.Group())
	assert.Equal(t, 3, l.Len())
	assert.Equal(t, 4, l.CodeLen())

	tgt, ok := l.Target(1)
	require.True(t, ok)
	assert.Equal(t, 1, tgt.Index)
	assert.Equal(t, "B", tgt.Label)
	assert.Equal(t, "0101", tgt.Pattern.String())
}

func TestLayoutTargetOutOfRange(t *testing.T) {
	l, err := New(model.GroupTask, []string{"A"}, codes(t, "10"))
	require.NoError(t, err)

	_, ok := l.Target(-1)
	assert.False(t, ok)
	_, ok = l.Target(1)
	assert.False(t, ok)
}

func TestLayoutValidation(t *testing.T) {
	tests := []struct {
		name   string
		labels []string
		codes  []string
	}{
		{"no codes", []string{"A"}, nil},
		{"label shortage", []string{"A"}, []string{"10", "01"}},
		{"unequal code lengths", []string{"A", "B"}, []string{"10", "011"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(model.GroupCalibration, tt.labels, codes(t, tt.codes...))
			require.Error(t, err)
			assert.ErrorIs(t, err, errs.ErrConfiguration)
		})
	}
}

func TestRegistryGet(t *testing.T) {
	cal, err := New(model.GroupCalibration, []string{"A"}, codes(t, "10"))
	require.NoError(t, err)
	task, err := New(model.GroupTask, []string{"X", "Y"}, codes(t, "110", "011"))
	require.NoError(t, err)

	r := NewRegistry(cal, task)
	assert.Same(t, cal, r.Get(model.GroupCalibration))
	assert.Same(t, task, r.Get(model.GroupTask))
}
