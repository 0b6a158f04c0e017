// Package layout holds the static target registries built once at session
// start: which targets exist per stage group, their labels and burst codes.
package layout

import (
	"bvep.dev/stimulus-next/internal/model"
	"bvep.dev/stimulus-next/internal/pkg/errs"
)

// Layout is the ordered target collection of one stage group. Immutable after
// construction.
type Layout struct {
	group   model.Group
	targets []model.Target
	codeLen int
}

// New validates and assembles a layout. All codes within a layout must share
// one length, and every code needs a display label; both are construction-time
// configuration errors, never checked again inside the tick driver.
func New(group model.Group, labels []string, codes []model.BurstCode) (*Layout, error) {
	if len(codes) == 0 {
		return nil, errs.NewConfiguration("layout %q: no burst codes configured", group)
	}
	if len(labels) < len(codes) {
		return nil, errs.NewConfiguration(
			"layout %q: %d display labels for %d codes", group, len(labels), len(codes))
	}

	codeLen := codes[0].Len()
	targets := make([]model.Target, 0, len(codes))
	for i, code := range codes {
		if code.Len() != codeLen {
			return nil, errs.NewConfiguration(
				"layout %q: code %d has length %d, want %d (all codes in one stage must share a length)",
				group, i, code.Len(), codeLen)
		}
		targets = append(targets, model.Target{
			Index:   i,
			Label:   labels[i],
			Pattern: code,
		})
	}

	return &Layout{group: group, targets: targets, codeLen: codeLen}, nil
}

func (l *Layout) Group() model.Group { return l.group }
func (l *Layout) Len() int           { return len(l.targets) }
func (l *Layout) CodeLen() int       { return l.codeLen }

// Targets returns the ordered target list. Callers must not mutate it.
func (l *Layout) Targets() []model.Target { return l.targets }

// Target looks a target up by index.
func (l *Layout) Target(i int) (model.Target, bool) {
	if i < 0 || i >= len(l.targets) {
		return model.Target{}, false
	}
	return l.targets[i], true
}

// Registry maps stage groups to their layouts.
type Registry struct {
	layouts map[model.Group]*Layout
}

func NewRegistry(calibration, task *Layout) *Registry {
	return &Registry{layouts: map[model.Group]*Layout{
		model.GroupCalibration: calibration,
		model.GroupTask:        task,
	}}
}

// Get returns the layout for a stage group.
func (r *Registry) Get(group model.Group) *Layout {
	return r.layouts[group]
}
