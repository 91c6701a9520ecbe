package toolchain

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/qobs-build/qide/internal/msg"
)

var ErrUnavailableTarget = errors.New("target is not available")

const DefaultTarget = "release"

// Hook runs when its target becomes active.
type Hook func(tc *Toolchain) error

// Activation describes the outcome of SetTarget.
type Activation struct {
	Previous string
	Active   string
	Changed  bool
}

// Target is the active target name, or the default target before the first
// activation.
func (tc *Toolchain) Target() string {
	if tc.active == "" {
		return tc.defaultTarget
	}
	return tc.active
}

// Configured reports whether a target has been activated.
func (tc *Toolchain) Configured() bool { return tc.active != "" }

func (tc *Toolchain) DefaultTarget() string { return tc.defaultTarget }

func (tc *Toolchain) SetDefaultTarget(name string) {
	tc.defaultTarget = name
}

// SetAvailableTargets restricts which names SetTarget accepts. Duplicates
// are dropped; with no names every target is accepted.
func (tc *Toolchain) SetAvailableTargets(names ...string) {
	tc.available = tc.available[:0]
	for _, n := range names {
		if !slices.Contains(tc.available, n) {
			tc.available = append(tc.available, n)
		}
	}
}

// AvailableTargets lists the accepted names, default target first.
func (tc *Toolchain) AvailableTargets() []string {
	out := []string{tc.defaultTarget}
	for _, n := range tc.available {
		if n != tc.defaultTarget {
			out = append(out, n)
		}
	}
	return out
}

func (tc *Toolchain) IsAvailable(name string) bool {
	if name == "" {
		return false
	}
	return len(tc.available) == 0 || name == tc.defaultTarget || slices.Contains(tc.available, name)
}

// DeclareTargetHook registers fn for name, replacing any earlier hook.
func (tc *Toolchain) DeclareTargetHook(name string, fn Hook) {
	tc.hooks[name] = fn
}

// SetTarget activates name, hands it to every tool and runs its hook.
// An unavailable name is reported and leaves the active target alone.
// Re-activating the active target does nothing.
func (tc *Toolchain) SetTarget(name string) (Activation, error) {
	act := Activation{Previous: tc.Target(), Active: tc.Target()}
	if !tc.IsAvailable(name) {
		msg.Warn("target %q is not available, staying on %q (available: %s)",
			name, act.Previous, strings.Join(tc.AvailableTargets(), ", "))
		return act, fmt.Errorf("%w: %q", ErrUnavailableTarget, name)
	}
	if tc.active == name {
		return act, nil
	}

	tc.active = name
	for _, t := range tc.tools() {
		t.SetTarget(name)
	}
	act.Active, act.Changed = name, true

	if hook := tc.hooks[name]; hook != nil {
		if err := hook(tc); err != nil {
			return act, fmt.Errorf("target %q: %w", name, err)
		}
	}
	return act, nil
}
