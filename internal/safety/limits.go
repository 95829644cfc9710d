// Package safety gates transformed joint states against per-joint ranges.
package safety

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Servo7/robot-comm/internal/domain"
)

// Range is an inclusive [Min, Max] interval in radians.
type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Contains reports whether Min <= v <= Max. NaN is never contained.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// UnmarshalYAML fills a missing min or max with -pi or +pi.
func (r *Range) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Min *float64 `yaml:"min"`
		Max *float64 `yaml:"max"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	r.Min, r.Max = -math.Pi, math.Pi
	if raw.Min != nil {
		r.Min = *raw.Min
	}
	if raw.Max != nil {
		r.Max = *raw.Max
	}
	return nil
}

// LimitTable maps joint names ("joint_0".."joint_5") to admissible ranges.
// Joints absent from the table are unconstrained.
type LimitTable map[string]Range

// Validate checks the table itself: only known joint names and Min <= Max.
func (t LimitTable) Validate() error {
	for name, r := range t {
		idx, ok := JointIndex(name)
		if !ok {
			return fmt.Errorf("joint_limits: unknown joint %q", name)
		}
		if math.IsNaN(r.Min) || math.IsNaN(r.Max) || r.Min > r.Max {
			return fmt.Errorf("joint_limits: %s has invalid range [%v, %v]", domain.JointName(idx), r.Min, r.Max)
		}
	}
	return nil
}

// JointIndex parses "joint_N" for N in [0,6). Only the canonical spelling
// is accepted, since limits are looked up by domain.JointName.
func JointIndex(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, "joint_")
	if !ok {
		return 0, false
	}
	idx, err := strconv.Atoi(rest)
	if err != nil || idx < 0 || idx >= domain.NumJoints || domain.JointName(idx) != name {
		return 0, false
	}
	return idx, true
}

// Validate checks each joint of state against limits. ok is true iff
// violations is empty. A nil or empty table accepts everything.
func Validate(state domain.JointState, limits LimitTable) (ok bool, violations []string) {
	return ValidateJoints(state.Joints, limits)
}

// ValidateJoints is Validate on a bare joint vector.
func ValidateJoints(joints [domain.NumJoints]float64, limits LimitTable) (ok bool, violations []string) {
	for i, v := range joints {
		name := domain.JointName(i)
		r, constrained := limits[name]
		if !constrained || r.Contains(v) {
			continue
		}
		violations = append(violations,
			fmt.Sprintf("%s: value %.3f outside limits [%.3f, %.3f]", name, v, r.Min, r.Max))
	}
	return len(violations) == 0, violations
}
