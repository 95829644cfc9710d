// Package kinematics maps one arm's joint-space layout onto another's.
//
// A transform runs four strictly ordered stages: index mapping, a linear
// 6x6 matrix, additive offsets and, independently, the gripper
// scale/offset/clamp. Engines are immutable once built and safe for
// concurrent use.
package kinematics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/Servo7/robot-comm/internal/domain"
)

// MapEntry moves the value of source joint Src into destination joint Dst.
type MapEntry struct {
	Src int
	Dst int
}

// Config is the parsed transform section of the master configuration.
// The zero value is the identity transform.
type Config struct {
	// Mapping is applied in slice order, so later entries win on destination collisions.
	// Once any entry is configured, destinations not targeted by an entry are zero-filled.
	Mapping []MapEntry
	Matrix  [][]float64
	Offsets []float64
	// GripperScale and GripperOffset default to 1.0 and 0.0 when nil.
	GripperScale  *float64
	GripperOffset *float64
}

// Float returns a pointer to v, for the optional gripper fields.
func Float(v float64) *float64 { return &v }

// Engine is a compiled Config.
type Engine struct {
	mapping       []MapEntry
	matrix        *mat.Dense
	offsets       []float64
	gripperScale  float64
	gripperOffset float64
	warnings      []string
}

// NewEngine compiles cfg. Shape mismatches never fail: the affected stage is
// disabled and described in Warnings.
func NewEngine(cfg Config) *Engine {
	e := &Engine{gripperScale: 1, gripperOffset: 0}

	if len(cfg.Mapping) > 0 {
		e.mapping = make([]MapEntry, 0, len(cfg.Mapping))
		for _, m := range cfg.Mapping {
			if !validIndex(m.Src) || !validIndex(m.Dst) {
				e.warnf("joint mapping entry %d->%d is out of range [0,%d) and is ignored", m.Src, m.Dst, domain.NumJoints)
				continue
			}
			e.mapping = append(e.mapping, m)
		}
	}

	if len(cfg.Matrix) > 0 {
		e.matrix = compileMatrix(cfg.Matrix, e.warnf)
	}

	if cfg.Offsets != nil {
		if len(cfg.Offsets) == domain.NumJoints {
			e.offsets = append([]float64(nil), cfg.Offsets...)
		} else {
			e.warnf("joint offsets length %d doesn't match joint count %d; offsets stage skipped", len(cfg.Offsets), domain.NumJoints)
		}
	}

	if cfg.GripperScale != nil {
		e.gripperScale = *cfg.GripperScale
	}
	if cfg.GripperOffset != nil {
		e.gripperOffset = *cfg.GripperOffset
	}
	return e
}

func compileMatrix(rows [][]float64, warnf func(string, ...any)) *mat.Dense {
	if len(rows) != domain.NumJoints {
		warnf("transformation matrix shape (%d, ?) doesn't match joint count %d; matrix stage skipped", len(rows), domain.NumJoints)
		return nil
	}
	data := make([]float64, 0, domain.NumJoints*domain.NumJoints)
	for i, row := range rows {
		if len(row) != domain.NumJoints {
			warnf("transformation matrix row %d has %d columns, want %d; matrix stage skipped", i, len(row), domain.NumJoints)
			return nil
		}
		data = append(data, row...)
	}
	return mat.NewDense(domain.NumJoints, domain.NumJoints, data)
}

func validIndex(i int) bool { return i >= 0 && i < domain.NumJoints }

func (e *Engine) warnf(format string, args ...any) {
	e.warnings = append(e.warnings, fmt.Sprintf(format, args...))
}

// Warnings lists the stages disabled by configuration shape mismatches.
func (e *Engine) Warnings() []string {
	return append([]string(nil), e.warnings...)
}

// HasGripperTransform reports whether the gripper parameters differ from 1.0/0.0.
func (e *Engine) HasGripperTransform() bool {
	return e.gripperScale != 1 || e.gripperOffset != 0
}

// Joints runs the mapping, matrix and offsets stages.
func (e *Engine) Joints(in [domain.NumJoints]float64) [domain.NumJoints]float64 {
	out := in

	if e.mapping != nil {
		var mapped [domain.NumJoints]float64
		for _, m := range e.mapping {
			mapped[m.Dst] = in[m.Src]
		}
		out = mapped
	}

	if e.matrix != nil {
		var res mat.VecDense
		res.MulVec(e.matrix, mat.NewVecDense(domain.NumJoints, out[:]))
		for i := range out {
			out[i] = res.AtVec(i)
		}
	}

	if e.offsets != nil {
		for i, off := range e.offsets {
			out[i] += off
		}
	}
	return out
}

// Gripper applies scale then offset and clamps the result to [0, 1].
func (e *Engine) Gripper(g float64) float64 {
	return clamp01(g*e.gripperScale + e.gripperOffset)
}

// Transform returns the transformed joints and gripper of in. The input
// timestamp is not touched.
func (e *Engine) Transform(in domain.JointState) ([domain.NumJoints]float64, float64) {
	return e.Joints(in.Joints), e.Gripper(in.Gripper)
}

// Transform compiles cfg and applies it to in once.
func Transform(in domain.JointState, cfg Config) ([domain.NumJoints]float64, float64) {
	return NewEngine(cfg).Transform(in)
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
