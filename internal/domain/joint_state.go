package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// NumJoints is the fixed arm joint count carried by every JointState.
const NumJoints = 6

// ErrJointCount is returned when a variable-length collection does not hold exactly NumJoints values.
var ErrJointCount = errors.New("domain: expected 6 joint values")

// ErrNonNumeric is returned when a record field cannot be read as a float64.
var ErrNonNumeric = errors.New("domain: non-numeric field")

// now is swapped in tests.
var now = time.Now

// JointState is one captured arm pose: six joint angles in radians, a normalised
// gripper opening and the capture time in Unix seconds.
//
// It is a value type; copying it never aliases the joint array.
type JointState struct {
	Joints    [NumJoints]float64
	Gripper   float64
	Timestamp float64
}

// NowSeconds returns the current wall-clock time in Unix seconds.
func NowSeconds() float64 {
	return toSeconds(now())
}

func toSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// New builds a JointState, stamping the current time when timestamp is zero.
func New(joints [NumJoints]float64, gripper, timestamp float64) JointState {
	if timestamp == 0 {
		timestamp = NowSeconds()
	}
	return JointState{Joints: joints, Gripper: gripper, Timestamp: timestamp}
}

// FromSlice builds a JointState from exactly six joint values.
func FromSlice(values []float64, gripper, timestamp float64) (JointState, error) {
	if len(values) != NumJoints {
		return JointState{}, fmt.Errorf("%w, got %d", ErrJointCount, len(values))
	}
	var joints [NumJoints]float64
	copy(joints[:], values)
	return New(joints, gripper, timestamp), nil
}

// FromMap builds a JointState from a decoded record keyed joint_0..joint_5,
// gripper and timestamp. Missing joints and gripper default to zero, a missing
// or zero timestamp defaults to now.
func FromMap(data map[string]any) (JointState, error) {
	var (
		js  JointState
		err error
	)
	for i := range NumJoints {
		if js.Joints[i], err = lookupFloat(data, JointName(i), 0); err != nil {
			return JointState{}, err
		}
	}
	if js.Gripper, err = lookupFloat(data, "gripper", 0); err != nil {
		return JointState{}, err
	}
	if js.Timestamp, err = lookupFloat(data, "timestamp", 0); err != nil {
		return JointState{}, err
	}
	if js.Timestamp == 0 {
		js.Timestamp = NowSeconds()
	}
	return js, nil
}

func lookupFloat(data map[string]any, key string, def float64) (float64, error) {
	raw, ok := data[key]
	if !ok || raw == nil {
		return def, nil
	}
	v, ok := ToFloat(raw)
	if !ok {
		return 0, fmt.Errorf("%w: %s=%v (%T)", ErrNonNumeric, key, raw, raw)
	}
	return v, nil
}

// ToFloat converts the numeric types produced by the JSON and CBOR decoders.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// JointName returns the record key of joint i, e.g. "joint_3".
func JointName(i int) string {
	return "joint_" + strconv.Itoa(i)
}

// ToSlice returns the six joint values.
func (s JointState) ToSlice() []float64 {
	out := make([]float64, NumJoints)
	copy(out, s.Joints[:])
	return out
}

// ToFullSlice returns the joints followed by the gripper value.
func (s JointState) ToFullSlice() []float64 {
	return append(s.ToSlice(), s.Gripper)
}

// ToMap returns the modern record form of the state.
func (s JointState) ToMap() map[string]any {
	m := make(map[string]any, NumJoints+2)
	for i, v := range s.Joints {
		m[JointName(i)] = v
	}
	m["gripper"] = s.Gripper
	m["timestamp"] = s.Timestamp
	return m
}

// Copy returns an independent copy.
func (s JointState) Copy() JointState {
	return s
}

// ApplyJointValues returns a new state with the given joints, the receiver's
// gripper and a fresh timestamp.
func (s JointState) ApplyJointValues(values []float64) (JointState, error) {
	if len(values) != NumJoints {
		return JointState{}, fmt.Errorf("%w, got %d", ErrJointCount, len(values))
	}
	out := JointState{Gripper: s.Gripper, Timestamp: NowSeconds()}
	copy(out.Joints[:], values)
	return out, nil
}

// Time converts the capture timestamp to a time.Time.
func (s JointState) Time() time.Time {
	sec, frac := math.Modf(s.Timestamp)
	return time.Unix(int64(sec), int64(frac*float64(time.Second)))
}

// Age is the time elapsed since capture.
func (s JointState) Age() time.Duration {
	return time.Duration((NowSeconds() - s.Timestamp) * float64(time.Second))
}

func (s JointState) String() string {
	parts := make([]string, NumJoints)
	for i, v := range s.Joints {
		parts[i] = fmt.Sprintf("%6.3f", v)
	}
	return fmt.Sprintf("JointState([%s], gripper=%.3f, age=%.3fs)",
		strings.Join(parts, ", "), s.Gripper, s.Age().Seconds())
}
