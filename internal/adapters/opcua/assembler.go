package opcua

import (
	"time"

	"github.com/gopcua/opcua/ua"

	"github.com/Servo7/robot-comm/internal/domain"
)

// assembler folds per-node value changes into whole joint states. Nothing
// is emitted until every joint node has reported at least once.
type assembler struct {
	fields  map[uint32]field
	current domain.JointState
	seen    [domain.NumJoints]bool
	latest  time.Time
}

func newAssembler(fields []field) *assembler {
	a := &assembler{fields: make(map[uint32]field, len(fields))}
	for i, f := range fields {
		a.fields[uint32(i+1)] = f
	}
	return a
}

// apply merges one data change notification and reports whether a complete
// state is available. Unknown handles and non-numeric values are returned as
// skipped node ids.
func (a *assembler) apply(data *ua.DataChangeNotification) (changed bool, skipped []string) {
	for _, item := range data.MonitoredItems {
		if item == nil || item.Value == nil {
			continue
		}
		f, ok := a.fields[item.ClientHandle]
		if !ok {
			continue
		}
		v, ok := variantToFloat(item.Value.Value)
		if !ok {
			skipped = append(skipped, f.nodeID)
			continue
		}

		if f.joint < 0 {
			a.current.Gripper = v
		} else {
			a.current.Joints[f.joint] = v
			a.seen[f.joint] = true
		}
		changed = true

		ts := item.Value.SourceTimestamp
		if ts.IsZero() {
			ts = item.Value.ServerTimestamp
		}
		if ts.After(a.latest) {
			a.latest = ts
		}
	}
	return changed, skipped
}

func (a *assembler) ready() bool {
	for _, ok := range a.seen {
		if !ok {
			return false
		}
	}
	return true
}

// state returns a copy of the assembled state stamped with the newest
// source timestamp seen, or now when the server sent none.
func (a *assembler) state() domain.JointState {
	s := a.current.Copy()
	if a.latest.IsZero() {
		s.Timestamp = domain.NowSeconds()
	} else {
		s.Timestamp = float64(a.latest.UnixNano()) / float64(time.Second)
	}
	return s
}

func variantToFloat(v *ua.Variant) (float64, bool) {
	if v == nil {
		return 0, false
	}

	switch val := v.Value().(type) {
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case int8:
		return float64(val), true
	case uint8:
		return float64(val), true
	case int16:
		return float64(val), true
	case uint16:
		return float64(val), true
	case int32:
		return float64(val), true
	case uint32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint64:
		return float64(val), true
	default:
		return 0, false
	}
}
