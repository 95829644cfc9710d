package domain

// Record is the modern wire shape exchanged with leaders and followers.
type Record struct {
	Joint0    float64 `json:"joint_0" cbor:"joint_0"`
	Joint1    float64 `json:"joint_1" cbor:"joint_1"`
	Joint2    float64 `json:"joint_2" cbor:"joint_2"`
	Joint3    float64 `json:"joint_3" cbor:"joint_3"`
	Joint4    float64 `json:"joint_4" cbor:"joint_4"`
	Joint5    float64 `json:"joint_5" cbor:"joint_5"`
	Gripper   float64 `json:"gripper" cbor:"gripper"`
	Timestamp float64 `json:"timestamp" cbor:"timestamp"`
}

// LegacyRecord is the older shape: a bare list of joints plus a timestamp.
// It carries no gripper, which is read as 0.0.
type LegacyRecord struct {
	Joints    []float64 `json:"joints" cbor:"joints"`
	Timestamp float64   `json:"timestamp" cbor:"timestamp"`
}

// ToRecord converts a state to its modern wire form.
func (s JointState) ToRecord() Record {
	return Record{
		Joint0:    s.Joints[0],
		Joint1:    s.Joints[1],
		Joint2:    s.Joints[2],
		Joint3:    s.Joints[3],
		Joint4:    s.Joints[4],
		Joint5:    s.Joints[5],
		Gripper:   s.Gripper,
		Timestamp: s.Timestamp,
	}
}

// State converts a modern record; the timestamp is kept verbatim.
func (r Record) State() JointState {
	return JointState{
		Joints:    [NumJoints]float64{r.Joint0, r.Joint1, r.Joint2, r.Joint3, r.Joint4, r.Joint5},
		Gripper:   r.Gripper,
		Timestamp: r.Timestamp,
	}
}

// State normalises a legacy record. A zero timestamp is replaced with now.
func (r LegacyRecord) State() (JointState, error) {
	return FromSlice(r.Joints, 0, r.Timestamp)
}
