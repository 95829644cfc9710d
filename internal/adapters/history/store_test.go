package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Servo7/robot-comm/internal/domain"
)

func states(ts ...float64) []*domain.JointState {
	out := make([]*domain.JointState, len(ts))
	for i, t := range ts {
		out[i] = &domain.JointState{Timestamp: t}
	}
	return out
}

func timestamps(in []domain.JointState) []float64 {
	out := make([]float64, len(in))
	for i, s := range in {
		out[i] = s.Timestamp
	}
	return out
}

func TestStoreEvictsOldest(t *testing.T) {
	s := NewStore(3)
	require.NoError(t, s.WriteBatch(states(1, 2)))
	require.NoError(t, s.WriteBatch(states(3, 4, 5)))

	assert.Equal(t, []float64{3, 4, 5}, timestamps(s.Snapshot()))
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, uint64(5), s.Total())

	latest, ok := s.Latest()
	require.True(t, ok)
	assert.Equal(t, 5.0, latest.Timestamp)
}

func TestStoreLatestEmpty(t *testing.T) {
	s := NewStore(0)
	_, ok := s.Latest()
	assert.False(t, ok)
	assert.Empty(t, s.Snapshot())
}

func TestStoreReturnsCopies(t *testing.T) {
	s := NewStore(2)
	in := &domain.JointState{Joints: [domain.NumJoints]float64{1}, Timestamp: 1}
	require.NoError(t, s.WriteBatch([]*domain.JointState{in}))

	in.Joints[0] = 50
	latest, _ := s.Latest()
	assert.Equal(t, 1.0, latest.Joints[0])

	latest.Joints[0] = 99
	again, _ := s.Latest()
	assert.Equal(t, 1.0, again.Joints[0])
}

func TestStoreWaitLatest(t *testing.T) {
	s := NewStore(4)

	done := make(chan domain.JointState, 1)
	go func() {
		st, err := s.WaitLatest(context.Background())
		if err == nil {
			done <- st
		}
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, s.WriteBatch(states(7)))

	select {
	case st := <-done:
		assert.Equal(t, 7.0, st.Timestamp)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for latest state")
	}
}

func TestStoreWaitLatestTimeout(t *testing.T) {
	s := NewStore(4)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := s.WaitLatest(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
