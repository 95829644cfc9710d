package robotcomm

import (
	"errors"
	"testing"
	"time"
)

func TestNewCallbackSink(t *testing.T) {
	var received []JointState
	sink := NewCallbackSink("cb", func(batch []JointState) error {
		received = append(received, batch...)
		return nil
	})

	input := &JointState{Joints: [NumJoints]float64{1, 2, 3, 4, 5, 6}, Gripper: 0.5, Timestamp: 42}

	if err := sink.WriteBatch([]*JointState{input}); err != nil {
		t.Fatalf("WriteBatch returned error: %v", err)
	}
	if len(received) != 1 {
		t.Fatalf("expected 1 batch entry, got %d", len(received))
	}
	if received[0] != *input {
		t.Fatalf("mismatched state payload: %+v vs %+v", received[0], *input)
	}

	input.Joints[0] = 99
	if received[0].Joints[0] != 1 {
		t.Fatalf("expected callback to receive a copy")
	}
	if sink.Name() != "cb" {
		t.Fatalf("unexpected name %s", sink.Name())
	}
}

func TestNewCallbackSinkNilHandler(t *testing.T) {
	sink := NewCallbackSink("", nil)
	err := sink.WriteBatch([]*JointState{{}})
	if err == nil {
		t.Fatalf("expected error when callback is nil")
	}
	if sink.Name() != "callback" {
		t.Fatalf("expected default name, got %s", sink.Name())
	}
}

func TestNewChannelSink(t *testing.T) {
	sink, ch, closeFn := NewChannelSink("chan", 1)
	defer closeFn()

	input := &JointState{Timestamp: 7}
	errCh := make(chan error, 1)

	go func() {
		errCh <- sink.WriteBatch([]*JointState{input})
	}()

	var batch []JointState
	select {
	case batch = <-ch:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel batch")
	}

	if err := <-errCh; err != nil {
		t.Fatalf("WriteBatch returned error: %v", err)
	}
	if len(batch) != 1 || batch[0].Timestamp != 7 {
		t.Fatalf("unexpected batch data: %+v", batch)
	}

	closeFn()
	if err := sink.WriteBatch([]*JointState{input}); !errors.Is(err, ErrChannelSinkClosed) {
		t.Fatalf("expected ErrChannelSinkClosed, got %v", err)
	}
	if _, open := <-ch; open {
		t.Fatalf("expected channel to be closed")
	}
}

func TestChannelSinkCloseReleasesBlockedWriter(t *testing.T) {
	sink, _, closeFn := NewChannelSink("", 0)

	errCh := make(chan error, 1)
	go func() { errCh <- sink.WriteBatch([]*JointState{{}}) }()

	time.Sleep(10 * time.Millisecond)
	closeFn()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrChannelSinkClosed) {
			t.Fatalf("expected ErrChannelSinkClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("writer was not released")
	}
}
