package pubsub

import (
	"reflect"
	"testing"
)

// =============================================================================
// Request Tracking Tests
// =============================================================================

func TestRegistryAddIsIdempotent(t *testing.T) {
	r := NewRegistry()
	r.Add(KindChannel, "a", "b", "a")
	r.Add(KindChannel, "b")

	if got, want := r.Snapshot(KindChannel), []string{"a", "b"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Snapshot() = %v, want %v", got, want)
	}
	if got := r.Len(KindChannel); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}
}

func TestRegistryKindsAreIndependent(t *testing.T) {
	r := NewRegistry()
	r.Add(KindChannel, "news")
	r.Add(KindPattern, "news")
	r.Remove(KindChannel, "news")

	if r.Contains(KindChannel, "news") {
		t.Error("Contains(channel, news) = true after Remove")
	}
	if !r.Contains(KindPattern, "news") {
		t.Error("Contains(pattern, news) = false, want true")
	}
}

func TestRegistryRemoveAll(t *testing.T) {
	r := NewRegistry()
	r.Add(KindPattern, "a*", "b*")
	r.RemoveAll(KindPattern)

	if got := r.Snapshot(KindPattern); len(got) != 0 {
		t.Errorf("Snapshot() = %v, want empty", got)
	}
}

func TestRegistryEmptySnapshot(t *testing.T) {
	r := NewRegistry()
	got := r.Snapshot(KindChannel)
	if got == nil || len(got) != 0 {
		t.Errorf("Snapshot() = %#v, want empty non-nil slice", got)
	}
}

// =============================================================================
// State Machine Tests
// =============================================================================

func TestRegistryStateTransitions(t *testing.T) {
	r := NewRegistry()
	const name = "c1"

	steps := []struct {
		name string
		do   func()
		want State
	}{
		{"initial", func() {}, StateUnsubscribed},
		{"subscribe sent", func() { r.Add(KindChannel, name) }, StatePendingSubscribe},
		{"subscribe acked", func() { r.Confirm(KindChannel, name) }, StateSubscribed},
		{"unsubscribe sent", func() { r.Remove(KindChannel, name) }, StatePendingUnsubscribe},
		{"unsubscribe acked", func() { r.Release(KindChannel, name) }, StateUnsubscribed},
	}

	for _, step := range steps {
		step.do()
		if got := r.State(KindChannel, name); got != step.want {
			t.Fatalf("after %s: State() = %v, want %v", step.name, got, step.want)
		}
	}
	if got := r.ConfirmedCount(); got != 0 {
		t.Errorf("ConfirmedCount() = %d, want 0", got)
	}
}

func TestRegistryUnsubscribeBeforeAck(t *testing.T) {
	r := NewRegistry()
	r.Add(KindChannel, "c1")
	r.Remove(KindChannel, "c1")

	if got := r.State(KindChannel, "c1"); got != StateUnsubscribed {
		t.Fatalf("State() = %v, want unsubscribed", got)
	}

	// The late subscribe ack leaves the name waiting for its unsubscribe ack.
	r.Confirm(KindChannel, "c1")
	if got := r.State(KindChannel, "c1"); got != StatePendingUnsubscribe {
		t.Errorf("State() = %v, want pending_unsubscribe", got)
	}
	if got := r.ConfirmedCount(); got != 1 {
		t.Errorf("ConfirmedCount() = %d, want 1", got)
	}
}

func TestRegistryReset(t *testing.T) {
	r := NewRegistry()
	r.Add(KindChannel, "keep")
	r.Confirm(KindChannel, "keep")
	r.Confirm(KindChannel, "leaving")
	r.Add(KindPattern, "p*")
	r.Confirm(KindPattern, "p*")

	r.Reset()

	if got := r.ConfirmedCount(); got != 0 {
		t.Errorf("ConfirmedCount() = %d, want 0", got)
	}
	if got := r.State(KindChannel, "keep"); got != StatePendingSubscribe {
		t.Errorf("State(keep) = %v, want pending_subscribe", got)
	}
	if got := r.State(KindChannel, "leaving"); got != StateUnsubscribed {
		t.Errorf("State(leaving) = %v, want unsubscribed", got)
	}
	if got, want := r.Snapshot(KindPattern), []string{"p*"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Snapshot(pattern) = %v, want %v", got, want)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateUnsubscribed, "unsubscribed"},
		{StatePendingSubscribe, "pending_subscribe"},
		{StateSubscribed, "subscribed"},
		{StatePendingUnsubscribe, "pending_unsubscribe"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.state.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}
