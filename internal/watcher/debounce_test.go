package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectEvent(t *testing.T, ch <-chan Event, within time.Duration) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(within):
		t.Fatal("no event within deadline")
		return Event{}
	}
}

func assertNoEvent(t *testing.T, ch <-chan Event, within time.Duration) {
	t.Helper()
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event: %+v", ev)
	case <-time.After(within):
	}
}

func TestDebouncerEmitsAfterSettle(t *testing.T) {
	out := make(chan Event, 16)
	d := newDebouncer(30*time.Millisecond, out)
	defer d.stop()

	d.observe("/p/a.txt", KindModified)

	ev := collectEvent(t, out, time.Second)
	assert.Equal(t, "/p/a.txt", ev.Identity)
	assert.Equal(t, KindModified, ev.Kind)
}

func TestDebouncerCollapsesBurst(t *testing.T) {
	out := make(chan Event, 16)
	d := newDebouncer(50*time.Millisecond, out)
	defer d.stop()

	// An editor save: create followed by several writes
	d.observe("/p/a.txt", KindCreated)
	d.observe("/p/a.txt", KindModified)
	d.observe("/p/a.txt", KindModified)

	ev := collectEvent(t, out, time.Second)
	assert.Equal(t, KindCreated, ev.Kind)
	assertNoEvent(t, out, 150*time.Millisecond)
}

func TestDebouncerDeleteSupersedes(t *testing.T) {
	out := make(chan Event, 16)
	d := newDebouncer(50*time.Millisecond, out)
	defer d.stop()

	d.observe("/p/a.txt", KindCreated)
	d.observe("/p/a.txt", KindModified)
	d.observe("/p/a.txt", KindDeleted)

	ev := collectEvent(t, out, time.Second)
	assert.Equal(t, KindDeleted, ev.Kind)
}

func TestDebouncerReplaceReportsModified(t *testing.T) {
	out := make(chan Event, 16)
	d := newDebouncer(50*time.Millisecond, out)
	defer d.stop()

	// Atomic save: delete then recreate within the window
	d.observe("/p/a.txt", KindDeleted)
	d.observe("/p/a.txt", KindCreated)

	ev := collectEvent(t, out, time.Second)
	assert.Equal(t, KindModified, ev.Kind)
}

func TestDebouncerIndependentIdentities(t *testing.T) {
	out := make(chan Event, 16)
	d := newDebouncer(30*time.Millisecond, out)
	defer d.stop()

	d.observe("/p/a.txt", KindCreated)
	d.observe("/p/b.txt", KindDeleted)

	got := map[string]Kind{}
	for i := 0; i < 2; i++ {
		ev := collectEvent(t, out, time.Second)
		got[ev.Identity] = ev.Kind
	}

	require.Len(t, got, 2)
	assert.Equal(t, KindCreated, got["/p/a.txt"])
	assert.Equal(t, KindDeleted, got["/p/b.txt"])
}

func TestDebouncerStopSuppressesPending(t *testing.T) {
	out := make(chan Event, 16)
	d := newDebouncer(30*time.Millisecond, out)

	d.observe("/p/a.txt", KindModified)
	d.stop()

	assertNoEvent(t, out, 100*time.Millisecond)
}

func TestDebouncerStopUnblocksInFlightFlush(t *testing.T) {
	// Unbuffered channel with no reader: the flush fires and blocks on the
	// send when stop arrives.
	out := make(chan Event)
	d := newDebouncer(10*time.Millisecond, out)

	d.observe("/p/a.txt", KindModified)
	time.Sleep(40 * time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		d.stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("stop did not return while a flush was blocked")
	}

	select {
	case ev := <-out:
		t.Fatalf("event emitted after stop returned: %+v", ev)
	default:
	}
}

func TestMergeKinds(t *testing.T) {
	cases := []struct {
		old, next, want Kind
	}{
		{KindCreated, KindModified, KindCreated},
		{KindCreated, KindDeleted, KindDeleted},
		{KindModified, KindDeleted, KindDeleted},
		{KindDeleted, KindCreated, KindModified},
		{KindModified, KindModified, KindModified},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, mergeKinds(tc.old, tc.next), "%s then %s", tc.old, tc.next)
	}
}
