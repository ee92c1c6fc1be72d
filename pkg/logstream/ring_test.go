package logstream

import (
	"testing"
	"time"

	jumpstarterv1 "github.com/jumpstarter-dev/jumpstarter/pkg/wire/jumpstarterv1"
)

func TestSubscribeReceivesAppendedEntries(t *testing.T) {
	r := New()
	ch, cancel := r.Subscribe()
	defer cancel()

	r.Append("hook:before-lease", jumpstarterv1.SeverityInfo, "starting")

	select {
	case entry := <-ch:
		if entry.Message != "starting" || entry.Source != "hook:before-lease" {
			t.Fatalf("got %+v", entry)
		}
	case <-time.After(time.Second):
		t.Fatalf("subscriber never received the appended entry")
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	r := New()
	ch, cancel := r.Subscribe()
	cancel()

	r.Append("hook", jumpstarterv1.SeverityInfo, "after cancel")

	if _, ok := <-ch; ok {
		t.Fatalf("expected the channel to be closed after cancel")
	}
}

func TestAppendDoesNotBlockOnSlowSubscriber(t *testing.T) {
	r := New()
	_, cancel := r.Subscribe() // never drained
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			r.Append("hook", jumpstarterv1.SeverityInfo, "line")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Append blocked on a full subscriber channel")
	}
}

func TestMultipleSubscribersEachGetTheEntry(t *testing.T) {
	r := New()
	ch1, cancel1 := r.Subscribe()
	ch2, cancel2 := r.Subscribe()
	defer cancel1()
	defer cancel2()

	r.Append("hook", jumpstarterv1.SeverityWarning, "fan out")

	for _, ch := range []<-chan jumpstarterv1.LogStreamResponse{ch1, ch2} {
		select {
		case entry := <-ch:
			if entry.Message != "fan out" {
				t.Fatalf("got %+v", entry)
			}
		case <-time.After(time.Second):
			t.Fatalf("a subscriber never received the fanned-out entry")
		}
	}
}
