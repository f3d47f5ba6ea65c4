package timeline

import (
	"fmt"
	"testing"
	"time"

	"github.com/dchan/teamwatch/internal/model"
)

// fixedClock returns a clock that advances by step on each call.
func fixedClock(start time.Time, step time.Duration) func() time.Time {
	t := start
	return func() time.Time {
		now := t
		t = t.Add(step)
		return now
	}
}

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestPoll_FirstObservationEmitsPerTask(t *testing.T) {
	tr := New(100)
	tasks := []model.Task{
		{ID: "1", Subject: "one", Status: model.StatusPending, Owner: "alice"},
		{ID: "2", Subject: "two", Status: model.StatusInProgress, Owner: "bob"},
	}

	events := tr.Poll("alpha", tasks)
	if len(events) != 2 {
		t.Fatalf("events: got %d, want 2", len(events))
	}
	for _, e := range events {
		if e.OldStatus != "" {
			t.Errorf("first observation old status: got %q, want empty", e.OldStatus)
		}
	}
	if events[0].NewStatus != "pending" || events[1].NewStatus != "in_progress" {
		t.Errorf("new statuses: %q, %q", events[0].NewStatus, events[1].NewStatus)
	}
}

func TestPoll_IdempotentOnUnchangedSnapshot(t *testing.T) {
	tr := New(100)
	tasks := []model.Task{{ID: "1", Status: model.StatusPending}}

	tr.Poll("alpha", tasks)
	events := tr.Poll("alpha", tasks)
	if len(events) != 0 {
		t.Errorf("second identical poll: got %d events, want 0", len(events))
	}
}

func TestPoll_TransitionAndToggle(t *testing.T) {
	tr := New(100)
	tr.now = fixedClock(baseTime, time.Second)

	tr.Poll("alpha", []model.Task{{ID: "1", Status: model.StatusPending}})
	ev := tr.Poll("alpha", []model.Task{{ID: "1", Status: model.StatusInProgress}})
	if len(ev) != 1 || ev[0].OldStatus != "pending" || ev[0].NewStatus != "in_progress" {
		t.Fatalf("transition event: %+v", ev)
	}
	// Toggling back is one more event; detection is strictly poll-to-poll.
	ev = tr.Poll("alpha", []model.Task{{ID: "1", Status: model.StatusPending}})
	if len(ev) != 1 || ev[0].OldStatus != "in_progress" {
		t.Fatalf("toggle event: %+v", ev)
	}
}

func TestPoll_RemovedTaskDropsSilently(t *testing.T) {
	tr := New(100)
	tr.Poll("alpha", []model.Task{{ID: "1", Status: model.StatusPending}, {ID: "2", Status: model.StatusPending}})

	ev := tr.Poll("alpha", []model.Task{{ID: "2", Status: model.StatusPending}})
	if len(ev) != 0 {
		t.Errorf("removal should emit no events, got %+v", ev)
	}
	// If the task reappears it is a fresh first observation.
	ev = tr.Poll("alpha", []model.Task{{ID: "1", Status: model.StatusPending}, {ID: "2", Status: model.StatusPending}})
	if len(ev) != 1 || ev[0].TaskID != "1" || ev[0].OldStatus != "" {
		t.Errorf("reappearance: %+v", ev)
	}
}

func TestPoll_EmptyTeamForever(t *testing.T) {
	tr := New(100)
	for i := 0; i < 5; i++ {
		if ev := tr.Poll("alpha", nil); len(ev) != 0 {
			t.Fatalf("poll %d: got %d events", i, len(ev))
		}
	}
}

func TestEvents_NewestFirstAndLimited(t *testing.T) {
	tr := New(100)
	tr.now = fixedClock(baseTime, time.Minute)

	for i := 0; i < 4; i++ {
		tr.Poll("alpha", []model.Task{{ID: fmt.Sprintf("%d", i), Status: model.StatusPending}})
	}
	tr.Poll("beta", []model.Task{{ID: "x", Status: model.StatusPending}})

	events := tr.Events("alpha", 3)
	if len(events) != 3 {
		t.Fatalf("events: got %d, want 3", len(events))
	}
	for i := 1; i < len(events); i++ {
		if events[i-1].Timestamp < events[i].Timestamp {
			t.Errorf("events not newest-first at %d", i)
		}
	}
	for _, e := range events {
		if e.TeamName != "alpha" {
			t.Errorf("foreign team event leaked: %+v", e)
		}
	}
}

func TestEvents_CapEvictsOldest(t *testing.T) {
	tr := New(3)
	tr.now = fixedClock(baseTime, time.Second)

	for i := 0; i < 5; i++ {
		tr.Poll("alpha", []model.Task{{ID: fmt.Sprintf("%d", i), Status: model.StatusPending}})
	}

	events := tr.Events("alpha", -1)
	if len(events) != 3 {
		t.Fatalf("events after cap: got %d, want 3", len(events))
	}
	// Oldest two (ids 0 and 1) evicted.
	for _, e := range events {
		if e.TaskID == "0" || e.TaskID == "1" {
			t.Errorf("evicted event still present: %+v", e)
		}
	}
}

func TestStatusDuration(t *testing.T) {
	tr := New(100)
	clock := baseTime
	tr.now = func() time.Time { return clock }

	tr.Poll("alpha", []model.Task{{ID: "1", Status: model.StatusPending}})
	clock = clock.Add(90 * time.Second)

	secs, ok := tr.StatusDuration("alpha", "1")
	if !ok {
		t.Fatal("expected duration for observed task")
	}
	if secs != 90 {
		t.Errorf("duration: got %d, want 90", secs)
	}

	if _, ok := tr.StatusDuration("alpha", "ghost"); ok {
		t.Error("unobserved task should have no duration")
	}
}

func TestLastActivityTime(t *testing.T) {
	tr := New(100)
	tr.now = fixedClock(baseTime, time.Minute)

	tr.Poll("alpha", []model.Task{{ID: "1", Status: model.StatusPending, Owner: "alice"}})
	tr.Poll("alpha", []model.Task{{ID: "1", Status: model.StatusInProgress, Owner: "alice"}})

	ts, ok := tr.LastActivityTime("alpha", "alice")
	if !ok {
		t.Fatal("expected activity for alice")
	}
	want := model.FormatTimestamp(baseTime.Add(time.Minute))
	if ts != want {
		t.Errorf("last activity: got %q, want %q", ts, want)
	}

	if _, ok := tr.LastActivityTime("alpha", "bob"); ok {
		t.Error("bob has no owned events")
	}
	if _, ok := tr.LastActivityTime("beta", "alice"); ok {
		t.Error("activity must be scoped per team")
	}
}

func TestClear(t *testing.T) {
	tr := New(100)
	tr.Poll("alpha", []model.Task{{ID: "1", Status: model.StatusPending}})
	tr.Poll("beta", []model.Task{{ID: "2", Status: model.StatusPending}})

	tr.Clear("alpha")
	if len(tr.Events("alpha", -1)) != 0 {
		t.Error("alpha events should be cleared")
	}
	if len(tr.Events("beta", -1)) != 1 {
		t.Error("beta events should survive")
	}
	// Cleared team re-observes from scratch.
	ev := tr.Poll("alpha", []model.Task{{ID: "1", Status: model.StatusPending}})
	if len(ev) != 1 || ev[0].OldStatus != "" {
		t.Errorf("post-clear poll: %+v", ev)
	}

	tr.ClearAll()
	if len(tr.Events("beta", -1)) != 0 {
		t.Error("ClearAll should drop everything")
	}
}
