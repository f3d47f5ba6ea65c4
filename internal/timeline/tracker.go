// Package timeline tracks task status transitions across repeated
// polls of the on-disk task files.
package timeline

import (
	"sort"
	"sync"
	"time"

	"github.com/dchan/teamwatch/internal/model"
)

// Event is one observed task status transition. OldStatus is "" when
// the task is seen for the first time.
type Event struct {
	Timestamp   string `json:"timestamp"`
	TeamName    string `json:"team_name"`
	TaskID      string `json:"task_id"`
	TaskSubject string `json:"task_subject"`
	OldStatus   string `json:"old_status"`
	NewStatus   string `json:"new_status"`
	Owner       string `json:"owner,omitempty"`
}

// Tracker diffs task snapshots poll-to-poll and records transition
// events. It never polls on its own; callers invoke Poll on every read
// of task state. All state is guarded by one mutex so concurrent polls
// for the same team cannot interleave partial updates.
type Tracker struct {
	mu        sync.Mutex
	previous  map[string]map[string]model.TaskStatus // team -> task id -> status
	events    []Event                                // append order, capped at maxEvents
	maxEvents int
	now       func() time.Time
}

func New(maxEvents int) *Tracker {
	if maxEvents < 1 {
		maxEvents = 1
	}
	return &Tracker{
		previous:  make(map[string]map[string]model.TaskStatus),
		maxEvents: maxEvents,
		now:       time.Now,
	}
}

// Poll compares the current snapshot against the previous one for the
// team, emits an event per changed (or newly observed) task, and
// replaces the stored snapshot wholesale. Tasks that vanished from disk
// drop out of tracking without a deletion event.
func (tr *Tracker) Poll(team string, tasks []model.Task) []Event {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	prev := tr.previous[team]
	current := make(map[string]model.TaskStatus, len(tasks))
	ts := model.FormatTimestamp(tr.now())

	var newEvents []Event
	for _, t := range tasks {
		current[t.ID] = t.Status
		old := prev[t.ID] // "" when never seen, a first-observation event
		if old == t.Status {
			continue
		}
		ev := Event{
			Timestamp:   ts,
			TeamName:    team,
			TaskID:      t.ID,
			TaskSubject: t.Subject,
			OldStatus:   string(old),
			NewStatus:   string(t.Status),
			Owner:       t.Owner,
		}
		newEvents = append(newEvents, ev)
		tr.events = append(tr.events, ev)
		if len(tr.events) > tr.maxEvents {
			tr.events = tr.events[len(tr.events)-tr.maxEvents:]
		}
	}

	tr.previous[team] = current
	return newEvents
}

// Events returns the team's events, newest first, truncated to limit.
func (tr *Tracker) Events(team string, limit int) []Event {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	var out []Event
	for _, e := range tr.events {
		if e.TeamName == team {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp > out[j].Timestamp
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// StatusDuration returns whole seconds since the task's most recent
// recorded transition, or ok=false if the task was never observed.
func (tr *Tracker) StatusDuration(team, taskID string) (int, bool) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	latest := ""
	for _, e := range tr.events {
		if e.TeamName == team && e.TaskID == taskID && e.Timestamp > latest {
			latest = e.Timestamp
		}
	}
	if latest == "" {
		return 0, false
	}
	return model.AgeSeconds(latest, tr.now()), true
}

// LastActivityTime returns the newest event timestamp whose owner is
// the given agent, or ok=false if none exists.
func (tr *Tracker) LastActivityTime(team, agent string) (string, bool) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	latest := ""
	for _, e := range tr.events {
		if e.TeamName == team && e.Owner == agent && e.Timestamp > latest {
			latest = e.Timestamp
		}
	}
	return latest, latest != ""
}

// Clear drops one team's events and snapshot. Used for test isolation.
func (tr *Tracker) Clear(team string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	kept := tr.events[:0]
	for _, e := range tr.events {
		if e.TeamName != team {
			kept = append(kept, e)
		}
	}
	tr.events = kept
	delete(tr.previous, team)
}

// ClearAll drops all tracker state.
func (tr *Tracker) ClearAll() {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	tr.events = nil
	tr.previous = make(map[string]map[string]model.TaskStatus)
}
