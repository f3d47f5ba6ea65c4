package monitor

import (
	"time"

	"github.com/dchan/teamwatch/internal/model"
)

// TaskActivitySource supplies the last task-transition timestamp per
// agent; the timeline tracker implements it.
type TaskActivitySource interface {
	LastActivityTime(team, agent string) (string, bool)
}

// ComputeAgentActivity classifies every team member from tasks,
// messages, and the tracker's per-agent activity.
//
// Status precedence is deliberate and must hold: shutdown signals
// dominate stall signals, which dominate simple idleness.
func ComputeAgentActivity(
	team string,
	cfg *model.TeamConfig,
	tasks []model.Task,
	messages []model.InboxMessage,
	tracker TaskActivitySource,
	stallThresholdMin int,
	now time.Time,
) []model.AgentActivity {
	if cfg == nil {
		return nil
	}

	shutdown := make(map[string]bool)
	for _, m := range messages {
		if m.MessageType == model.MessageShutdownRequest && m.TargetAgent != "" {
			shutdown[m.TargetAgent] = true
		}
	}

	agents := make([]model.AgentActivity, 0, len(cfg.Members))
	for _, member := range cfg.Members {
		name := member.Name

		var pending, inProgress, completed int
		for _, t := range tasks {
			if t.Owner != name {
				continue
			}
			switch t.Status {
			case model.StatusPending:
				pending++
			case model.StatusInProgress:
				inProgress++
			case model.StatusCompleted:
				completed++
			}
		}

		var sent, received int
		lastMessageAt := ""
		for _, m := range messages {
			from := m.FromAgent == name
			to := m.TargetAgent == name
			if from {
				sent++
			}
			if to {
				received++
			}
			if (from || to) && m.Timestamp > lastMessageAt {
				lastMessageAt = m.Timestamp
			}
		}

		lastTaskActivity, _ := tracker.LastActivityTime(team, name)

		// Latest of the two signals; either may be absent.
		latest := lastMessageAt
		if lastTaskActivity > latest {
			latest = lastTaskActivity
		}

		// Whole minutes, floored; stall is a strict > on minutes so an
		// agent 10m59s quiet is not yet stalled at the 10-minute default.
		var minutesSince *int
		isStalled := false
		if t, ok := model.ParseTimestamp(latest); ok {
			mins := int(now.Sub(t).Minutes())
			minutesSince = &mins
			isStalled = mins > stallThresholdMin
		}

		hasPendingWork := pending > 0 || inProgress > 0
		var status model.AgentStatus
		switch {
		case shutdown[name] && !hasPendingWork:
			status = model.AgentCompleted
		case shutdown[name] && hasPendingWork:
			status = model.AgentStalled
		case isStalled && !hasPendingWork:
			status = model.AgentCompleted
		case isStalled && hasPendingWork:
			status = model.AgentStalled
		case !hasPendingWork && completed > 0:
			status = model.AgentIdle
		default:
			status = model.AgentActive
		}

		agents = append(agents, model.AgentActivity{
			Name:             name,
			Color:            member.Color,
			AgentType:        member.AgentType,
			Model:            member.Model,
			TasksPending:     pending,
			TasksInProgress:  inProgress,
			TasksCompleted:   completed,
			MessagesSent:     sent,
			MessagesReceived: received,
			LastMessageAt:    lastMessageAt,
			MinutesSince:     minutesSince,
			IsStalled:        isStalled,
			AgentStatus:      status,
		})
	}
	return agents
}
