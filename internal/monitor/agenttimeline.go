package monitor

import (
	"fmt"
	"sort"

	"github.com/dchan/teamwatch/internal/model"
	"github.com/dchan/teamwatch/internal/timeline"
)

// BuildAgentTimeline assembles per-agent lifecycle lanes (join,
// messages, task transitions, shutdown) for the swim-lane chart.
// Returns nil when the team config is absent.
func BuildAgentTimeline(
	cfg *model.TeamConfig,
	messages []model.InboxMessage,
	events []timeline.Event,
) *model.AgentTimeline {
	if cfg == nil {
		return nil
	}

	entries := make([]model.AgentTimelineEntry, 0, len(cfg.Members))
	for _, member := range cfg.Members {
		name := member.Name
		joinedAt := model.MillisToTimestamp(member.JoinedAt)

		lane := []model.AgentLifecycleEvent{{
			Timestamp:   joinedAt,
			EventType:   "joined",
			Description: "Joined team",
		}}

		for _, m := range messages {
			switch {
			case m.FromAgent == name:
				desc := "Sent message to " + m.TargetAgent
				switch m.MessageType {
				case model.MessagePermissionRequest:
					desc = "Sent permission request for " + toolNameOf(m)
				case model.MessageShutdownRequest:
					desc = "Sent shutdown request"
				}
				lane = append(lane, model.AgentLifecycleEvent{
					Timestamp:    m.Timestamp,
					EventType:    "message_sent",
					Description:  desc,
					RelatedAgent: m.TargetAgent,
				})
			case m.TargetAgent == name:
				desc := "Received message from " + m.FromAgent
				if m.MessageType == model.MessagePermissionRequest {
					desc = "Received permission request for " + toolNameOf(m)
				}
				lane = append(lane, model.AgentLifecycleEvent{
					Timestamp:    m.Timestamp,
					EventType:    "message_received",
					Description:  desc,
					RelatedAgent: m.FromAgent,
				})
			}
		}

		for _, e := range events {
			if e.Owner != name {
				continue
			}
			switch e.NewStatus {
			case string(model.StatusInProgress):
				lane = append(lane, model.AgentLifecycleEvent{
					Timestamp:   e.Timestamp,
					EventType:   "task_started",
					Description: fmt.Sprintf("Started task #%s (%s)", e.TaskID, e.TaskSubject),
				})
			case string(model.StatusCompleted):
				lane = append(lane, model.AgentLifecycleEvent{
					Timestamp:   e.Timestamp,
					EventType:   "task_completed",
					Description: fmt.Sprintf("Completed task #%s (%s)", e.TaskID, e.TaskSubject),
				})
			}
		}

		shutdownAt := ""
		for _, m := range messages {
			if m.MessageType == model.MessageShutdownRequest && m.TargetAgent == name {
				shutdownAt = m.Timestamp
				lane = append(lane, model.AgentLifecycleEvent{
					Timestamp:    m.Timestamp,
					EventType:    "shutdown_requested",
					Description:  "Shutdown requested by " + m.FromAgent,
					RelatedAgent: m.FromAgent,
				})
			}
		}

		sort.SliceStable(lane, func(i, j int) bool {
			return lane[i].Timestamp < lane[j].Timestamp
		})

		entries = append(entries, model.AgentTimelineEntry{
			Name:       name,
			AgentType:  member.AgentType,
			Color:      member.Color,
			JoinedAt:   joinedAt,
			ShutdownAt: shutdownAt,
			Events:     lane,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].JoinedAt < entries[j].JoinedAt
	})

	return &model.AgentTimeline{
		TeamName:  cfg.Name,
		CreatedAt: model.MillisToTimestamp(cfg.CreatedAt),
		Agents:    entries,
	}
}

func toolNameOf(m model.InboxMessage) string {
	if m.ParsedContent != nil {
		if tool, _ := m.ParsedContent["tool_name"].(string); tool != "" {
			return tool
		}
	}
	return "unknown"
}
