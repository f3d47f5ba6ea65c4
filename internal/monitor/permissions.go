// Package monitor derives dashboard state (pending permissions, agent
// activity, health scores, and the action queue) from task and message
// snapshots. Every function here is a pure computation over
// already-fetched data with an explicit "now" where time matters.
package monitor

import "github.com/dchan/teamwatch/internal/model"

// PendingPermissions scans a team's message stream for permission
// requests that no permission_response has answered yet.
func PendingPermissions(messages []model.InboxMessage) []model.PermissionAlert {
	// Pass 1: request ids that already have a response.
	resolved := make(map[string]bool)
	for _, m := range messages {
		if m.MessageType != model.MessagePermissionResponse || m.ParsedContent == nil {
			continue
		}
		if rid, _ := m.ParsedContent["request_id"].(string); rid != "" {
			resolved[rid] = true
		}
	}

	// Pass 2: unresolved requests only.
	var alerts []model.PermissionAlert
	for _, m := range messages {
		if m.MessageType != model.MessagePermissionRequest || m.ParsedContent == nil {
			continue
		}
		requestID, _ := m.ParsedContent["request_id"].(string)
		if resolved[requestID] {
			continue
		}
		toolName, _ := m.ParsedContent["tool_name"].(string)
		description, _ := m.ParsedContent["description"].(string)
		toolUseID, _ := m.ParsedContent["tool_use_id"].(string)
		alerts = append(alerts, model.PermissionAlert{
			AgentName:   m.FromAgent,
			AgentColor:  m.Color,
			ToolName:    toolName,
			Description: description,
			RequestID:   requestID,
			ToolUseID:   toolUseID,
			Timestamp:   m.Timestamp,
		})
	}
	return alerts
}
