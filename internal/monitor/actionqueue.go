package monitor

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dchan/teamwatch/internal/model"
)

// permissionCriticalAge is how long a permission may wait before its
// queue item escalates from high to critical.
const permissionCriticalAge = 120 // seconds

var priorityOrder = map[model.Priority]int{
	model.PriorityCritical: 0,
	model.PriorityHigh:     1,
	model.PriorityNormal:   2,
}

// Tool risk classification for permission safety indicators.
var (
	lowRiskTools    = map[string]bool{"Read": true, "Glob": true, "Grep": true, "WebSearch": true, "WebFetch": true}
	mediumRiskTools = map[string]bool{"Bash": true, "Write": true, "Edit": true, "NotebookEdit": true}
)

// BuildActionQueue merges pending permissions, stalled agents, and
// blocked tasks into one flat list ranked by priority, then by how
// long each item has been waiting.
func BuildActionQueue(
	pending []model.PermissionAlert,
	activity []model.AgentActivity,
	tasks []model.Task,
	stallThresholdSeconds int,
	now time.Time,
) []model.ActionQueueItem {
	var items []model.ActionQueueItem

	for _, perm := range pending {
		age := model.AgeSeconds(perm.Timestamp, now)
		priority := model.PriorityHigh
		if age >= permissionCriticalAge {
			priority = model.PriorityCritical
		}
		ageCopy := age
		items = append(items, model.ActionQueueItem{
			ID:              "perm:" + perm.RequestID,
			Category:        "permission",
			Priority:        priority,
			Title:           "Permission request: " + perm.ToolName,
			Detail:          perm.Description,
			AgentName:       perm.AgentName,
			AgentColor:      perm.AgentColor,
			TargetLink:      "action-bar",
			CreatedAt:       perm.Timestamp,
			DurationSeconds: &ageCopy,
			PermissionData: map[string]any{
				"request_id":  perm.RequestID,
				"tool_use_id": perm.ToolUseID,
				"tool_name":   perm.ToolName,
			},
			RiskLevel: toolRiskLevel(perm.ToolName),
		})
	}

	for _, agent := range activity {
		if !agent.IsStalled {
			continue
		}
		if agent.TasksPending == 0 && agent.TasksInProgress == 0 {
			continue // stalled with no pending work is done, not stuck
		}

		minutes := 0
		if agent.MinutesSince != nil {
			minutes = *agent.MinutesSince
		}
		stallSeconds := minutes * 60
		priority := model.PriorityHigh
		if stallSeconds >= stallThresholdSeconds*2 {
			priority = model.PriorityCritical
		}

		detail := fmt.Sprintf("No activity for %dm. %d pending, %d in progress.",
			minutes, agent.TasksPending, agent.TasksInProgress)
		// "Most recent" completed task is last in iteration order over
		// the task slice, matching the files' on-disk ordering.
		lastCompleted := ""
		for _, t := range tasks {
			if t.Owner == agent.Name && t.Status == model.StatusCompleted {
				lastCompleted = t.Subject
			}
		}
		if lastCompleted != "" {
			detail += fmt.Sprintf(" Last completed: %q", lastCompleted)
		}

		stallCopy := stallSeconds
		items = append(items, model.ActionQueueItem{
			ID:              "stall:" + agent.Name,
			Category:        "stalled_agent",
			Priority:        priority,
			Title:           agent.Name + " is stalled",
			Detail:          detail,
			AgentName:       agent.Name,
			AgentColor:      agent.Color,
			TargetLink:      "activity-cards",
			CreatedAt:       agent.LastMessageAt,
			DurationSeconds: &stallCopy,
		})
	}

	completedIDs := make(map[string]bool)
	for _, t := range tasks {
		if t.Status == model.StatusCompleted {
			completedIDs[t.ID] = true
		}
	}
	for _, task := range tasks {
		if task.Status == model.StatusCompleted || len(task.BlockedBy) == 0 {
			continue
		}
		var unresolved []string
		for _, b := range task.BlockedBy {
			if !completedIDs[b] {
				unresolved = append(unresolved, b)
			}
		}
		if len(unresolved) == 0 {
			continue
		}

		items = append(items, model.ActionQueueItem{
			ID:       "blocked:" + task.ID,
			Category: "blocked_task",
			Priority: model.PriorityNormal,
			Title:    fmt.Sprintf("Task #%s blocked", task.ID),
			Detail: fmt.Sprintf("%q blocked by #%s",
				task.Subject, strings.Join(unresolved, ", #")),
			AgentName:  task.Owner,
			TargetLink: "tab-tasks",
		})
	}

	// Priority ascending, then duration descending so the longest
	// waiting item within a priority band surfaces first.
	sort.SliceStable(items, func(i, j int) bool {
		pi, pj := priorityOrder[items[i].Priority], priorityOrder[items[j].Priority]
		if pi != pj {
			return pi < pj
		}
		return durationOrZero(items[i]) > durationOrZero(items[j])
	})

	return items
}

func durationOrZero(item model.ActionQueueItem) int {
	if item.DurationSeconds == nil {
		return 0
	}
	return *item.DurationSeconds
}

func toolRiskLevel(tool string) string {
	switch {
	case lowRiskTools[tool]:
		return "low"
	case mediumRiskTools[tool]:
		return "medium"
	default:
		return ""
	}
}
