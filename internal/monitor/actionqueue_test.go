package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dchan/teamwatch/internal/model"
)

var queueNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func intPtr(n int) *int { return &n }

func TestBuildActionQueue_PermissionEscalation(t *testing.T) {
	pending := []model.PermissionAlert{
		{RequestID: "fresh", ToolName: "Read", Timestamp: model.FormatTimestamp(queueNow.Add(-30 * time.Second))},
		{RequestID: "old", ToolName: "Bash", Timestamp: model.FormatTimestamp(queueNow.Add(-5 * time.Minute))},
	}

	items := BuildActionQueue(pending, nil, nil, 600, queueNow)
	require.Len(t, items, 2)

	// Old permission is critical and sorts first.
	assert.Equal(t, "perm:old", items[0].ID)
	assert.Equal(t, model.PriorityCritical, items[0].Priority)
	assert.Equal(t, "perm:fresh", items[1].ID)
	assert.Equal(t, model.PriorityHigh, items[1].Priority)

	assert.Equal(t, "medium", items[0].RiskLevel)
	assert.Equal(t, "low", items[1].RiskLevel)
	assert.Equal(t, "old", items[0].PermissionData["request_id"])
}

func TestBuildActionQueue_RiskLevels(t *testing.T) {
	assert.Equal(t, "low", toolRiskLevel("Glob"))
	assert.Equal(t, "medium", toolRiskLevel("Edit"))
	assert.Equal(t, "", toolRiskLevel("LaunchMissiles"))
}

func TestBuildActionQueue_StalledAgents(t *testing.T) {
	activity := []model.AgentActivity{
		{
			// Stalled 25m against a 10m threshold: >= 2x, critical.
			Name: "alice", IsStalled: true,
			TasksPending: 2, TasksInProgress: 1,
			MinutesSince:  intPtr(25),
			LastMessageAt: model.FormatTimestamp(queueNow.Add(-25 * time.Minute)),
		},
		{
			// Stalled but idle-handed: excluded.
			Name: "bob", IsStalled: true,
			MinutesSince: intPtr(60),
		},
		{
			// Stalled 15m: above threshold but below 2x, high.
			Name: "carol", IsStalled: true,
			TasksPending: 1,
			MinutesSince: intPtr(15),
		},
	}
	tasks := []model.Task{
		{ID: "1", Owner: "alice", Status: model.StatusCompleted, Subject: "first done"},
		{ID: "2", Owner: "alice", Status: model.StatusCompleted, Subject: "second done"},
	}

	items := BuildActionQueue(nil, activity, tasks, 600, queueNow)
	require.Len(t, items, 2)

	assert.Equal(t, "stall:alice", items[0].ID)
	assert.Equal(t, model.PriorityCritical, items[0].Priority)
	assert.Contains(t, items[0].Detail, "2 pending, 1 in progress")
	// Last completed = last in iteration order, not by timestamp.
	assert.Contains(t, items[0].Detail, `"second done"`)
	assert.Equal(t, 25*60, *items[0].DurationSeconds)

	assert.Equal(t, "stall:carol", items[1].ID)
	assert.Equal(t, model.PriorityHigh, items[1].Priority)
	assert.NotContains(t, items[1].Detail, "Last completed")
}

func TestBuildActionQueue_BlockedTasks(t *testing.T) {
	tasks := []model.Task{
		{ID: "x", Status: model.StatusCompleted},
		{ID: "1", Subject: "ready", Status: model.StatusPending, BlockedBy: []string{"x"}},
		{ID: "2", Subject: "stuck", Status: model.StatusPending, BlockedBy: []string{"x", "3"}, Owner: "alice"},
		{ID: "3", Subject: "open", Status: model.StatusInProgress},
	}

	items := BuildActionQueue(nil, nil, tasks, 600, queueNow)
	require.Len(t, items, 1)
	assert.Equal(t, "blocked:2", items[0].ID)
	assert.Equal(t, model.PriorityNormal, items[0].Priority)
	assert.Equal(t, `"stuck" blocked by #3`, items[0].Detail)
	assert.Equal(t, "alice", items[0].AgentName)
	assert.Nil(t, items[0].DurationSeconds)
}

func TestBuildActionQueue_SortOrder(t *testing.T) {
	// One 5-minute-old permission (critical) and one blocked task
	// (normal): the permission must come first.
	pending := []model.PermissionAlert{
		{RequestID: "r1", ToolName: "Bash", Timestamp: model.FormatTimestamp(queueNow.Add(-5 * time.Minute))},
	}
	tasks := []model.Task{
		{ID: "1", Subject: "stuck", Status: model.StatusPending, BlockedBy: []string{"ghost"}},
	}

	items := BuildActionQueue(pending, nil, tasks, 600, queueNow)
	require.Len(t, items, 2)
	assert.Equal(t, "permission", items[0].Category)
	assert.Equal(t, "blocked_task", items[1].Category)
}

func TestBuildActionQueue_DurationTieBreak(t *testing.T) {
	pending := []model.PermissionAlert{
		{RequestID: "young", Timestamp: model.FormatTimestamp(queueNow.Add(-10 * time.Second))},
		{RequestID: "older", Timestamp: model.FormatTimestamp(queueNow.Add(-90 * time.Second))},
	}

	items := BuildActionQueue(pending, nil, nil, 600, queueNow)
	require.Len(t, items, 2)
	// Both high; the longer wait sorts first.
	assert.Equal(t, "perm:older", items[0].ID)
	assert.Equal(t, "perm:young", items[1].ID)
}

func TestBuildActionQueue_EmptyInputs(t *testing.T) {
	assert.Empty(t, BuildActionQueue(nil, nil, nil, 600, queueNow))
}
