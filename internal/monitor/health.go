package monitor

import (
	"fmt"
	"math"
	"time"

	"github.com/dchan/teamwatch/internal/model"
)

// Dimension weights. Fixed constants summing to 1.0.
const (
	weightPermissionLatency = 0.30
	weightStallRatio        = 0.25
	weightBlockedRatio      = 0.25
	weightThroughput        = 0.20
)

// ComputeHealthScore produces a 0-100 workflow health score from four
// weighted dimensions. Pure function; now is explicit for testing.
func ComputeHealthScore(
	pending []model.PermissionAlert,
	activity []model.AgentActivity,
	tasks []model.Task,
	counts model.TaskCounts,
	now time.Time,
) model.HealthScore {
	dimensions := []model.DimensionScore{
		scorePermissionLatency(pending, now),
		scoreStallRatio(activity),
		scoreBlockedRatio(tasks, counts),
		scoreThroughput(counts),
	}

	weighted := 0.0
	for _, d := range dimensions {
		weighted += float64(d.Score) * d.Weight
	}
	overall := int(math.Round(clamp(weighted)))

	var color, label string
	switch {
	case overall >= 80:
		color, label = "green", "Healthy"
	case overall >= 50:
		color, label = "amber", "Needs Attention"
	default:
		color, label = "red", "Critical"
	}

	return model.HealthScore{
		Overall:    overall,
		Color:      color,
		Label:      label,
		Dimensions: dimensions,
	}
}

// scorePermissionLatency: 100 with nothing pending, else 100 minus a
// per-permission penalty of 25 plus one point per waiting minute.
func scorePermissionLatency(pending []model.PermissionAlert, now time.Time) model.DimensionScore {
	if len(pending) == 0 {
		return model.DimensionScore{
			Name:        "permission_latency",
			Score:       100,
			Weight:      weightPermissionLatency,
			Explanation: "No pending permissions",
		}
	}

	penalty := 0.0
	for _, p := range pending {
		waitSeconds := model.AgeSeconds(p.Timestamp, now)
		penalty += 25 + float64(waitSeconds)/60
	}

	return model.DimensionScore{
		Name:        "permission_latency",
		Score:       roundScore(100 - penalty),
		Weight:      weightPermissionLatency,
		Explanation: fmt.Sprintf("%d pending %s (penalty: %.0f)", len(pending), plural(len(pending), "permission"), penalty),
	}
}

func scoreStallRatio(activity []model.AgentActivity) model.DimensionScore {
	total := len(activity)
	if total == 0 {
		return model.DimensionScore{
			Name:        "stall_ratio",
			Score:       100,
			Weight:      weightStallRatio,
			Explanation: "No agents",
		}
	}

	stalled := 0
	for _, a := range activity {
		if a.IsStalled {
			stalled++
		}
	}

	return model.DimensionScore{
		Name:        "stall_ratio",
		Score:       roundScore(100 * (1 - float64(stalled)/float64(total))),
		Weight:      weightStallRatio,
		Explanation: fmt.Sprintf("%d of %d %s stalled", stalled, total, plural(total, "agent")),
	}
}

// A task counts as blocked iff it is not completed, lists blockers, and
// at least one blocker has not completed.
func scoreBlockedRatio(tasks []model.Task, counts model.TaskCounts) model.DimensionScore {
	if counts.Total == 0 {
		return model.DimensionScore{
			Name:        "blocked_ratio",
			Score:       100,
			Weight:      weightBlockedRatio,
			Explanation: "No tasks",
		}
	}

	blocked := countBlocked(tasks)
	return model.DimensionScore{
		Name:        "blocked_ratio",
		Score:       roundScore(100 * (1 - float64(blocked)/float64(counts.Total))),
		Weight:      weightBlockedRatio,
		Explanation: fmt.Sprintf("%d of %d %s blocked", blocked, counts.Total, plural(counts.Total, "task")),
	}
}

func scoreThroughput(counts model.TaskCounts) model.DimensionScore {
	if counts.Total == 0 {
		return model.DimensionScore{
			Name:        "throughput",
			Score:       100,
			Weight:      weightThroughput,
			Explanation: "No tasks",
		}
	}

	return model.DimensionScore{
		Name:        "throughput",
		Score:       roundScore(100 * float64(counts.Completed) / float64(counts.Total)),
		Weight:      weightThroughput,
		Explanation: fmt.Sprintf("%d of %d %s completed", counts.Completed, counts.Total, plural(counts.Total, "task")),
	}
}

func countBlocked(tasks []model.Task) int {
	completedIDs := make(map[string]bool)
	for _, t := range tasks {
		if t.Status == model.StatusCompleted {
			completedIDs[t.ID] = true
		}
	}

	blocked := 0
	for _, t := range tasks {
		if t.Status == model.StatusCompleted || len(t.BlockedBy) == 0 {
			continue
		}
		for _, b := range t.BlockedBy {
			if !completedIDs[b] {
				blocked++
				break
			}
		}
	}
	return blocked
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

func roundScore(v float64) int {
	return int(math.Round(clamp(v)))
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
