// Package seed writes a deterministic fixture team for local
// development and demos.
package seed

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dchan/teamwatch/internal/jsonfile"
	"github.com/dchan/teamwatch/internal/model"
)

// TeamName is the fixture team written and removed by this package.
const TeamName = "dashboard-redesign"

// Write lays down one team with seven tasks across every status, plus
// inboxes carrying plain, permission_request, and shutdown_request
// messages. Timestamps are anchored 30 minutes before now so the
// dashboard shows plausible ages immediately.
func Write(baseDir string, now time.Time) error {
	teamDir := filepath.Join(baseDir, "teams", TeamName)
	tasksDir := filepath.Join(baseDir, "tasks", TeamName)
	base := now.Add(-30 * time.Minute)

	if err := jsonfile.AtomicWrite(filepath.Join(teamDir, "config.json"), buildConfig(base)); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	for _, task := range buildTasks() {
		path := filepath.Join(tasksDir, task.ID+".json")
		if err := jsonfile.AtomicWrite(path, task); err != nil {
			return fmt.Errorf("write task %s: %w", task.ID, err)
		}
	}
	if err := os.WriteFile(filepath.Join(tasksDir, ".lock"), nil, 0o644); err != nil {
		return fmt.Errorf("write lock: %w", err)
	}
	for agent, messages := range buildInboxes(base) {
		path := filepath.Join(teamDir, "inboxes", agent+".json")
		if err := jsonfile.AtomicWrite(path, messages); err != nil {
			return fmt.Errorf("write inbox %s: %w", agent, err)
		}
	}
	return nil
}

// Clean removes the fixture team's directories. Returns false when
// nothing was there to remove.
func Clean(baseDir string) (bool, error) {
	removed := false
	for _, dir := range []string{
		filepath.Join(baseDir, "teams", TeamName),
		filepath.Join(baseDir, "tasks", TeamName),
	} {
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			return removed, fmt.Errorf("remove %s: %w", dir, err)
		}
		removed = true
	}
	return removed, nil
}

func buildConfig(base time.Time) model.TeamConfig {
	millis := func(offset time.Duration) int64 {
		return base.Add(offset).UnixMilli()
	}
	return model.TeamConfig{
		Name:          TeamName,
		Description:   "Redesign the analytics dashboard with new charts and filters",
		CreatedAt:     millis(0),
		LeadAgentID:   "team-lead@" + TeamName,
		LeadSessionID: "session-seed-001",
		Members: []model.TeamMember{
			{
				AgentID:     "team-lead@" + TeamName,
				Name:        "team-lead",
				AgentType:   "team-lead",
				Model:       "opus",
				JoinedAt:    millis(0),
				Cwd:         "/home/dchan/project",
				BackendType: "in-process",
				Prompt:      "You are the team lead. Coordinate planning, implementation, and testing across teammates.",
			},
			{
				AgentID:   "planner@" + TeamName,
				Name:      "planner",
				AgentType: "general-purpose",
				Model:     "opus",
				JoinedAt:  millis(2 * time.Minute),
				Cwd:       "/home/dchan/project",
				Color:     "purple",
			},
			{
				AgentID:   "implementer@" + TeamName,
				Name:      "implementer",
				AgentType: "general-purpose",
				Model:     "opus",
				JoinedAt:  millis(5 * time.Minute),
				Cwd:       "/home/dchan/project",
				Color:     "blue",
			},
			{
				AgentID:   "tester@" + TeamName,
				Name:      "tester",
				AgentType: "general-purpose",
				Model:     "haiku",
				JoinedAt:  millis(8 * time.Minute),
				Cwd:       "/home/dchan/project",
				Color:     "green",
			},
		},
	}
}

func buildTasks() []model.Task {
	return []model.Task{
		{
			ID: "1", Subject: "Plan architecture",
			Description: "Design the component architecture and data flow for the dashboard redesign",
			Status:      model.StatusCompleted,
			Blocks:      []string{"2", "3"}, BlockedBy: []string{},
			Owner:    "planner",
			Metadata: map[string]any{"_internal": true},
		},
		{
			ID: "2", Subject: "Build API endpoints",
			Description: "Create REST endpoints for chart data, filters, and user preferences",
			Status:      model.StatusCompleted,
			Blocks:      []string{"4", "5"}, BlockedBy: []string{"1"},
			Owner: "implementer",
		},
		{
			ID: "3", Subject: "Design UI mockups",
			Description: "Create wireframes and component layouts for the new dashboard views",
			Status:      model.StatusCompleted,
			Blocks:      []string{"5"}, BlockedBy: []string{"1"},
			Owner: "planner",
		},
		{
			ID: "4", Subject: "Write integration tests",
			Description: "Test API endpoints with realistic fixture data and edge cases",
			Status:      model.StatusInProgress,
			Blocks:      []string{"7"}, BlockedBy: []string{"2"},
			Owner: "tester",
		},
		{
			ID: "5", Subject: "Implement frontend",
			Description: "Build React components for charts, filters, and layout using the approved mockups",
			Status:      model.StatusInProgress,
			Blocks:      []string{"6"}, BlockedBy: []string{"2", "3"},
			Owner: "implementer",
		},
		{
			ID: "6", Subject: "Code review",
			Description: "Review frontend implementation and test coverage before deployment",
			Status:      model.StatusPending,
			Blocks:      []string{"7"}, BlockedBy: []string{"5"},
			Owner: "team-lead",
		},
		{
			ID: "7", Subject: "Deploy to staging",
			Description: "Deploy the redesigned dashboard to the staging environment for QA",
			Status:      model.StatusPending,
			Blocks:      []string{}, BlockedBy: []string{"4", "6"},
			Owner: "team-lead",
		},
	}
}

// rawMessage matches the on-disk inbox record shape.
type rawMessage struct {
	From      string `json:"from"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
	Color     string `json:"color,omitempty"`
	Read      bool   `json:"read"`
}

func buildInboxes(base time.Time) map[string][]rawMessage {
	at := func(offset time.Duration) string {
		return model.FormatTimestamp(base.Add(offset))
	}

	permissionRequest, _ := json.Marshal(map[string]any{
		"type":        "permission_request",
		"request_id":  "perm-seed-001",
		"agent_id":    "implementer",
		"tool_name":   "Bash",
		"tool_use_id": "toolu_seed_ABC",
		"description": "Run production build",
		"input":       map[string]any{"command": "npm run build"},
	})
	shutdownRequest, _ := json.Marshal(map[string]any{
		"type":      "shutdown_request",
		"reason":    "Pausing test work until frontend is closer to done",
		"requestId": "shutdown-seed-001",
	})

	return map[string][]rawMessage{
		"team-lead": {
			{
				From:      "planner",
				Text:      "Architecture plan is ready. I've broken it into 3 frontend components and 2 API modules. Assigning tasks now.",
				Timestamp: at(6 * time.Minute),
				Color:     "purple",
				Read:      true,
			},
			{
				From:      "implementer",
				Text:      "API endpoints are done. Starting on the frontend components. The chart library needs a peer dependency update.",
				Timestamp: at(18 * time.Minute),
				Color:     "blue",
			},
		},
		"planner": {
			{
				From:      "team-lead",
				Text:      "Good work on the architecture. Please review the API contracts before implementer starts the frontend.",
				Timestamp: at(7 * time.Minute),
				Read:      true,
			},
		},
		"implementer": {
			{
				From:      "implementer",
				Text:      string(permissionRequest),
				Timestamp: at(22 * time.Minute),
				Color:     "blue",
			},
			{
				From:      "team-lead",
				Text:      "Make sure to use the existing chart component library. Don't add new dependencies without checking first.",
				Timestamp: at(10 * time.Minute),
				Read:      true,
			},
		},
		"tester": {
			{
				From:      "team-lead",
				Text:      "Start with the API integration tests. Frontend tests can wait until implementer is further along.",
				Timestamp: at(12 * time.Minute),
				Read:      true,
			},
			{
				From:      "team-lead",
				Text:      string(shutdownRequest),
				Timestamp: at(25 * time.Minute),
			},
		},
	}
}
