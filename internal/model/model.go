// Package model defines the data structures shared across teamwatch:
// on-disk team/task/inbox records, derived monitoring values, and the
// server configuration.
package model

// TaskStatus is the lifecycle status of a task as written by agents.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
)

// MessageType classifies the embedded payload of an inbox message.
// Any JSON object with a "type" field becomes that type; everything
// else is plain text.
type MessageType string

const (
	MessagePlain              MessageType = "plain"
	MessagePermissionRequest  MessageType = "permission_request"
	MessagePermissionResponse MessageType = "permission_response"
	MessageShutdownRequest    MessageType = "shutdown_request"
	MessageShutdownResponse   MessageType = "shutdown_response"
)

// AgentStatus is the derived operational state of a team member.
type AgentStatus string

const (
	AgentActive    AgentStatus = "active"
	AgentIdle      AgentStatus = "idle"
	AgentStalled   AgentStatus = "stalled"
	AgentCompleted AgentStatus = "completed"
)

// Priority ranks action queue items.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityNormal   Priority = "normal"
)

// Task is one task file under tasks/<team>/. Read-only to teamwatch;
// agents create and mutate these on disk.
type Task struct {
	ID          string         `json:"id"`
	Subject     string         `json:"subject"`
	Description string         `json:"description"`
	Status      TaskStatus     `json:"status"`
	Blocks      []string       `json:"blocks"`
	BlockedBy   []string       `json:"blockedBy"`
	Owner       string         `json:"owner,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Internal reports whether the task carries the internal-only metadata flag.
func (t Task) Internal() bool {
	if t.Metadata == nil {
		return false
	}
	v, ok := t.Metadata["_internal"]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// TeamMember is one entry of a team config's members array.
type TeamMember struct {
	AgentID     string `json:"agentId"`
	Name        string `json:"name"`
	AgentType   string `json:"agentType"`
	Model       string `json:"model"`
	JoinedAt    int64  `json:"joinedAt"` // epoch milliseconds
	Cwd         string `json:"cwd"`
	Color       string `json:"color,omitempty"`
	Prompt      string `json:"prompt,omitempty"`
	TmuxPaneID  string `json:"tmuxPaneId,omitempty"`
	BackendType string `json:"backendType,omitempty"`
}

// TeamConfig is the parsed teams/<team>/config.json.
type TeamConfig struct {
	Name          string       `json:"name"`
	Description   string       `json:"description"`
	CreatedAt     int64        `json:"createdAt"` // epoch milliseconds
	LeadAgentID   string       `json:"leadAgentId"`
	LeadSessionID string       `json:"leadSessionId"`
	Members       []TeamMember `json:"members"`
}

// InboxMessage is one message from an agent's inbox file, classified at
// read time. TargetAgent is the inbox owner, attached by the reader; it
// is not part of the raw record.
type InboxMessage struct {
	FromAgent     string         `json:"from_agent"`
	Text          string         `json:"text"`
	Timestamp     string         `json:"timestamp"`
	Color         string         `json:"color,omitempty"`
	Read          bool           `json:"read"`
	MessageType   MessageType    `json:"message_type"`
	ParsedContent map[string]any `json:"parsed_content,omitempty"`
	TargetAgent   string         `json:"target_agent,omitempty"`
}

// TaskCounts aggregates tasks by status.
type TaskCounts struct {
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	Total      int `json:"total"`
}

// CountTasks tallies a task list by status. Unknown statuses count
// toward Total only.
func CountTasks(tasks []Task) TaskCounts {
	var c TaskCounts
	for _, t := range tasks {
		switch t.Status {
		case StatusPending:
			c.Pending++
		case StatusInProgress:
			c.InProgress++
		case StatusCompleted:
			c.Completed++
		}
	}
	c.Total = c.Pending + c.InProgress + c.Completed
	return c
}

// TeamSummary is the list-page view of one team.
type TeamSummary struct {
	Name              string       `json:"name"`
	Description       string       `json:"description"`
	CreatedAt         int64        `json:"created_at"`
	MemberCount       int          `json:"member_count"`
	TaskCounts        TaskCounts   `json:"task_counts"`
	TotalTasks        int          `json:"total_tasks"`
	HasUnreadMessages bool         `json:"has_unread_messages"`
	Members           []TeamMember `json:"members"`
}

// PermissionAlert is an unresolved permission_request, derived from the
// message stream. A request is resolved once any permission_response in
// the same team references its request ID.
type PermissionAlert struct {
	AgentName   string `json:"agent_name"`
	AgentColor  string `json:"agent_color,omitempty"`
	ToolName    string `json:"tool_name"`
	Description string `json:"description"`
	RequestID   string `json:"request_id"`
	ToolUseID   string `json:"tool_use_id"`
	Timestamp   string `json:"timestamp"`
}

// AgentActivity is the derived per-agent activity summary.
type AgentActivity struct {
	Name             string      `json:"name"`
	Color            string      `json:"color,omitempty"`
	AgentType        string      `json:"agent_type"`
	Model            string      `json:"model"`
	TasksPending     int         `json:"tasks_pending"`
	TasksInProgress  int         `json:"tasks_in_progress"`
	TasksCompleted   int         `json:"tasks_completed"`
	MessagesSent     int         `json:"messages_sent"`
	MessagesReceived int         `json:"messages_received"`
	LastMessageAt    string      `json:"last_message_at,omitempty"`
	MinutesSince     *int        `json:"minutes_since_last_activity,omitempty"`
	IsStalled        bool        `json:"is_stalled"`
	AgentStatus      AgentStatus `json:"agent_status"`
}

// DimensionScore is one weighted component of the health score.
type DimensionScore struct {
	Name        string  `json:"name"`
	Score       int     `json:"score"`
	Weight      float64 `json:"weight"`
	Explanation string  `json:"explanation"`
}

// HealthScore is the overall 0-100 workflow health with its breakdown.
type HealthScore struct {
	Overall    int              `json:"overall"`
	Color      string           `json:"color"`
	Label      string           `json:"label"`
	Dimensions []DimensionScore `json:"dimensions"`
}

// ActionQueueItem is one ranked operator-attention item.
type ActionQueueItem struct {
	ID              string         `json:"id"`
	Category        string         `json:"category"` // permission | stalled_agent | blocked_task
	Priority        Priority       `json:"priority"`
	Title           string         `json:"title"`
	Detail          string         `json:"detail"`
	AgentName       string         `json:"agent_name,omitempty"`
	AgentColor      string         `json:"agent_color,omitempty"`
	TargetLink      string         `json:"target_link,omitempty"`
	CreatedAt       string         `json:"created_at,omitempty"`
	DurationSeconds *int           `json:"duration_seconds,omitempty"`
	PermissionData  map[string]any `json:"permission_data,omitempty"`
	RiskLevel       string         `json:"risk_level,omitempty"` // low | medium | ""
}

// AutoApprovalLogEntry records one auto-approved permission request.
// Entries live only in the service's in-memory ring buffer.
type AutoApprovalLogEntry struct {
	RequestID string `json:"request_id"`
	AgentName string `json:"agent_name"`
	ToolName  string `json:"tool_name"`
	ToolUseID string `json:"tool_use_id"`
	TeamName  string `json:"team_name"`
	Timestamp string `json:"timestamp"`
}

// AutoApprovalSettings is the persisted auto-approval configuration.
type AutoApprovalSettings struct {
	Enabled bool     `json:"auto_approve_enabled"`
	Tools   []string `json:"auto_approve_tools"`
}

// AgentLifecycleEvent is one entry in an agent's swim-lane timeline.
type AgentLifecycleEvent struct {
	Timestamp    string `json:"timestamp"`
	EventType    string `json:"event_type"`
	Description  string `json:"description"`
	RelatedAgent string `json:"related_agent,omitempty"`
}

// AgentTimelineEntry is one agent's lane in the team lifecycle view.
type AgentTimelineEntry struct {
	Name       string                `json:"name"`
	AgentType  string                `json:"agent_type"`
	Color      string                `json:"color,omitempty"`
	JoinedAt   string                `json:"joined_at"`
	ShutdownAt string                `json:"shutdown_at,omitempty"`
	Events     []AgentLifecycleEvent `json:"events"`
}

// AgentTimeline is the whole-team swim-lane payload.
type AgentTimeline struct {
	TeamName  string               `json:"team_name"`
	CreatedAt string               `json:"created_at"`
	Agents    []AgentTimelineEntry `json:"agents"`
}
