package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/dchan/teamwatch/internal/model"
)

func writeFile(t *testing.T, path string, v any) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
}

func newTestReader(t *testing.T) (*Reader, string, string) {
	t.Helper()
	base := t.TempDir()
	teamsDir := filepath.Join(base, "teams")
	tasksDir := filepath.Join(base, "tasks")
	return NewReader(teamsDir, tasksDir, nil), teamsDir, tasksDir
}

func TestListTeams_MissingDir(t *testing.T) {
	r, _, _ := newTestReader(t)
	if teams := r.ListTeams(); len(teams) != 0 {
		t.Errorf("expected no teams, got %v", teams)
	}
}

func TestListTeams_Sorted(t *testing.T) {
	r, teamsDir, _ := newTestReader(t)
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := os.MkdirAll(filepath.Join(teamsDir, name), 0755); err != nil {
			t.Fatalf("MkdirAll failed: %v", err)
		}
	}
	// Stray files are not teams.
	if err := os.WriteFile(filepath.Join(teamsDir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	teams := r.ListTeams()
	want := []string{"alpha", "mid", "zeta"}
	if len(teams) != 3 {
		t.Fatalf("teams: got %v, want %v", teams, want)
	}
	for i := range want {
		if teams[i] != want[i] {
			t.Errorf("teams[%d]: got %q, want %q", i, teams[i], want[i])
		}
	}
}

func TestTeamConfig_Parse(t *testing.T) {
	r, teamsDir, _ := newTestReader(t)
	writeFile(t, filepath.Join(teamsDir, "alpha", "config.json"), map[string]any{
		"name":        "alpha",
		"description": "test team",
		"createdAt":   1717243200000,
		"leadAgentId": "lead@alpha",
		"members": []map[string]any{
			{"agentId": "lead@alpha", "name": "lead", "agentType": "team-lead", "model": "opus", "joinedAt": 1717243200000, "cwd": "/tmp"},
		},
	})

	cfg := r.TeamConfig("alpha")
	if cfg == nil {
		t.Fatal("expected config, got nil")
	}
	if cfg.LeadAgentID != "lead@alpha" {
		t.Errorf("lead: got %q", cfg.LeadAgentID)
	}
	if len(cfg.Members) != 1 || cfg.Members[0].Name != "lead" {
		t.Errorf("members: got %+v", cfg.Members)
	}
}

func TestTeamConfig_CorruptIsNil(t *testing.T) {
	r, teamsDir, _ := newTestReader(t)
	path := filepath.Join(teamsDir, "alpha", "config.json")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if cfg := r.TeamConfig("alpha"); cfg != nil {
		t.Errorf("corrupt config should read as nil, got %+v", cfg)
	}
}

func TestTasks_SkipsNonJSONAndCorrupt(t *testing.T) {
	r, _, tasksDir := newTestReader(t)
	dir := filepath.Join(tasksDir, "alpha")
	writeFile(t, filepath.Join(dir, "1.json"), map[string]any{"id": "1", "subject": "first", "status": "pending"})
	writeFile(t, filepath.Join(dir, "2.json"), map[string]any{"id": "2", "subject": "second", "status": "in_progress"})
	if err := os.WriteFile(filepath.Join(dir, "2.json.lock"), []byte(""), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "3.json"), []byte("{corrupt"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	tasks := r.Tasks("alpha")
	if len(tasks) != 2 {
		t.Fatalf("tasks: got %d, want 2", len(tasks))
	}
	if tasks[0].ID != "1" || tasks[1].ID != "2" {
		t.Errorf("order: got %q, %q", tasks[0].ID, tasks[1].ID)
	}
}

func TestTasks_DefaultsIDAndStatus(t *testing.T) {
	r, _, tasksDir := newTestReader(t)
	writeFile(t, filepath.Join(tasksDir, "alpha", "7.json"), map[string]any{"subject": "bare"})

	tasks := r.Tasks("alpha")
	if len(tasks) != 1 {
		t.Fatalf("tasks: got %d, want 1", len(tasks))
	}
	if tasks[0].ID != "7" {
		t.Errorf("id: got %q, want %q", tasks[0].ID, "7")
	}
	if tasks[0].Status != model.StatusPending {
		t.Errorf("status: got %q, want pending", tasks[0].Status)
	}
}

func TestInbox_ClassifiesMessageTypes(t *testing.T) {
	r, teamsDir, _ := newTestReader(t)
	inbox := []map[string]any{
		{"from": "lead", "text": "hello there", "timestamp": "2025-06-01T10:00:00.000Z", "read": true},
		{"from": "worker", "text": `{"type":"permission_request","tool_name":"Bash","request_id":"r1","tool_use_id":"t1","description":"run tests"}`, "timestamp": "2025-06-01T10:01:00.000Z"},
		{"from": "lead", "text": `{"type":"shutdown_request","requestId":"s1"}`, "timestamp": "2025-06-01T10:02:00.000Z"},
		{"from": "worker", "text": `{"no_type_field":1}`, "timestamp": "2025-06-01T10:03:00.000Z"},
	}
	writeFile(t, filepath.Join(teamsDir, "alpha", "inboxes", "lead.json"), inbox)

	messages := r.Inbox("alpha", "lead")
	if len(messages) != 4 {
		t.Fatalf("messages: got %d, want 4", len(messages))
	}
	wantTypes := []model.MessageType{
		model.MessagePlain,
		model.MessagePermissionRequest,
		model.MessageShutdownRequest,
		model.MessagePlain,
	}
	for i, want := range wantTypes {
		if messages[i].MessageType != want {
			t.Errorf("message %d type: got %q, want %q", i, messages[i].MessageType, want)
		}
	}
	if messages[1].ParsedContent["tool_name"] != "Bash" {
		t.Errorf("parsed content: got %v", messages[1].ParsedContent)
	}
	for _, m := range messages {
		if m.TargetAgent != "lead" {
			t.Errorf("target agent: got %q, want lead", m.TargetAgent)
		}
	}
}

func TestAllMessages_SortedAscending(t *testing.T) {
	r, teamsDir, _ := newTestReader(t)
	writeFile(t, filepath.Join(teamsDir, "alpha", "inboxes", "a.json"), []map[string]any{
		{"from": "b", "text": "late", "timestamp": "2025-06-01T12:00:00.000Z"},
	})
	writeFile(t, filepath.Join(teamsDir, "alpha", "inboxes", "b.json"), []map[string]any{
		{"from": "a", "text": "early", "timestamp": "2025-06-01T09:00:00.000Z"},
		{"from": "a", "text": "middle", "timestamp": "2025-06-01T10:30:00.000Z"},
	})

	all := r.AllMessages("alpha")
	if len(all) != 3 {
		t.Fatalf("messages: got %d, want 3", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].Timestamp > all[i].Timestamp {
			t.Errorf("messages out of order at %d: %q > %q", i, all[i-1].Timestamp, all[i].Timestamp)
		}
	}
}

func TestTeamSummary(t *testing.T) {
	r, teamsDir, tasksDir := newTestReader(t)
	writeFile(t, filepath.Join(teamsDir, "alpha", "config.json"), map[string]any{
		"name": "alpha", "createdAt": 1, "leadAgentId": "l",
		"members": []map[string]any{{"name": "lead"}, {"name": "worker"}},
	})
	writeFile(t, filepath.Join(tasksDir, "alpha", "1.json"), map[string]any{"id": "1", "status": "completed"})
	writeFile(t, filepath.Join(tasksDir, "alpha", "2.json"), map[string]any{"id": "2", "status": "pending"})
	writeFile(t, filepath.Join(teamsDir, "alpha", "inboxes", "lead.json"), []map[string]any{
		{"from": "worker", "text": "hi", "timestamp": "2025-06-01T10:00:00.000Z", "read": false},
	})

	s := r.TeamSummary("alpha")
	if s == nil {
		t.Fatal("expected summary")
	}
	if s.MemberCount != 2 || s.TotalTasks != 2 {
		t.Errorf("summary: %+v", s)
	}
	if s.TaskCounts.Completed != 1 || s.TaskCounts.Pending != 1 {
		t.Errorf("counts: %+v", s.TaskCounts)
	}
	if !s.HasUnreadMessages {
		t.Error("expected unread messages")
	}

	if r.TeamSummary("ghost") != nil {
		t.Error("summary for absent team should be nil")
	}
}
