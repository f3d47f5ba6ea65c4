// Package store reads and writes the on-disk team, task, and inbox
// files owned by the agent runtime. Readers return fresh values on
// every call; missing or corrupt files degrade to empty results.
package store

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dchan/teamwatch/internal/model"
)

// Reader is the snapshot reader over a teams/tasks directory pair.
type Reader struct {
	teamsDir string
	tasksDir string
	logger   *log.Logger
}

func NewReader(teamsDir, tasksDir string, logger *log.Logger) *Reader {
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	return &Reader{teamsDir: teamsDir, tasksDir: tasksDir, logger: logger}
}

// ListTeams returns the team directory names, sorted.
func (r *Reader) ListTeams() []string {
	entries, err := os.ReadDir(r.teamsDir)
	if err != nil {
		return nil
	}
	var teams []string
	for _, e := range entries {
		if e.IsDir() {
			teams = append(teams, e.Name())
		}
	}
	sort.Strings(teams)
	return teams
}

// TeamConfig reads teams/<team>/config.json. Returns nil when the team
// or its config is absent or unreadable.
func (r *Reader) TeamConfig(team string) *model.TeamConfig {
	path := filepath.Join(r.teamsDir, team, "config.json")
	var cfg model.TeamConfig
	if !r.readJSON(path, &cfg) {
		return nil
	}
	if cfg.Name == "" {
		cfg.Name = team
	}
	return &cfg
}

// Tasks reads all task JSON files under tasks/<team>/, sorted by file
// name. Lock files and unparseable entries are skipped.
func (r *Reader) Tasks(team string) []model.Task {
	dir := filepath.Join(r.tasksDir, team)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".json" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var tasks []model.Task
	for _, name := range names {
		var t model.Task
		if !r.readJSON(filepath.Join(dir, name), &t) {
			continue
		}
		if t.ID == "" {
			t.ID = strings.TrimSuffix(name, ".json")
		}
		if t.Status == "" {
			t.Status = model.StatusPending
		}
		tasks = append(tasks, t)
	}
	return tasks
}

// Inbox reads one agent's inbox, classifying each message's embedded
// type and attaching the owner as TargetAgent.
func (r *Reader) Inbox(team, agent string) []model.InboxMessage {
	path := filepath.Join(r.teamsDir, team, "inboxes", agent+".json")
	var raw []rawInboxMessage
	if !r.readJSON(path, &raw) {
		return nil
	}

	messages := make([]model.InboxMessage, 0, len(raw))
	for _, m := range raw {
		msgType, parsed := classifyMessageText(m.Text)
		messages = append(messages, model.InboxMessage{
			FromAgent:     m.From,
			Text:          m.Text,
			Timestamp:     m.Timestamp,
			Color:         m.Color,
			Read:          m.Read,
			MessageType:   msgType,
			ParsedContent: parsed,
			TargetAgent:   agent,
		})
	}
	return messages
}

// AllMessages aggregates every inbox in a team, sorted ascending by
// timestamp (timestamps are lexically sortable by construction).
func (r *Reader) AllMessages(team string) []model.InboxMessage {
	dir := filepath.Join(r.teamsDir, team, "inboxes")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var all []model.InboxMessage
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		agent := strings.TrimSuffix(e.Name(), ".json")
		all = append(all, r.Inbox(team, agent)...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Timestamp < all[j].Timestamp
	})
	return all
}

// TeamSummary builds the list-page summary for one team. Returns nil
// when the team has no config.
func (r *Reader) TeamSummary(team string) *model.TeamSummary {
	cfg := r.TeamConfig(team)
	if cfg == nil {
		return nil
	}

	tasks := r.Tasks(team)
	counts := model.CountTasks(tasks)

	hasUnread := false
	for _, m := range r.AllMessages(team) {
		if !m.Read {
			hasUnread = true
			break
		}
	}

	return &model.TeamSummary{
		Name:              cfg.Name,
		Description:       cfg.Description,
		CreatedAt:         cfg.CreatedAt,
		MemberCount:       len(cfg.Members),
		TaskCounts:        counts,
		TotalTasks:        len(tasks),
		HasUnreadMessages: hasUnread,
		Members:           cfg.Members,
	}
}

// rawInboxMessage is the on-disk inbox record shape.
type rawInboxMessage struct {
	From      string `json:"from"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
	Color     string `json:"color,omitempty"`
	Read      bool   `json:"read"`
}

// classifyMessageText parses text as JSON once and classifies it. A JSON
// object carrying a string "type" field becomes that message type with
// its parsed payload; everything else is plain.
func classifyMessageText(text string) (model.MessageType, map[string]any) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "{") {
		return model.MessagePlain, nil
	}
	var parsed map[string]any
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return model.MessagePlain, nil
	}
	typ, ok := parsed["type"].(string)
	if !ok || typ == "" {
		return model.MessagePlain, nil
	}
	return model.MessageType(typ), parsed
}

func (r *Reader) readJSON(path string, out any) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			r.logger.Printf("WARN store: read %s: %v", path, err)
		}
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		r.logger.Printf("WARN store: parse %s: %v", path, err)
		return false
	}
	return true
}
