package store

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dchan/teamwatch/internal/jsonfile"
	"github.com/dchan/teamwatch/internal/model"
)

// InboxWriter appends messages to agent inbox files. Each append is a
// whole-file rewrite, serialized by a single mutex per writer instance;
// cross-process writers are not coordinated.
type InboxWriter struct {
	teamsDir string
	logger   *log.Logger
	now      func() time.Time

	mu sync.Mutex
}

func NewInboxWriter(teamsDir string, logger *log.Logger) *InboxWriter {
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	return &InboxWriter{teamsDir: teamsDir, logger: logger, now: time.Now}
}

// SendMessage appends a message to the agent's inbox, creating the file
// and parent dirs if missing. Returns false on any write error.
func (w *InboxWriter) SendMessage(team, agent, fromName, text string) bool {
	path := filepath.Join(w.teamsDir, team, "inboxes", agent+".json")

	message := map[string]any{
		"from":      fromName,
		"text":      text,
		"timestamp": model.FormatTimestamp(w.now()),
		"read":      false,
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	var messages []map[string]any
	if data, err := os.ReadFile(path); err == nil {
		// A non-array inbox is treated as empty rather than fatal.
		if err := json.Unmarshal(data, &messages); err != nil {
			messages = nil
		}
	}
	messages = append(messages, message)

	if err := jsonfile.AtomicWrite(path, messages); err != nil {
		w.logger.Printf("ERROR store: write inbox %s: %v", path, err)
		return false
	}
	return true
}

// SendPermissionResponse writes a structured permission approval or
// denial to the agent's inbox.
func (w *InboxWriter) SendPermissionResponse(team, agent, requestID, toolUseID string, approved bool) bool {
	payload, err := json.Marshal(map[string]any{
		"type":        "permission_response",
		"request_id":  requestID,
		"tool_use_id": toolUseID,
		"approved":    approved,
	})
	if err != nil {
		return false
	}
	return w.SendMessage(team, agent, "user", string(payload))
}

// ConfigWriter performs read-modify-write edits on team config files.
type ConfigWriter struct {
	teamsDir string
	logger   *log.Logger

	mu sync.Mutex
}

func NewConfigWriter(teamsDir string, logger *log.Logger) *ConfigWriter {
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	return &ConfigWriter{teamsDir: teamsDir, logger: logger}
}

// RemoveMember deletes a member by name from the team's config.json.
// Returns false when the config is missing, the member is not present,
// or the write fails. The edit goes through the raw JSON document so
// fields teamwatch does not model survive untouched.
func (w *ConfigWriter) RemoveMember(team, agent string) bool {
	path := filepath.Join(w.teamsDir, team, "config.json")

	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		w.logger.Printf("ERROR store: parse config %s: %v", path, err)
		return false
	}

	members, _ := doc["members"].([]any)
	kept := make([]any, 0, len(members))
	for _, m := range members {
		obj, _ := m.(map[string]any)
		if name, _ := obj["name"].(string); name == agent {
			continue
		}
		kept = append(kept, m)
	}
	if len(kept) == len(members) {
		return false // member not found
	}
	doc["members"] = kept

	if err := jsonfile.AtomicWrite(path, doc); err != nil {
		w.logger.Printf("ERROR store: update config %s: %v", path, err)
		return false
	}
	return true
}
