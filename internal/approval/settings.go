// Package approval implements the auto-approval pipeline: file-backed
// settings, the permission-matching service, and its background loop.
package approval

import (
	"encoding/json"
	"log"
	"os"
	"sync"

	"github.com/dchan/teamwatch/internal/jsonfile"
	"github.com/dchan/teamwatch/internal/model"
)

// DefaultAutoApproveTools is the allow-list applied when no settings
// file exists. Read-only tools only; anything that mutates state stays
// behind a human.
var DefaultAutoApproveTools = []string{"Read", "Glob", "Grep", "WebSearch", "WebFetch"}

// SettingsStore persists auto-approval settings to a single JSON file.
// A missing or corrupt file silently falls back to defaults.
type SettingsStore struct {
	path   string
	logger *log.Logger

	mu       sync.Mutex
	settings model.AutoApprovalSettings
}

func NewSettingsStore(path string, logger *log.Logger) *SettingsStore {
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	s := &SettingsStore{path: path, logger: logger}
	s.settings = s.load()
	return s
}

func defaultSettings() model.AutoApprovalSettings {
	return model.AutoApprovalSettings{
		Enabled: true,
		Tools:   append([]string(nil), DefaultAutoApproveTools...),
	}
}

// Get returns a copy of the current settings.
func (s *SettingsStore) Get() model.AutoApprovalSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Update applies the non-nil fields and persists to disk. The updated
// settings are returned even when the write fails; the failure is
// logged and the next Update retries.
func (s *SettingsStore) Update(enabled *bool, tools []string) model.AutoApprovalSettings {
	s.mu.Lock()
	defer s.mu.Unlock()

	if enabled != nil {
		s.settings.Enabled = *enabled
	}
	if tools != nil {
		s.settings.Tools = append([]string(nil), tools...)
	}
	if err := jsonfile.AtomicWrite(s.path, s.settings); err != nil {
		s.logger.Printf("ERROR approval: save settings %s: %v", s.path, err)
	}
	return s.snapshot()
}

func (s *SettingsStore) load() model.AutoApprovalSettings {
	settings := defaultSettings()
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Printf("WARN approval: load settings %s: %v", s.path, err)
		}
		return settings
	}
	// Unmarshal over the defaults so absent fields keep them. The
	// enabled flag needs a presence check: false and absent differ.
	var raw struct {
		Enabled *bool     `json:"auto_approve_enabled"`
		Tools   *[]string `json:"auto_approve_tools"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		s.logger.Printf("WARN approval: parse settings %s: %v", s.path, err)
		return settings
	}
	if raw.Enabled != nil {
		settings.Enabled = *raw.Enabled
	}
	if raw.Tools != nil {
		settings.Tools = append([]string(nil), (*raw.Tools)...)
	}
	return settings
}

func (s *SettingsStore) snapshot() model.AutoApprovalSettings {
	return model.AutoApprovalSettings{
		Enabled: s.settings.Enabled,
		Tools:   append([]string(nil), s.settings.Tools...),
	}
}
