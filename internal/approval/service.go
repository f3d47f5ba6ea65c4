package approval

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"github.com/dchan/teamwatch/internal/model"
	"github.com/dchan/teamwatch/internal/monitor"
	"github.com/dchan/teamwatch/internal/store"
)

// logCapacity bounds the in-memory approval log. Oldest entries fall
// off; the log is not persisted.
const logCapacity = 500

// Service auto-approves pending permission requests for tools on the
// configured allow-list. Every approval is recorded once: request ids
// are deduplicated for the lifetime of the process so an approval
// message is never written twice, even if the request lingers in the
// inbox after the response.
type Service struct {
	reader   *store.Reader
	writer   *store.InboxWriter
	settings *SettingsStore
	logger   *log.Logger
	interval time.Duration
	now      func() time.Time

	mu           sync.Mutex
	processedIDs map[string]bool
	entries      []model.AutoApprovalLogEntry
}

func NewService(reader *store.Reader, writer *store.InboxWriter, settings *SettingsStore, interval time.Duration, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &Service{
		reader:       reader,
		writer:       writer,
		settings:     settings,
		logger:       logger,
		interval:     interval,
		now:          time.Now,
		processedIDs: make(map[string]bool),
	}
}

// ProcessPermissions approves the allow-listed alerts for one team and
// returns how many approvals were written. Requests whose response
// write fails are left unmarked so the next sweep retries them.
func (s *Service) ProcessPermissions(team string, pending []model.PermissionAlert) int {
	cfg := s.settings.Get()
	if !cfg.Enabled {
		return 0
	}
	allowed := make(map[string]bool, len(cfg.Tools))
	for _, tool := range cfg.Tools {
		allowed[tool] = true
	}

	approved := 0
	for _, alert := range pending {
		if alert.RequestID == "" || !allowed[alert.ToolName] {
			continue
		}
		if s.alreadyProcessed(alert.RequestID) {
			continue
		}
		if !s.writer.SendPermissionResponse(team, alert.AgentName, alert.RequestID, alert.ToolUseID, true) {
			s.logger.Printf("WARN approval: response write failed for %s/%s, will retry", team, alert.RequestID)
			continue
		}
		s.record(team, alert)
		approved++
		s.logger.Printf("INFO approval: auto-approved %s for %s/%s", alert.ToolName, team, alert.AgentName)
	}
	return approved
}

// Log returns the newest-first approval log, at most limit entries.
// limit <= 0 returns everything.
func (s *Service) Log(limit int) []model.AutoApprovalLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]model.AutoApprovalLogEntry, n)
	copy(out, s.entries[:n])
	return out
}

// Recent returns newest-first entries no older than maxAgeSeconds.
// Entries are stored newest-first, so the scan stops at the first
// entry past the cutoff.
func (s *Service) Recent(maxAgeSeconds, limit int) []model.AutoApprovalLogEntry {
	cutoff := model.FormatTimestamp(s.now().Add(-time.Duration(maxAgeSeconds) * time.Second))

	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.AutoApprovalLogEntry{}
	for _, e := range s.entries {
		if e.Timestamp < cutoff {
			break
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// Loop runs the approval sweep on a fixed interval until ctx is
// cancelled. One pass happens immediately on start.
func (s *Service) Loop(ctx context.Context) {
	s.logger.Printf("INFO approval: loop started (interval %s)", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep()
	for {
		select {
		case <-ctx.Done():
			s.logger.Printf("INFO approval: loop stopped")
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep processes every team once. A panic in one pass is contained so
// the loop keeps running.
func (s *Service) sweep() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Printf("ERROR approval: sweep panic: %v", r)
		}
	}()
	for _, team := range s.reader.ListTeams() {
		messages := s.reader.AllMessages(team)
		pending := monitor.PendingPermissions(messages)
		if len(pending) > 0 {
			s.ProcessPermissions(team, pending)
		}
	}
}

func (s *Service) alreadyProcessed(requestID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processedIDs[requestID]
}

func (s *Service) record(team string, alert model.PermissionAlert) {
	entry := model.AutoApprovalLogEntry{
		RequestID: alert.RequestID,
		AgentName: alert.AgentName,
		ToolName:  alert.ToolName,
		ToolUseID: alert.ToolUseID,
		TeamName:  team,
		Timestamp: model.FormatTimestamp(s.now()),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.processedIDs[alert.RequestID] = true
	s.entries = append([]model.AutoApprovalLogEntry{entry}, s.entries...)
	if len(s.entries) > logCapacity {
		s.entries = s.entries[:logCapacity]
	}
}
