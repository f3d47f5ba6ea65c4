// Package server exposes the monitoring API over HTTP. All state is
// derived on request from the on-disk files plus the in-memory tracker
// and approval log; nothing here caches between requests.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dchan/teamwatch/internal/approval"
	"github.com/dchan/teamwatch/internal/model"
	"github.com/dchan/teamwatch/internal/monitor"
	"github.com/dchan/teamwatch/internal/store"
	"github.com/dchan/teamwatch/internal/timeline"
)

var identifierRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Server wires the readers, writers, tracker, and approval service
// behind a chi router.
type Server struct {
	cfg       model.Config
	reader    *store.Reader
	inbox     *store.InboxWriter
	members   *store.ConfigWriter
	tracker   *timeline.Tracker
	settings  *approval.SettingsStore
	approvals *approval.Service
	logger    *log.Logger
	now       func() time.Time

	httpServer *http.Server
}

func New(
	cfg model.Config,
	reader *store.Reader,
	inbox *store.InboxWriter,
	members *store.ConfigWriter,
	tracker *timeline.Tracker,
	settings *approval.SettingsStore,
	approvals *approval.Service,
	logger *log.Logger,
) *Server {
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	s := &Server{
		cfg:       cfg,
		reader:    reader,
		inbox:     inbox,
		members:   members,
		tracker:   tracker,
		settings:  settings,
		approvals: approvals,
		logger:    logger,
		now:       time.Now,
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler builds the route table. Exposed for httptest.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(corsMiddleware)

	r.Get("/api/teams", s.handleListTeams)
	r.Route("/api/teams/{name}", func(r chi.Router) {
		r.Get("/", s.handleTeamDetail)
		r.Get("/tasks", s.handleTasks)
		r.Get("/messages", s.handleMessages)
		r.Get("/timeline", s.handleTimeline)
		r.Get("/activity", s.handleActivity)
		r.Get("/agent-timeline", s.handleAgentTimeline)
		r.Get("/alerts", s.handleAlerts)
		r.Get("/action-queue", s.handleActionQueue)
		r.Get("/health", s.handleHealth)
		r.Get("/snapshot", s.handleSnapshot)

		r.Post("/messages/{agent}", s.requireKey(s.handleSendMessage))
		r.Post("/permissions/{agent}/approve", s.requireKey(s.handlePermission(true)))
		r.Post("/permissions/{agent}/deny", s.requireKey(s.handlePermission(false)))
		r.Post("/members/{agent}/remove", s.requireKey(s.handleRemoveMember))
	})

	r.Get("/api/settings/auto-approval", s.handleGetSettings)
	r.Put("/api/settings/auto-approval", s.requireKey(s.handlePutSettings))
	r.Get("/api/auto-approvals", s.handleApprovalLog)

	if dir := s.cfg.Server.StaticDir; dir != "" {
		if _, err := os.Stat(dir); err == nil {
			fs := http.FileServer(http.Dir(dir))
			r.Handle("/static/*", http.StripPrefix("/static/", fs))
			r.Get("/", func(w http.ResponseWriter, req *http.Request) {
				http.ServeFile(w, req, filepath.Join(dir, "index.html"))
			})
		}
	}
	return r
}

// ListenAndServe runs until ctx is cancelled, then drains in-flight
// requests before returning.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("INFO server: listening on %s", s.cfg.Server.Addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := s.httpServer.Shutdown(shutdownCtx)
		s.logger.Printf("INFO server: stopped")
		return err
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// requireKey gates write endpoints on the X-API-Key header. An empty
// configured key disables the check.
func (s *Server) requireKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := s.cfg.Server.WriteAPIKey
		if key != "" && r.Header.Get("X-API-Key") != key {
			writeError(w, http.StatusUnauthorized, "invalid or missing API key")
			return
		}
		next(w, r)
	}
}

// teamParam validates the {name} path segment and loads the team
// config. Writes the error response itself when either step fails.
func (s *Server) teamParam(w http.ResponseWriter, r *http.Request) (string, *model.TeamConfig, bool) {
	name := chi.URLParam(r, "name")
	if !identifierRe.MatchString(name) {
		writeError(w, http.StatusBadRequest, "invalid team name")
		return "", nil, false
	}
	cfg := s.reader.TeamConfig(name)
	if cfg == nil {
		writeError(w, http.StatusNotFound, "team not found")
		return "", nil, false
	}
	return name, cfg, true
}

func agentParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	agent := chi.URLParam(r, "agent")
	if !identifierRe.MatchString(agent) {
		writeError(w, http.StatusBadRequest, "invalid agent name")
		return "", false
	}
	return agent, true
}

// visibleTasks polls the tracker with the full task list, then strips
// internal bookkeeping tasks from what the API reports.
func (s *Server) visibleTasks(team string) []model.Task {
	all := s.reader.Tasks(team)
	s.tracker.Poll(team, all)
	visible := make([]model.Task, 0, len(all))
	for _, t := range all {
		if !t.Internal() {
			visible = append(visible, t)
		}
	}
	return visible
}

type teamListEntry struct {
	model.TeamSummary
	HealthScore int    `json:"health_score"`
	HealthColor string `json:"health_color"`
}

func (s *Server) handleListTeams(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	entries := []teamListEntry{}
	for _, name := range s.reader.ListTeams() {
		summary := s.reader.TeamSummary(name)
		if summary == nil {
			continue
		}
		health := s.teamHealth(name, s.reader.TeamConfig(name), now)
		entries = append(entries, teamListEntry{
			TeamSummary: *summary,
			HealthScore: health.Overall,
			HealthColor: health.Color,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"teams": entries})
}

func (s *Server) handleTeamDetail(w http.ResponseWriter, r *http.Request) {
	_, cfg, ok := s.teamParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"team": cfg})
}

type taskView struct {
	model.Task
	StatusDurationSeconds *int `json:"status_duration_seconds,omitempty"`
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	name, _, ok := s.teamParam(w, r)
	if !ok {
		return
	}
	tasks := s.visibleTasks(name)
	views := make([]taskView, 0, len(tasks))
	for _, t := range tasks {
		view := taskView{Task: t}
		if secs, known := s.tracker.StatusDuration(name, t.ID); known {
			d := secs
			view.StatusDurationSeconds = &d
		}
		views = append(views, view)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tasks":  views,
		"counts": model.CountTasks(tasks),
	})
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	name, _, ok := s.teamParam(w, r)
	if !ok {
		return
	}
	messages := s.reader.AllMessages(name)
	if messages == nil {
		messages = []model.InboxMessage{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	name, _, ok := s.teamParam(w, r)
	if !ok {
		return
	}
	s.tracker.Poll(name, s.reader.Tasks(name))
	limit := queryInt(r, "limit", 50)
	events := s.tracker.Events(name, limit)
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	name, cfg, ok := s.teamParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"agents": s.teamActivity(name, cfg, s.now()),
	})
}

func (s *Server) handleAgentTimeline(w http.ResponseWriter, r *http.Request) {
	name, cfg, ok := s.teamParam(w, r)
	if !ok {
		return
	}
	s.tracker.Poll(name, s.reader.Tasks(name))
	messages := s.reader.AllMessages(name)
	events := s.tracker.Events(name, -1)
	writeJSON(w, http.StatusOK, BuildTimelinePayload(cfg, messages, events))
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	name, cfg, ok := s.teamParam(w, r)
	if !ok {
		return
	}
	now := s.now()
	pending := monitor.PendingPermissions(s.reader.AllMessages(name))
	if pending == nil {
		pending = []model.PermissionAlert{}
	}
	stalled := []string{}
	for _, a := range s.teamActivity(name, cfg, now) {
		if a.IsStalled {
			stalled = append(stalled, a.Name)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"permissions":    pending,
		"stalled_agents": stalled,
	})
}

func (s *Server) handleActionQueue(w http.ResponseWriter, r *http.Request) {
	name, cfg, ok := s.teamParam(w, r)
	if !ok {
		return
	}
	now := s.now()
	tasks := s.visibleTasks(name)
	pending := monitor.PendingPermissions(s.reader.AllMessages(name))
	activity := s.teamActivity(name, cfg, now)
	items := monitor.BuildActionQueue(pending, activity, tasks, s.cfg.Monitor.StallThresholdMin*60, now)
	if items == nil {
		items = []model.ActionQueueItem{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":        items,
		"generated_at": model.FormatTimestamp(now),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	name, cfg, ok := s.teamParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.teamHealth(name, cfg, s.now()))
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	name, cfg, ok := s.teamParam(w, r)
	if !ok {
		return
	}
	now := s.now()
	tasks := s.visibleTasks(name)
	counts := model.CountTasks(tasks)
	messages := s.reader.AllMessages(name)
	pending := monitor.PendingPermissions(messages)
	if pending == nil {
		pending = []model.PermissionAlert{}
	}
	activity := s.teamActivity(name, cfg, now)
	items := monitor.BuildActionQueue(pending, activity, tasks, s.cfg.Monitor.StallThresholdMin*60, now)
	if items == nil {
		items = []model.ActionQueueItem{}
	}
	stalled := []string{}
	for _, a := range activity {
		if a.IsStalled {
			stalled = append(stalled, a.Name)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"team":                  cfg,
		"task_counts":           counts,
		"permissions":           pending,
		"stalled_agents":        stalled,
		"agents":                activity,
		"action_queue":          items,
		"health":                monitor.ComputeHealthScore(pending, activity, tasks, counts, now),
		"stall_threshold_min":   s.cfg.Monitor.StallThresholdMin,
		"auto_approve_enabled":  s.settings.Get().Enabled,
		"recent_auto_approvals": s.approvals.Recent(60, 20),
	})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.settings.Get())
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled *bool    `json:"auto_approve_enabled"`
		Tools   []string `json:"auto_approve_tools"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	writeJSON(w, http.StatusOK, s.settings.Update(body.Enabled, body.Tools))
}

func (s *Server) handleApprovalLog(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	entries := s.approvals.Log(limit)
	if entries == nil {
		entries = []model.AutoApprovalLogEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"log": entries})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	name, _, ok := s.teamParam(w, r)
	if !ok {
		return
	}
	agent, ok := agentParam(w, r)
	if !ok {
		return
	}
	var body struct {
		Text string `json:"text"`
		From string `json:"from"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	if body.From == "" {
		body.From = "user"
	}
	if !s.inbox.SendMessage(name, agent, body.From, body.Text) {
		writeError(w, http.StatusInternalServerError, "failed to write message")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handlePermission(approved bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, _, ok := s.teamParam(w, r)
		if !ok {
			return
		}
		agent, ok := agentParam(w, r)
		if !ok {
			return
		}
		var body struct {
			RequestID string `json:"request_id"`
			ToolUseID string `json:"tool_use_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.RequestID == "" {
			writeError(w, http.StatusBadRequest, "request_id is required")
			return
		}
		if !s.inbox.SendPermissionResponse(name, agent, body.RequestID, body.ToolUseID, approved) {
			writeError(w, http.StatusInternalServerError, "failed to write response")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "approved": approved})
	}
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	name, cfg, ok := s.teamParam(w, r)
	if !ok {
		return
	}
	agent, ok := agentParam(w, r)
	if !ok {
		return
	}
	var target *model.TeamMember
	for i := range cfg.Members {
		if cfg.Members[i].Name == agent {
			target = &cfg.Members[i]
			break
		}
	}
	if target == nil {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}
	// The lead coordinates everyone else; removing it orphans the team.
	if target.AgentType == "team-lead" || target.AgentID == cfg.LeadAgentID {
		writeError(w, http.StatusBadRequest, "cannot remove the team lead")
		return
	}
	if !s.members.RemoveMember(name, agent) {
		writeError(w, http.StatusInternalServerError, "failed to update config")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// teamActivity derives per-agent summaries for one team.
func (s *Server) teamActivity(team string, cfg *model.TeamConfig, now time.Time) []model.AgentActivity {
	tasks := s.visibleTasks(team)
	messages := s.reader.AllMessages(team)
	agents := monitor.ComputeAgentActivity(team, cfg, tasks, messages, s.tracker, s.cfg.Monitor.StallThresholdMin, now)
	if agents == nil {
		agents = []model.AgentActivity{}
	}
	return agents
}

func (s *Server) teamHealth(team string, cfg *model.TeamConfig, now time.Time) model.HealthScore {
	tasks := s.visibleTasks(team)
	counts := model.CountTasks(tasks)
	messages := s.reader.AllMessages(team)
	pending := monitor.PendingPermissions(messages)
	activity := monitor.ComputeAgentActivity(team, cfg, tasks, messages, s.tracker, s.cfg.Monitor.StallThresholdMin, now)
	return monitor.ComputeHealthScore(pending, activity, tasks, counts, now)
}

// BuildTimelinePayload adapts the agent timeline for the wire; a nil
// timeline (unknown team config) becomes an empty payload.
func BuildTimelinePayload(cfg *model.TeamConfig, messages []model.InboxMessage, events []timeline.Event) *model.AgentTimeline {
	tl := monitor.BuildAgentTimeline(cfg, messages, events)
	if tl == nil {
		tl = &model.AgentTimeline{Agents: []model.AgentTimelineEntry{}}
	}
	return tl
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "error": message})
}

func queryInt(r *http.Request, key string, def int) int {
	if raw := r.URL.Query().Get(key); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			return n
		}
	}
	return def
}
