package server

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/dchan/teamwatch/internal/store"
	"github.com/dchan/teamwatch/internal/timeline"
)

// TaskWatcher feeds task file changes into the tracker between HTTP
// polls, so status transitions get timestamped close to when they
// happen rather than when the next request arrives.
type TaskWatcher struct {
	tasksDir string
	reader   *store.Reader
	tracker  *timeline.Tracker
	logger   *log.Logger
	watcher  *fsnotify.Watcher
}

func NewTaskWatcher(tasksDir string, reader *store.Reader, tracker *timeline.Tracker, logger *log.Logger) (*TaskWatcher, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	tw := &TaskWatcher{
		tasksDir: tasksDir,
		reader:   reader,
		tracker:  tracker,
		logger:   logger,
		watcher:  w,
	}
	tw.addAll()
	return tw, nil
}

// addAll watches the tasks root plus every existing per-team subdir.
// New subdirs are picked up from Create events on the root.
func (tw *TaskWatcher) addAll() {
	if err := tw.watcher.Add(tw.tasksDir); err != nil {
		tw.logger.Printf("WARN watcher: add %s: %v", tw.tasksDir, err)
		return
	}
	entries, err := os.ReadDir(tw.tasksDir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			tw.addTeamDir(filepath.Join(tw.tasksDir, e.Name()))
		}
	}
}

func (tw *TaskWatcher) addTeamDir(dir string) {
	if err := tw.watcher.Add(dir); err != nil {
		tw.logger.Printf("WARN watcher: add %s: %v", dir, err)
	}
}

// Run consumes events until ctx is cancelled.
func (tw *TaskWatcher) Run(ctx context.Context) error {
	defer tw.watcher.Close()
	tw.logger.Printf("INFO watcher: watching %s", tw.tasksDir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-tw.watcher.Events:
			if !ok {
				return nil
			}
			tw.handleEvent(event)
		case err, ok := <-tw.watcher.Errors:
			if !ok {
				return nil
			}
			tw.logger.Printf("ERROR watcher: %v", err)
		}
	}
}

func (tw *TaskWatcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}
	rel, err := filepath.Rel(tw.tasksDir, event.Name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}

	if rel == filepath.Base(rel) {
		// Direct child of the root: a new team directory.
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			tw.addTeamDir(event.Name)
			tw.tracker.Poll(rel, tw.reader.Tasks(rel))
		}
		return
	}

	team := filepath.Dir(rel)
	if !strings.HasSuffix(event.Name, ".json") {
		return
	}
	// Re-read the whole team; the diff against the previous snapshot
	// yields only the changed tasks.
	tw.tracker.Poll(team, tw.reader.Tasks(team))
}
