package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dchan/teamwatch/internal/approval"
	"github.com/dchan/teamwatch/internal/model"
	"github.com/dchan/teamwatch/internal/seed"
	"github.com/dchan/teamwatch/internal/server"
	"github.com/dchan/teamwatch/internal/store"
	"github.com/dchan/teamwatch/internal/timeline"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "seed":
		runSeed(os.Args[2:])
	case "version":
		fmt.Printf("teamwatch %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`teamwatch - agent team monitoring dashboard

Usage:
  teamwatch serve [--config path]         Run the HTTP server and background services
  teamwatch seed [--output-dir d] [--clean]  Write or remove fixture data
  teamwatch version                       Print version
  teamwatch help                          Show this help`)
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath(), "path to config.yaml")
	fs.Parse(args)

	cfg, err := model.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := log.New(os.Stdout, "teamwatch ", log.LstdFlags|log.LUTC)

	reader := store.NewReader(cfg.Data.TeamsDir, cfg.Data.TasksDir, logger)
	inbox := store.NewInboxWriter(cfg.Data.TeamsDir, logger)
	members := store.NewConfigWriter(cfg.Data.TeamsDir, logger)
	tracker := timeline.New(cfg.Monitor.TimelineMaxEvents)
	settings := approval.NewSettingsStore(cfg.Data.SettingsPath, logger)
	approvals := approval.NewService(reader, inbox, settings,
		time.Duration(cfg.Approval.IntervalSec)*time.Second, logger)
	srv := server.New(cfg, reader, inbox, members, tracker, settings, approvals, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(ctx)
	})
	g.Go(func() error {
		approvals.Loop(ctx)
		return nil
	})
	if cfg.Watcher.Enabled {
		watcher, err := server.NewTaskWatcher(cfg.Data.TasksDir, reader, tracker, logger)
		if err != nil {
			logger.Printf("WARN main: task watcher unavailable: %v", err)
		} else {
			g.Go(func() error {
				return watcher.Run(ctx)
			})
		}
	}

	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "serve: %v\n", err)
		os.Exit(1)
	}
}

func runSeed(args []string) {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	outputDir := fs.String("output-dir", defaultDataDir(), "base directory for teams/ and tasks/")
	clean := fs.Bool("clean", false, "remove seed data instead of creating it")
	fs.Parse(args)

	if *clean {
		removed, err := seed.Clean(*outputDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "clean seed data: %v\n", err)
			os.Exit(1)
		}
		if removed {
			fmt.Printf("Removed seed team %q from %s\n", seed.TeamName, *outputDir)
		} else {
			fmt.Println("No seed data found to clean")
		}
		return
	}

	if err := seed.Write(*outputDir, time.Now()); err != nil {
		fmt.Fprintf(os.Stderr, "write seed data: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote seed team %q to %s\n", seed.TeamName, *outputDir)
}

func defaultConfigPath() string {
	if p := os.Getenv("TEAMWATCH_CONFIG"); p != "" {
		return p
	}
	return "config.yaml"
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".claude"
	}
	return home + "/.claude"
}
