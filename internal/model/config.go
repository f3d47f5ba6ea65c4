package model

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Data     DataConfig     `yaml:"data"`
	Monitor  MonitorConfig  `yaml:"monitor"`
	Approval ApprovalConfig `yaml:"approval"`
	Watcher  WatcherConfig  `yaml:"watcher"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Addr        string `yaml:"addr"`
	WriteAPIKey string `yaml:"write_api_key"`
	StaticDir   string `yaml:"static_dir"`
}

type DataConfig struct {
	TeamsDir     string `yaml:"teams_dir"`
	TasksDir     string `yaml:"tasks_dir"`
	SettingsPath string `yaml:"settings_path"`
}

type MonitorConfig struct {
	StallThresholdMin int `yaml:"stall_threshold_minutes"`
	TimelineMaxEvents int `yaml:"timeline_max_events"`
}

type ApprovalConfig struct {
	IntervalSec int `yaml:"interval_sec"`
}

type WatcherConfig struct {
	Enabled bool `yaml:"enabled"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the configuration used when no config.yaml is
// present. Data dirs follow the agent runtime's home layout.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".claude")
	return Config{
		Server: ServerConfig{Addr: ":5050"},
		Data: DataConfig{
			TeamsDir:     filepath.Join(base, "teams"),
			TasksDir:     filepath.Join(base, "tasks"),
			SettingsPath: filepath.Join(base, "agent-monitor-settings.json"),
		},
		Monitor: MonitorConfig{
			StallThresholdMin: 10,
			TimelineMaxEvents: 10000,
		},
		Approval: ApprovalConfig{IntervalSec: 3},
		Watcher:  WatcherConfig{Enabled: true},
		Logging:  LoggingConfig{Level: "info"},
	}
}

// LoadConfig reads path and overlays it on the defaults. A missing file
// is not an error; a malformed one is.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Server.Addr == "" {
		c.Server.Addr = def.Server.Addr
	}
	if c.Data.TeamsDir == "" {
		c.Data.TeamsDir = def.Data.TeamsDir
	}
	if c.Data.TasksDir == "" {
		c.Data.TasksDir = def.Data.TasksDir
	}
	if c.Data.SettingsPath == "" {
		c.Data.SettingsPath = def.Data.SettingsPath
	}
	if c.Monitor.StallThresholdMin <= 0 {
		c.Monitor.StallThresholdMin = def.Monitor.StallThresholdMin
	}
	if c.Monitor.TimelineMaxEvents <= 0 {
		c.Monitor.TimelineMaxEvents = def.Monitor.TimelineMaxEvents
	}
	if c.Approval.IntervalSec <= 0 {
		c.Approval.IntervalSec = def.Approval.IntervalSec
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
}
