package cmd

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"ray/logging"
	"ray/runner"
)

// Settings holds the application settings. Project definitions live in the
// projects file; everything else comes from here.
type Settings struct {
	ProjectsFile  string               `mapstructure:"projects_file"`
	DataDir       string               `mapstructure:"data_dir"`
	WorkspaceRoot string               `mapstructure:"workspace_root"`
	History       bool                 `mapstructure:"history"`
	Log           LogSettings          `mapstructure:"log"`
	Timeouts      runner.StageTimeouts `mapstructure:"timeouts"`
	Server        ServerSettings       `mapstructure:"server"`
}

// LogSettings holds logging configuration.
type LogSettings struct {
	Level   string `mapstructure:"level"`
	Format  string `mapstructure:"format"`
	Dir     string `mapstructure:"dir"`
	MaxSize string `mapstructure:"max_size"`
}

// ServerSettings holds HTTP server configuration.
type ServerSettings struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	EnvFile         string        `mapstructure:"env_file"`
}

// Address returns the server address in host:port format.
func (s ServerSettings) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DBPath is where run history is stored.
func (s *Settings) DBPath() string {
	return filepath.Join(s.DataDir, "ray.db")
}

// LogOptions returns the logger options for the application log.
func (s *Settings) LogOptions() (logging.Options, error) {
	maxSize, err := logging.ParseSize(s.Log.MaxSize)
	if err != nil {
		return logging.Options{}, fmt.Errorf("log.max_size: %w", err)
	}
	return logging.Options{
		Level:   s.Log.Level,
		Format:  s.Log.Format,
		Dir:     s.Log.Dir,
		MaxSize: maxSize,
	}, nil
}

// ProjectLogOptions applies a project's internal settings on top of the
// application log options.
func ProjectLogOptions(base logging.Options, cfg runner.ProjectConfig) logging.Options {
	opts := base
	if in := cfg.Internal; in != nil {
		if in.LogLevel != "" {
			opts.Level = in.LogLevel
		}
		if in.LogDir != "" {
			opts.Dir = in.LogDir
		}
		if in.MaxLogDirSize != 0 {
			opts.MaxSize = in.MaxLogDirSize
		}
	}
	return opts
}

// LoadSettings loads settings from file and environment.
func LoadSettings(configPath string) (*Settings, error) {
	v := viper.New()

	v.SetDefault("projects_file", "ray.config.json")
	v.SetDefault("data_dir", "./data")
	v.SetDefault("workspace_root", runner.DefaultWorkspaceRoot)
	v.SetDefault("history", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.dir", runner.DefaultLogDir)
	v.SetDefault("log.max_size", "5MB")
	v.SetDefault("timeouts.fetch", "10m")
	v.SetDefault("timeouts.build", "30m")
	v.SetDefault("timeouts.image", "30m")
	v.SetDefault("timeouts.deploy", "5m")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.env_file", ".env")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("failed to parse settings file: %w", err)
			}
			// a missing settings file means defaults
		}
	}

	v.SetEnvPrefix("RAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	return &s, nil
}
