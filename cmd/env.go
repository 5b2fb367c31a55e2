package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"ray/logging"
	"ray/runner"
	"ray/runner/process"
	"ray/runner/storage"
)

// Env carries what every command needs: settings, the application logger
// and the per-project loggers opened while the command runs.
type Env struct {
	Settings *Settings
	Log      *slog.Logger

	logOpts logging.Options

	mu       sync.Mutex
	closers  []io.Closer
	projects map[string]*slog.Logger
}

// Setup loads settings and builds the application logger.
func Setup(settingsPath string) (*Env, error) {
	settings, err := LoadSettings(settingsPath)
	if err != nil {
		return nil, err
	}

	opts, err := settings.LogOptions()
	if err != nil {
		return nil, err
	}
	log, closer, err := logging.New(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}

	return &Env{
		Settings: settings,
		Log:      log,
		logOpts:  opts,
		closers:  []io.Closer{closer},
		projects: make(map[string]*slog.Logger),
	}, nil
}

// Close releases every log file opened by the environment.
func (e *Env) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, c := range e.closers {
		c.Close()
	}
	e.closers = nil
}

// ProjectLogger returns the logger for one project. Projects without their
// own log settings share the application logger.
func (e *Env) ProjectLogger(cfg runner.ProjectConfig) *slog.Logger {
	opts := ProjectLogOptions(e.logOpts, cfg)
	if opts == e.logOpts {
		return e.Log
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if l, ok := e.projects[cfg.Name]; ok {
		return l
	}

	l, closer, err := logging.New(opts)
	if err != nil {
		e.Log.Warn("using the application logger", "project", cfg.Name, "error", err)
		return e.Log
	}
	e.closers = append(e.closers, closer)
	e.projects[cfg.Name] = l
	return l
}

// OpenStorage opens the run history database, or returns nil when history
// is disabled.
func (e *Env) OpenStorage() (*storage.Storage, error) {
	if !e.Settings.History {
		return nil, nil
	}
	if err := os.MkdirAll(e.Settings.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	store, err := storage.NewStorage(e.Settings.DBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return store, nil
}

// PipelineOptions returns the orchestrator options shared by all commands.
func (e *Env) PipelineOptions(store *storage.Storage) runner.RunPipelineOptions {
	return runner.RunPipelineOptions{
		Runner:        process.NewExecRunner(),
		Logger:        e.Log,
		Storage:       store,
		Timeouts:      e.Settings.Timeouts,
		WorkspaceRoot: e.Settings.WorkspaceRoot,
	}
}

// LoadProjects reads and validates the projects file. path overrides the
// one from the settings.
func (e *Env) LoadProjects(path string) (*runner.ProjectsConfig, error) {
	if path == "" {
		path = e.Settings.ProjectsFile
	}
	projects, err := runner.LoadProjects(path)
	if err != nil {
		return nil, err
	}
	e.Log.Debug("loaded projects", "file", path, "count", len(projects.Projects))
	return projects, nil
}
