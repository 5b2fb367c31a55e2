package runner

import (
	"io"
	"log/slog"
	"time"

	"ray/progress"
	"ray/runner/process"
	"ray/runner/storage"
)

// ProjectConfig describes one deployable project.
type ProjectConfig struct {
	Name         string            `yaml:"name" json:"name"`
	Repo         string            `yaml:"repo" json:"repo"`
	Branch       string            `yaml:"branch,omitempty" json:"branch,omitempty"`
	BuildCommand string            `yaml:"buildCommand,omitempty" json:"buildCommand,omitempty"`
	Docker       DockerSpec        `yaml:"-" json:"docker"`
	Env          map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	Internal     *Internal         `yaml:"internal,omitempty" json:"internal,omitempty"`
	Schedule     *Schedule         `yaml:"schedule,omitempty" json:"schedule,omitempty"`
}

// Internal holds optional per-project tuning.
type Internal struct {
	LogDir        string `yaml:"logdir,omitempty" json:"logdir,omitempty"`
	MaxLogDirSize int64  `yaml:"maxLogDirSize,omitempty" json:"maxLogDirSize,omitempty"`
	LogLevel      string `yaml:"logLevel,omitempty" json:"logLevel,omitempty"`
	EnvFilePath   string `yaml:"envFilePath,omitempty" json:"envFilePath,omitempty"`
	// LenientCleanup ignores every failure while stopping or removing the
	// previous container, not only "no such container".
	LenientCleanup bool `yaml:"lenientCleanup,omitempty" json:"lenientCleanup,omitempty"`
}

// Schedule triggers automatic redeploys in server mode. Exactly one of At
// ("HH:MM", once a day) or Every (a duration such as "1h30m") is used.
type Schedule struct {
	At    string `yaml:"at,omitempty" json:"at,omitempty"`
	Every string `yaml:"every,omitempty" json:"every,omitempty"`
}

// DockerSpec selects the deploy path. It is either a ContainerSpec or a
// ComposeSpec.
type DockerSpec interface {
	Kind() string
	isDockerSpec()
}

// ContainerSpec deploys a single container with a zero-downtime swap.
type ContainerSpec struct {
	Image         string   `json:"image"`
	ContainerName string   `json:"containername"`
	Dockerfile    string   `json:"dockerfile"`
	Networks      []string `json:"network,omitempty"`
	Volumes       []string `json:"volumes,omitempty"`
}

// ComposeSpec deploys a compose stack.
type ComposeSpec struct {
	ComposeFile string `json:"compose"`
}

func (ContainerSpec) Kind() string { return "docker" }
func (ComposeSpec) Kind() string   { return "compose" }

func (ContainerSpec) isDockerSpec() {}
func (ComposeSpec) isDockerSpec()   {}

// TempName is the name the new container runs under until it is promoted.
func (s ContainerSpec) TempName() string {
	return s.ContainerName + "-temp"
}

// ExecutionContext is derived from a ProjectConfig for one run and is not
// modified afterwards.
type ExecutionContext struct {
	Project        string
	Repo           string
	Branch         string
	BuildCommand   string
	Docker         DockerSpec
	Env            map[string]string
	Workspace      string
	EnvFile        string
	LogDir         string
	LenientCleanup bool
}

// Stage names one step of the pipeline.
type Stage string

const (
	StageFetch      Stage = "fetch"
	StageBuild      Stage = "build"
	StageImageBuild Stage = "image"
	StageDeploy     Stage = "deploy"
)

// Label is the short text shown to the progress reporter.
func (s Stage) Label() string {
	switch s {
	case StageFetch:
		return "Cloning repository..."
	case StageBuild:
		return "Building project..."
	case StageImageBuild:
		return "Building Docker image..."
	case StageDeploy:
		return "Deploying container..."
	}
	return string(s)
}

// Outcome statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
	StatusRunning = "running"
)

// StageOutcome is the result of one stage.
type StageOutcome struct {
	Stage    Stage         `json:"stage"`
	Status   string        `json:"status"`
	Duration time.Duration `json:"duration"`
	Output   string        `json:"output,omitempty"`
	Error    *StageError   `json:"error,omitempty"`
}

// PipelineResult aggregates the outcomes of one project run.
type PipelineResult struct {
	RunID    string         `json:"run_id"`
	Project  string         `json:"project"`
	State    State          `json:"state"`
	FailedAt Stage          `json:"failed_at,omitempty"`
	Outcomes []StageOutcome `json:"outcomes"`
	Duration time.Duration  `json:"duration"`
	Error    error          `json:"-"`
}

// Success reports whether every planned stage completed.
func (r *PipelineResult) Success() bool {
	return r.State == StateCompleted
}

// RunPipelineOptions configures the orchestrator.
type RunPipelineOptions struct {
	Runner   process.Runner   // Required
	Logger   *slog.Logger     // Optional, defaults to slog.Default()
	Progress progress.Reporter // Optional progress sink
	Storage  *storage.Storage  // Optional run history
	Timeouts StageTimeouts
	// WorkspaceRoot is where workspaces are created (default /tmp).
	WorkspaceRoot string
	// Output, when set, receives the live output of every command.
	Output io.Writer
}

// StageTimeouts bounds each stage. A zero value disables the timeout.
type StageTimeouts struct {
	Fetch      time.Duration `mapstructure:"fetch"`
	Build      time.Duration `mapstructure:"build"`
	ImageBuild time.Duration `mapstructure:"image"`
	Deploy     time.Duration `mapstructure:"deploy"`
}

// For returns the timeout for stage s.
func (t StageTimeouts) For(s Stage) time.Duration {
	switch s {
	case StageFetch:
		return t.Fetch
	case StageBuild:
		return t.Build
	case StageImageBuild:
		return t.ImageBuild
	case StageDeploy:
		return t.Deploy
	}
	return 0
}
