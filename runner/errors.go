package runner

import (
	"errors"
	"fmt"
)

// FailureKind classifies why a pipeline stopped.
type FailureKind string

const (
	FetchFailure       FailureKind = "FetchFailure"
	BuildFailure       FailureKind = "BuildFailure"
	ImageBuildFailure  FailureKind = "ImageBuildFailure"
	DeployFailure      FailureKind = "DeployFailure"
	PromotionFailure   FailureKind = "PromotionFailure"
	ConfigurationError FailureKind = "ConfigurationError"
)

// StageError is the failure of one stage.
type StageError struct {
	Kind  FailureKind `json:"kind"`
	Stage Stage       `json:"stage"`
	Cause string      `json:"cause"`
	// Output is the tail of the failing command's output.
	Output string `json:"output,omitempty"`
	// TempContainer is set when a temporary container was left running.
	TempContainer string `json:"temp_container,omitempty"`
	Err           error  `json:"-"`
}

func (e *StageError) Error() string {
	msg := fmt.Sprintf("%s at %s: %s", e.Kind, e.Stage, e.Cause)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// ConfigError reports an invalid project configuration.
type ConfigError struct {
	Project string
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Project == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("project %q: %s: %s", e.Project, e.Field, e.Message)
}

// KindOf returns the failure kind carried by err, or "" if none.
func KindOf(err error) FailureKind {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Kind
	}
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return ConfigurationError
	}
	return ""
}
