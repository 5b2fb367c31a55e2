package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"ray/runner/process"
)

// ImageBuildMaxOutput caps the captured output of docker build.
const ImageBuildMaxOutput = 1024 * 1024

// stageExecutor performs the side effect of each stage through a process
// runner.
type stageExecutor struct {
	runner process.Runner
	log    *slog.Logger
	output io.Writer
}

func (s *stageExecutor) run(ctx context.Context, cmd process.Command, opts ...process.Option) (*process.Result, error) {
	if s.output != nil {
		opts = append(opts, process.WithStream(s.output))
	}
	s.log.Debug("executing", "command", cmd.String())
	return s.runner.Run(ctx, cmd, opts...)
}

// execute dispatches one stage.
func (s *stageExecutor) execute(ctx context.Context, stage Stage, ec ExecutionContext) (string, error) {
	switch stage {
	case StageFetch:
		return s.fetch(ctx, ec)
	case StageBuild:
		return s.build(ctx, ec)
	case StageImageBuild:
		return s.buildImage(ctx, ec)
	case StageDeploy:
		return s.deploy(ctx, ec)
	}
	return "", fmt.Errorf("unknown stage %q", stage)
}

// fetch clones the repository into an empty workspace. Any previous
// workspace of the same project is removed first.
func (s *stageExecutor) fetch(ctx context.Context, ec ExecutionContext) (string, error) {
	if err := os.RemoveAll(ec.Workspace); err != nil {
		return "", &StageError{Kind: FetchFailure, Stage: StageFetch, Cause: "failed to remove previous workspace", Err: err}
	}
	if err := os.MkdirAll(ec.Workspace, 0755); err != nil {
		return "", &StageError{Kind: FetchFailure, Stage: StageFetch, Cause: "failed to create workspace", Err: err}
	}

	s.log.Info("cloning repository", "repo", ec.Repo, "branch", ec.Branch, "workspace", ec.Workspace)
	res, err := s.run(ctx, gitClone(ec.Repo, ec.Branch, ec.Workspace))
	if err != nil {
		return outputOf(err), stageFailure(FetchFailure, StageFetch, "git clone failed", err)
	}
	s.log.Info("repository cloned")
	return res.Output, nil
}

// build runs the configured build command inside the workspace.
func (s *stageExecutor) build(ctx context.Context, ec ExecutionContext) (string, error) {
	s.log.Info("running build command", "command", ec.BuildCommand)

	opts := []process.Option{process.WithDir(ec.Workspace), process.WithEnv(ec.Env)}
	if ec.EnvFile != "" {
		opts = append(opts, process.WithEnvFile(ec.EnvFile))
	}

	res, err := s.run(ctx, process.Shell(ec.BuildCommand), opts...)
	if err != nil {
		return outputOf(err), stageFailure(BuildFailure, StageBuild, "build command failed", err)
	}
	s.log.Info("build completed")
	return res.Output, nil
}

// buildImage builds and tags the image of a docker project.
func (s *stageExecutor) buildImage(ctx context.Context, ec ExecutionContext) (string, error) {
	spec, ok := ec.Docker.(ContainerSpec)
	if !ok {
		return "", &StageError{Kind: ImageBuildFailure, Stage: StageImageBuild, Cause: fmt.Sprintf("image build requires a docker spec, got %s", kindOf(ec.Docker))}
	}

	dockerfile := resolvePath(ec.Workspace, spec.Dockerfile)
	s.log.Info("building docker image", "image", spec.Image, "dockerfile", dockerfile)

	res, err := s.run(ctx, dockerBuild(spec.Image, dockerfile, ec.Workspace), process.WithMaxOutput(ImageBuildMaxOutput))
	if err != nil {
		return outputOf(err), stageFailure(ImageBuildFailure, StageImageBuild, "docker build failed", err)
	}
	s.log.Info("docker image built", "image", spec.Image)
	return res.Output, nil
}

// resolvePath resolves p against the workspace unless it is absolute.
func resolvePath(workspace, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(workspace, p)
}

func stageFailure(kind FailureKind, stage Stage, cause string, err error) *StageError {
	return &StageError{Kind: kind, Stage: stage, Cause: cause, Output: outputOf(err), Err: err}
}

func outputOf(err error) string {
	var exitErr *process.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Output
	}
	return ""
}

func kindOf(spec DockerSpec) string {
	if spec == nil {
		return "none"
	}
	return spec.Kind()
}
