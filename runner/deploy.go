package runner

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"ray/runner/process"
)

// deploy replaces the running deployment of a project. Docker projects get a
// zero-downtime swap, compose projects a single "compose up".
func (s *stageExecutor) deploy(ctx context.Context, ec ExecutionContext) (string, error) {
	switch spec := ec.Docker.(type) {
	case ContainerSpec:
		return s.swapContainer(ctx, ec, spec)
	case ComposeSpec:
		return s.composeUp(ctx, ec, spec)
	default:
		return "", &StageError{Kind: DeployFailure, Stage: StageDeploy, Cause: fmt.Sprintf("unsupported docker spec %s", kindOf(ec.Docker))}
	}
}

func (s *stageExecutor) composeUp(ctx context.Context, ec ExecutionContext, spec ComposeSpec) (string, error) {
	file := resolvePath(ec.Workspace, spec.ComposeFile)

	services, err := loadComposeServices(ctx, ec.Project, ec.Workspace, file)
	if err != nil {
		return "", &StageError{Kind: DeployFailure, Stage: StageDeploy, Cause: "invalid compose file " + file, Err: err}
	}
	s.log.Info("deploying with docker compose", "file", file, "services", strings.Join(services, ","))

	res, err := s.run(ctx, dockerComposeUp(file))
	if err != nil {
		return outputOf(err), stageFailure(DeployFailure, StageDeploy, "docker compose up failed", err)
	}
	s.log.Info("docker compose deployed")
	return res.Output, nil
}

// swapContainer starts the new container under a temporary name, attaches
// it to its networks, removes the previous container and promotes the new
// one by renaming it. Once the temporary container exists it is never
// removed; a failure after that point leaves it running for the operator.
func (s *stageExecutor) swapContainer(ctx context.Context, ec ExecutionContext, spec ContainerSpec) (string, error) {
	var out strings.Builder
	temp := spec.TempName()
	collect := func(res *process.Result) {
		if res != nil && res.Output != "" {
			out.WriteString(res.Output)
		}
	}
	fail := func(kind FailureKind, cause string, err error, leftover string) (string, error) {
		out.WriteString(outputOf(err))
		e := stageFailure(kind, StageDeploy, cause, err)
		e.TempContainer = leftover
		return out.String(), e
	}

	logDir, err := filepath.Abs(ec.LogDir)
	if err != nil {
		return fail(DeployFailure, "failed to resolve log directory", err, "")
	}

	// 1. start the replacement
	s.log.Info("starting temporary container", "container", temp, "image", spec.Image)
	res, err := s.run(ctx, dockerRun(spec, logDir, ec.EnvFile))
	if err != nil {
		return fail(DeployFailure, "failed to start new container", err, "")
	}
	collect(res)

	// 2. networks
	for _, net := range spec.Networks {
		res, err := s.ensureNetwork(ctx, net)
		collect(res)
		if err != nil {
			s.log.Error("deploy incomplete: temporary container left running", "container", temp, "network", net)
			return fail(DeployFailure, "failed to prepare network "+net, err, temp)
		}

		res, err = s.run(ctx, dockerNetwork("connect", net, temp))
		if err != nil {
			s.log.Error("deploy incomplete: temporary container left running", "container", temp, "network", net)
			return fail(DeployFailure, "failed to connect network "+net, err, temp)
		}
		collect(res)
		s.log.Info("connected docker network", "network", net, "container", temp)
	}

	// 3-4. remove the previous container, which may not exist
	tolerate := process.Tolerate(noSuchContainer)
	if ec.LenientCleanup {
		tolerate = process.TolerateAll()
	}
	s.log.Info("stopping and removing previous container", "container", spec.ContainerName)
	for _, verb := range []string{"stop", "rm"} {
		res, err := s.run(ctx, process.Cmd("docker", verb, spec.ContainerName), tolerate)
		if err != nil {
			s.log.Error("deploy incomplete: temporary container left running", "container", temp)
			return fail(DeployFailure, fmt.Sprintf("docker %s %s failed", verb, spec.ContainerName), err, temp)
		}
		collect(res)
		if res.Tolerated {
			s.log.Debug("ignored docker failure", "verb", verb, "container", spec.ContainerName, "exit_code", res.ExitCode)
		}
	}

	// 5. promote
	s.log.Info("promoting container", "from", temp, "to", spec.ContainerName)
	res, err = s.run(ctx, process.Cmd("docker", "rename", temp, spec.ContainerName))
	if err != nil {
		s.log.Error("promotion failed: no container runs under the production name; rename it manually",
			"temp_container", temp, "container", spec.ContainerName)
		return fail(PromotionFailure, fmt.Sprintf("failed to rename %s to %s", temp, spec.ContainerName), err, temp)
	}
	collect(res)

	s.log.Info("container deployed", "container", spec.ContainerName)
	return out.String(), nil
}

// ensureNetwork creates net unless it already exists. A create that races
// with another creator counts as success.
func (s *stageExecutor) ensureNetwork(ctx context.Context, net string) (*process.Result, error) {
	res, err := s.run(ctx, dockerNetwork("inspect", net), process.Tolerate(noSuchNetwork))
	if err != nil || !res.Tolerated {
		return nil, err
	}

	res, err = s.run(ctx, dockerNetwork("create", net), process.Tolerate(networkExists))
	if err != nil {
		return nil, err
	}
	if !res.Tolerated {
		s.log.Info("created docker network", "network", net)
	}
	return res, nil
}
