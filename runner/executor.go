package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"ray/progress"
	"ray/runner/process"
	"ray/runner/storage"
)

// CompletedLabel is reported as the last progress step of a successful run.
const CompletedLabel = "Deployment completed."

var allStages = []Stage{StageFetch, StageBuild, StageImageBuild, StageDeploy}

// Pipeline runs the stages of one project at a time.
type Pipeline struct {
	builder  ContextBuilder
	runner   process.Runner
	output   io.Writer
	log      *slog.Logger
	progress progress.Reporter
	storage  *storage.Storage
	timeouts StageTimeouts
}

// NewPipeline returns a pipeline configured by opts. opts.Runner is required.
func NewPipeline(opts RunPipelineOptions) *Pipeline {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	rep := opts.Progress
	if rep == nil {
		rep = progress.Nop{}
	}
	return &Pipeline{
		builder:  NewContextBuilder(opts.WorkspaceRoot),
		runner:   opts.Runner,
		output:   opts.Output,
		log:      log,
		progress: rep,
		storage:  opts.Storage,
		timeouts: opts.Timeouts,
	}
}

// RunPipeline executes one project with the given options.
func RunPipeline(ctx context.Context, cfg ProjectConfig, opts RunPipelineOptions) (*PipelineResult, error) {
	return NewPipeline(opts).Run(ctx, cfg)
}

// Run drives cfg through fetch, build, image build and deploy. It stops at
// the first failing stage. The returned error, if any, is also stored in
// result.Error.
func (p *Pipeline) Run(ctx context.Context, cfg ProjectConfig) (*PipelineResult, error) {
	startTime := time.Now()
	ec := p.builder.Build(cfg)

	result := &PipelineResult{
		RunID:    uuid.NewString(),
		Project:  cfg.Name,
		State:    StateIdle,
		Outcomes: make([]StageOutcome, 0, len(allStages)),
	}
	log := p.log.With("project", cfg.Name, "run_id", result.RunID)
	stages := &stageExecutor{runner: p.runner, log: log, output: p.output}

	run := p.createRun(result, log)

	plan := planStages(ec)
	total := len(plan) + 1
	planned := make(map[Stage]bool, len(plan))
	for _, s := range plan {
		planned[s] = true
	}

	log.Info("starting pipeline", "workspace", ec.Workspace, "deploy", kindOf(ec.Docker), "stages", len(plan))

	m := newMachine()
	step := 0
	for _, stage := range allStages {
		if !planned[stage] {
			result.Outcomes = append(result.Outcomes, StageOutcome{Stage: stage, Status: StatusSkipped})
			continue
		}

		step++
		p.progress.Step(step, total, stage.Label())
		if err := m.enter(stage); err != nil {
			return p.finish(result, run, log, startTime, err)
		}
		result.State = m.state

		outcome := p.runStage(ctx, stages, stage, ec, run, log)
		result.Outcomes = append(result.Outcomes, outcome)

		if outcome.Error != nil {
			if err := m.fail(stage); err != nil {
				return p.finish(result, run, log, startTime, err)
			}
			result.State = m.state
			result.FailedAt = stage
			log.Error("pipeline failed",
				"state", m.String(),
				"kind", outcome.Error.Kind,
				"error", outcome.Error.Error(),
				"output", lastLines(outcome.Output, 20))
			if outcome.Error.TempContainer != "" {
				log.Error("temporary container requires attention", "container", outcome.Error.TempContainer)
			}
			return p.finish(result, run, log, startTime, outcome.Error)
		}
	}

	if err := m.to(StateCompleted); err != nil {
		return p.finish(result, run, log, startTime, err)
	}
	result.State = m.state
	p.progress.Step(total, total, CompletedLabel)

	return p.finish(result, run, log, startTime, nil)
}

func (p *Pipeline) runStage(ctx context.Context, stages *stageExecutor, stage Stage, ec ExecutionContext, run *storage.Run, log *slog.Logger) StageOutcome {
	stageStart := time.Now()

	var exec *storage.StageExecution
	if p.storage != nil && run != nil {
		var err error
		exec, err = p.storage.CreateStageExecution(run.ID, string(stage))
		if err != nil {
			log.Warn("failed to record stage", "stage", stage, "error", err)
		}
	}

	// cancelling the run never interrupts a swap; only the deploy timeout does
	if stage == StageDeploy {
		ctx = context.WithoutCancel(ctx)
	}
	if d := p.timeouts.For(stage); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	output, err := stages.execute(ctx, stage, ec)
	outcome := StageOutcome{
		Stage:    stage,
		Status:   StatusSuccess,
		Duration: time.Since(stageStart),
		Output:   output,
	}

	var kind, errMsg string
	if err != nil {
		outcome.Status = StatusFailed
		outcome.Error = asStageError(stage, err)
		if errors.Is(err, context.DeadlineExceeded) {
			outcome.Error.Cause += fmt.Sprintf(" (timed out after %s)", p.timeouts.For(stage))
		}
		kind, errMsg = string(outcome.Error.Kind), outcome.Error.Error()
	}

	if exec != nil {
		if err := p.storage.UpdateStageExecution(exec.ID, outcome.Status, kind, output, errMsg, outcome.Duration); err != nil {
			log.Warn("failed to record stage result", "stage", stage, "error", err)
		}
	}

	return outcome
}

func (p *Pipeline) createRun(result *PipelineResult, log *slog.Logger) *storage.Run {
	if p.storage == nil {
		return nil
	}
	run, err := p.storage.CreateRun(result.RunID, result.Project)
	if err != nil {
		log.Warn("failed to record run", "error", err)
		return nil
	}
	return run
}

func (p *Pipeline) finish(result *PipelineResult, run *storage.Run, log *slog.Logger, startTime time.Time, err error) (*PipelineResult, error) {
	result.Duration = time.Since(startTime)
	result.Error = err

	status := StatusSuccess
	if err != nil {
		status = StatusFailed
		if result.State != StateFailed {
			// the state machine itself refused a transition
			result.State = StateFailed
		}
	} else {
		log.Info("pipeline completed", "duration", result.Duration.Round(time.Millisecond))
	}

	if p.storage != nil && run != nil {
		var errMsg string
		if err != nil {
			errMsg = err.Error()
		}
		if serr := p.storage.FinishRun(run.ID, status, string(result.FailedAt), errMsg, result.Duration); serr != nil {
			log.Warn("failed to record run result", "error", serr)
		}
	}

	return result, err
}

// asStageError makes sure every stage failure carries a kind.
func asStageError(stage Stage, err error) *StageError {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr
	}
	return &StageError{Kind: failureKindFor(stage), Stage: stage, Cause: "stage failed", Output: outputOf(err), Err: err}
}

func failureKindFor(stage Stage) FailureKind {
	switch stage {
	case StageFetch:
		return FetchFailure
	case StageBuild:
		return BuildFailure
	case StageImageBuild:
		return ImageBuildFailure
	}
	return DeployFailure
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
