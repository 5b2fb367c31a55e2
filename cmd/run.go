package cmd

import (
	"context"
	"fmt"
	"io"

	"ray/progress"
	"ray/runner"
)

// RunOptions configures the run command.
type RunOptions struct {
	ProjectsFile string
	// Project limits the run to one project. Empty runs all of them.
	Project string
	// Verbose streams the output of every command to Out.
	Verbose bool
	Out     io.Writer
}

// Run deploys one project or every project in the projects file and prints
// a summary. It fails if any project failed.
func Run(ctx context.Context, env *Env, opts RunOptions) error {
	projects, err := env.LoadProjects(opts.ProjectsFile)
	if err != nil {
		return err
	}

	configs := projects.Projects
	if opts.Project != "" {
		p, err := projects.GetProject(opts.Project)
		if err != nil {
			return err
		}
		configs = []runner.ProjectConfig{*p}
	}
	if len(configs) == 0 {
		return fmt.Errorf("no projects defined")
	}

	store, err := env.OpenStorage()
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	pipelineOpts := env.PipelineOptions(store)
	pipelineOpts.Progress = progress.NewBar(opts.Out)
	if opts.Verbose {
		pipelineOpts.Output = opts.Out
	}

	batch := &runner.BatchRunner{Options: pipelineOpts, LoggerFor: env.ProjectLogger}
	summary := runner.Summarize(batch.RunAll(ctx, configs))

	fmt.Fprintf(opts.Out, "\n%s\n", summary)
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d project(s) failed", summary.Failed, len(configs))
	}
	return nil
}
