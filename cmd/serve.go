package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ray/api"
	"ray/events"
	"ray/runner"
)

// Serve starts the HTTP API and the scheduler and blocks until ctx is done
// or the process receives SIGINT or SIGTERM.
func Serve(ctx context.Context, env *Env, projectsFile string) error {
	// a missing .env is fine
	if err := godotenv.Load(env.Settings.Server.EnvFile); err == nil {
		env.Log.Info("loaded environment file", "file", env.Settings.Server.EnvFile)
	}

	projects, err := env.LoadProjects(projectsFile)
	if err != nil {
		return err
	}
	if err := projects.Validate(); err != nil {
		env.Log.Warn("some projects are invalid and cannot be deployed", "error", err)
	}

	store, err := env.OpenStorage()
	if err != nil {
		return err
	}
	if store == nil {
		return fmt.Errorf("the server needs run history; set history to true")
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	broker := events.NewBroker(env.Log)
	guard := runner.NewGuard()
	run := deployer(env, env.PipelineOptions(store), broker)

	scheduler := runner.NewScheduler(projects, guard, run, env.Log)
	go scheduler.Start(ctx)
	defer scheduler.Stop()

	apiServer := &api.Server{
		Store:       store,
		Projects:    projects,
		Run:         run,
		Guard:       guard,
		Log:         env.Log,
		BaseContext: ctx,
	}
	// runs record to store until they return
	defer apiServer.Wait()

	srv := &http.Server{
		Addr:              env.Settings.Server.Address(),
		Handler:           api.NewRouter(apiServer, broker),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		env.Log.Info("starting server", "addr", srv.Addr, "projects", len(projects.Projects))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	env.Log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), env.Settings.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// RunFinishedEvent is broadcast when a deployment ends.
type RunFinishedEvent struct {
	Project  string `json:"project"`
	RunID    string `json:"run_id"`
	State    string `json:"state"`
	FailedAt string `json:"failed_at,omitempty"`
	Duration string `json:"duration"`
	Error    string `json:"error,omitempty"`
}

// deployer returns the RunFunc used by the API and the scheduler. Progress
// and run events go to the broker.
func deployer(env *Env, opts runner.RunPipelineOptions, broker *events.EventBroker) runner.RunFunc {
	return func(ctx context.Context, cfg runner.ProjectConfig) error {
		o := opts
		o.Logger = env.ProjectLogger(cfg)
		o.Progress = broker.Progress(cfg.Name)

		broker.Broadcast(events.RunStarted, map[string]string{"project": cfg.Name})
		result, err := runner.RunPipeline(ctx, cfg, o)

		ev := RunFinishedEvent{
			Project:  cfg.Name,
			RunID:    result.RunID,
			State:    string(result.State),
			FailedAt: string(result.FailedAt),
			Duration: result.Duration.Round(time.Millisecond).String(),
		}
		if err != nil {
			ev.Error = err.Error()
		}
		broker.Broadcast(events.RunFinished, ev)
		return err
	}
}
