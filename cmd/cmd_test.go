package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ray/events"
	"ray/logging"
	"ray/runner"
	"ray/runner/process"
	"ray/runner/storage"
)

// okRunner succeeds for every command except those starting with failPrefix.
type okRunner struct {
	failPrefix string
}

func (r okRunner) Run(_ context.Context, cmd process.Command, _ ...process.Option) (*process.Result, error) {
	if r.failPrefix != "" && strings.HasPrefix(cmd.String(), r.failPrefix) {
		return nil, &process.ExitError{Command: cmd, ExitCode: 1, Output: "failed"}
	}
	return &process.Result{}, nil
}

func testEnv(t *testing.T) *Env {
	t.Helper()
	clearEnv(t)
	dir := t.TempDir()
	return &Env{
		Settings: &Settings{
			DataDir:       filepath.Join(dir, "data"),
			WorkspaceRoot: filepath.Join(dir, "ws"),
			History:       true,
		},
		Log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		logOpts:  logging.Options{Stdout: io.Discard},
		projects: make(map[string]*slog.Logger),
	}
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultProjectsFile)

	require.NoError(t, Init(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "projects")

	cfg, err := runner.LoadProjects(path)
	require.NoError(t, err)
	assert.Equal(t, "my-project", cfg.Projects[0].Name)

	assert.ErrorContains(t, Init(path), "already exists")
}

func TestDeployer_BroadcastsEvents(t *testing.T) {
	env := testEnv(t)
	broker := events.NewBroker(env.Log)
	client := make(chan string, 16)
	broker.Register(client)

	opts := env.PipelineOptions(nil)
	opts.Runner = okRunner{failPrefix: "docker build"}
	run := deployer(env, opts, broker)

	cfg := runner.ProjectConfig{
		Name:   "web",
		Repo:   "https://example.com/web.git",
		Docker: runner.ContainerSpec{Image: "web", ContainerName: "web", Dockerfile: runner.DefaultDockerfile},
	}
	err := run(context.Background(), cfg)
	require.Error(t, err)

	broker.Unregister(client)
	var kinds []string
	var last string
	for msg := range client {
		kinds = append(kinds, strings.TrimPrefix(strings.SplitN(msg, "\n", 2)[0], "event: "))
		last = msg
	}

	assert.Equal(t, []string{"run_started", "progress", "progress", "run_finished"}, kinds)
	assert.Contains(t, last, `"state":"failed"`)
	assert.Contains(t, last, `"failed_at":"image"`)
}

func TestHistory(t *testing.T) {
	env := testEnv(t)
	store, err := env.OpenStorage()
	require.NoError(t, err)
	run, err := store.CreateRun("abc", "web")
	require.NoError(t, err)
	require.NoError(t, store.FinishRun(run.ID, "failed", "deploy", "boom", 0))
	require.NoError(t, store.Close())

	var out bytes.Buffer
	require.NoError(t, History(env, "web", 10, &out))
	assert.Contains(t, out.String(), "PROJECT")
	assert.Contains(t, out.String(), "deploy")

	out.Reset()
	require.NoError(t, History(env, "api", 10, &out))
	assert.Equal(t, "no runs recorded\n", out.String())
}

func TestHistory_Disabled(t *testing.T) {
	env := testEnv(t)
	env.Settings.History = false

	assert.ErrorContains(t, History(env, "", 10, io.Discard), "disabled")
}

func TestRun_UnknownProject(t *testing.T) {
	env := testEnv(t)
	path := filepath.Join(t.TempDir(), DefaultProjectsFile)
	require.NoError(t, Init(path))

	err := Run(context.Background(), env, RunOptions{ProjectsFile: path, Project: "nope", Out: io.Discard})
	assert.ErrorContains(t, err, "not found")
}

func TestEnv_ProjectLogger(t *testing.T) {
	env := testEnv(t)
	defer env.Close()

	assert.Same(t, env.Log, env.ProjectLogger(runner.ProjectConfig{Name: "plain"}))

	dir := filepath.Join(t.TempDir(), "logs")
	cfg := runner.ProjectConfig{Name: "web", Internal: &runner.Internal{LogDir: dir}}
	l := env.ProjectLogger(cfg)
	assert.NotSame(t, env.Log, l)
	assert.Same(t, l, env.ProjectLogger(cfg))
	assert.DirExists(t, dir)
}

func TestPrintRuns(t *testing.T) {
	d := "1.5s"
	var out bytes.Buffer
	require.NoError(t, printRuns(&out, []*storage.Run{{ID: 3, ProjectName: "web", Status: "success", Duration: &d}}))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "web")
	assert.Contains(t, lines[1], "1.5s")
}
