package runner

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"

	"ray/runner/process"
)

type handlerFunc func(ctx context.Context, cmd process.Command, opts process.Options) (*process.Result, error)

type fakeHandler struct {
	prefix string
	fn     handlerFunc
}

type fakeCall struct {
	cmd  process.Command
	opts process.Options
}

// fakeRunner records commands and answers them from handlers registered by
// command prefix. Unmatched commands succeed with no output.
type fakeRunner struct {
	mu       sync.Mutex
	calls    []fakeCall
	handlers []fakeHandler
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{}
}

func (f *fakeRunner) on(prefix string, fn handlerFunc) *fakeRunner {
	f.handlers = append(f.handlers, fakeHandler{prefix: prefix, fn: fn})
	return f
}

// fail makes commands starting with prefix exit with code and output,
// honoring the caller's tolerance the way process.ExecRunner does.
func (f *fakeRunner) fail(prefix string, code int, output string) *fakeRunner {
	return f.on(prefix, func(_ context.Context, cmd process.Command, opts process.Options) (*process.Result, error) {
		if opts.Tolerate != nil && opts.Tolerate(output) {
			return &process.Result{Output: output, ExitCode: code, Tolerated: true}, nil
		}
		return nil, &process.ExitError{Command: cmd, ExitCode: code, Output: output}
	})
}

func (f *fakeRunner) Run(ctx context.Context, cmd process.Command, opts ...process.Option) (*process.Result, error) {
	var o process.Options
	for _, opt := range opts {
		opt(&o)
	}

	f.mu.Lock()
	f.calls = append(f.calls, fakeCall{cmd: cmd, opts: o})
	handlers := f.handlers
	f.mu.Unlock()

	line := cmd.String()
	for _, h := range handlers {
		if strings.HasPrefix(line, h.prefix) {
			return h.fn(ctx, cmd, o)
		}
	}
	return &process.Result{}, nil
}

func (f *fakeRunner) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.cmd.String())
	}
	return out
}

func (f *fakeRunner) count(prefix string) int {
	n := 0
	for _, c := range f.commands() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (f *fakeRunner) call(prefix string) (fakeCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if strings.HasPrefix(c.cmd.String(), prefix) {
			return c, true
		}
	}
	return fakeCall{}, false
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStages(r process.Runner) *stageExecutor {
	return &stageExecutor{runner: r, log: discardLogger()}
}
