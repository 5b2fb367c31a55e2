// Package process runs external commands to completion, capturing their exit
// status and the tail of their output.
package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultMaxOutput is the default number of output bytes kept per command.
const DefaultMaxOutput = 64 * 1024

// waitDelay bounds how long Run waits for output pipes after the command was
// killed. Grandchildren that escaped the process group can hold them open.
const waitDelay = 2 * time.Second

// Command is a program and its arguments. It is never passed through a shell
// unless the program itself is one.
type Command struct {
	Name string
	Args []string
}

// Cmd builds a Command.
func Cmd(name string, args ...string) Command {
	return Command{Name: name, Args: args}
}

// Shell builds a Command that runs script with sh -c.
func Shell(script string) Command {
	return Command{Name: "sh", Args: []string{"-c", script}}
}

// String returns the command as it would be typed in a shell.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Result holds the outcome of a command that did not fail.
type Result struct {
	Output   string
	ExitCode int
	// Tolerated is set when the command exited non-zero but the caller asked
	// for that failure to be ignored.
	Tolerated bool
}

// ExitError is returned when a command exits with a non-zero status.
type ExitError struct {
	Command  Command
	ExitCode int
	Output   string
	Err      error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s: exit status %d", e.Command, e.ExitCode)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + lastLine(out)
	}
	return msg
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Runner executes commands.
type Runner interface {
	Run(ctx context.Context, cmd Command, opts ...Option) (*Result, error)
}

// Matcher reports whether a failed command's output describes an expected,
// harmless failure.
type Matcher func(output string) bool

// Options configures a single command execution.
type Options struct {
	Dir       string
	Env       map[string]string
	EnvFile   string
	MaxOutput int
	Stream    io.Writer
	Tolerate  Matcher
}

// Option modifies Options.
type Option func(*Options)

// WithDir sets the working directory.
func WithDir(dir string) Option {
	return func(o *Options) {
		o.Dir = dir
	}
}

// WithEnv adds environment variables on top of the current environment.
func WithEnv(env map[string]string) Option {
	return func(o *Options) {
		if o.Env == nil {
			o.Env = make(map[string]string, len(env))
		}
		for k, v := range env {
			o.Env[k] = v
		}
	}
}

// WithEnvFile loads variables from a dotenv file. Variables set with WithEnv
// take precedence.
func WithEnvFile(path string) Option {
	return func(o *Options) {
		o.EnvFile = path
	}
}

// WithMaxOutput caps the captured output to the last n bytes.
func WithMaxOutput(n int) Option {
	return func(o *Options) {
		o.MaxOutput = n
	}
}

// WithStream mirrors stdout and stderr to w while capturing.
func WithStream(w io.Writer) Option {
	return func(o *Options) {
		o.Stream = w
	}
}

// Tolerate turns a non-zero exit whose output satisfies m into a successful
// Result with Tolerated set. Failures that do not match are still returned
// as *ExitError.
func Tolerate(m Matcher) Option {
	return func(o *Options) {
		o.Tolerate = m
	}
}

// TolerateAll ignores every non-zero exit.
func TolerateAll() Option {
	return Tolerate(func(string) bool { return true })
}

// ExecRunner runs commands on the local host with os/exec.
type ExecRunner struct {
	// Stream, when set, receives the output of every command.
	Stream io.Writer
}

// NewExecRunner returns a Runner backed by os/exec.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes cmd and blocks until it exits.
func (r *ExecRunner) Run(ctx context.Context, cmd Command, opts ...Option) (*Result, error) {
	options := Options{MaxOutput: DefaultMaxOutput, Stream: r.Stream}
	for _, opt := range opts {
		opt(&options)
	}

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = options.Dir
	killProcessGroup(c)
	c.WaitDelay = waitDelay

	env, err := buildEnv(options)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cmd, err)
	}
	c.Env = env

	out := newTail(options.MaxOutput)
	var w io.Writer = out
	if options.Stream != nil {
		w = io.MultiWriter(out, options.Stream)
	}
	c.Stdout = w
	c.Stderr = w

	err = c.Run()
	output := out.String()
	if err == nil {
		return &Result{Output: output}, nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) || ctx.Err() != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s: %w", cmd, ctxErr)
		}
		return nil, fmt.Errorf("%s: %w", cmd, err)
	}

	code := exitErr.ExitCode()
	if options.Tolerate != nil && options.Tolerate(output) {
		return &Result{Output: output, ExitCode: code, Tolerated: true}, nil
	}
	return nil, &ExitError{Command: cmd, ExitCode: code, Output: output, Err: err}
}

// buildEnv returns nil when nothing is added so the child inherits the
// parent environment unchanged.
func buildEnv(o Options) ([]string, error) {
	if o.EnvFile == "" && len(o.Env) == 0 {
		return nil, nil
	}

	vars := make(map[string]string)
	if o.EnvFile != "" {
		fileVars, err := godotenv.Read(o.EnvFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read env file %s: %w", o.EnvFile, err)
		}
		for k, v := range fileVars {
			vars[k] = v
		}
	}
	for k, v := range o.Env {
		vars[k] = v
	}

	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := os.Environ()
	for _, k := range keys {
		env = append(env, k+"="+vars[k])
	}
	return env, nil
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
