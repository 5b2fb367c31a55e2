package runner

import (
	"path/filepath"
	"strings"
	"unicode"
)

const (
	// DefaultWorkspaceRoot is where workspaces are created.
	DefaultWorkspaceRoot = "/tmp"

	// DefaultLogDir is mounted into deployed containers at /app/logs.
	DefaultLogDir = "logs"

	workspacePrefix = "ray-"
)

// ContextBuilder derives execution contexts from project configurations.
type ContextBuilder struct {
	WorkspaceRoot string
}

// NewContextBuilder returns a builder rooted at root, or at
// DefaultWorkspaceRoot when root is empty.
func NewContextBuilder(root string) ContextBuilder {
	if root == "" {
		root = DefaultWorkspaceRoot
	}
	return ContextBuilder{WorkspaceRoot: root}
}

// Build returns the execution context for one run of cfg. It performs no I/O.
func (b ContextBuilder) Build(cfg ProjectConfig) ExecutionContext {
	root := b.WorkspaceRoot
	if root == "" {
		root = DefaultWorkspaceRoot
	}

	ctx := ExecutionContext{
		Project:      cfg.Name,
		Repo:         cfg.Repo,
		Branch:       cfg.Branch,
		BuildCommand: strings.TrimSpace(cfg.BuildCommand),
		Docker:       cfg.Docker,
		Env:          cfg.Env,
		Workspace:    filepath.Join(root, workspacePrefix+WorkspaceSegment(cfg.Name)),
		LogDir:       DefaultLogDir,
	}

	if in := cfg.Internal; in != nil {
		if in.LogDir != "" {
			ctx.LogDir = in.LogDir
		}
		ctx.EnvFile = in.EnvFilePath
		ctx.LenientCleanup = in.LenientCleanup
	}

	return ctx
}

// WorkspaceSegment turns a project name into a single filesystem-safe path
// segment: lowercase, whitespace runs collapsed to "-", and anything outside
// [a-z0-9._-] replaced by "-".
//
// Example:
//
//	WorkspaceSegment("My  App") // returns "my-app"
func WorkspaceSegment(name string) string {
	var b strings.Builder
	inSpace := false
	for _, r := range strings.TrimSpace(strings.ToLower(name)) {
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteByte('-')
			}
			inSpace = true
			continue
		}
		inSpace = false
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}

	seg := b.String()
	if strings.Trim(seg, ".") == "" {
		return "project"
	}
	return seg
}
