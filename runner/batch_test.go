package runner

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchRunner_ContinuesAfterFailure(t *testing.T) {
	r := newFakeRunner().fail("sh -c", 1, "boom")

	one := dockerProject("one")
	two := dockerProject("two")
	two.BuildCommand = "make"
	three := dockerProject("three")

	b := &BatchRunner{Options: testOptions(t, r, nil)}
	results := b.RunAll(context.Background(), []ProjectConfig{one, two, three})

	require.Len(t, results, 3)
	assert.True(t, results[0].Success())
	assert.False(t, results[1].Success())
	assert.Equal(t, StageBuild, results[1].FailedAt)
	assert.True(t, results[2].Success())

	assert.Equal(t, 1, r.count("docker rename one-temp one"))
	assert.Zero(t, r.count("docker rename two-temp two"))
	assert.Equal(t, 1, r.count("docker rename three-temp three"))
}

func TestBatchRunner_InvalidConfigIsSkipped(t *testing.T) {
	r := newFakeRunner()
	bad := dockerProject("bad")
	bad.Repo = "git@example.com:bad.git"

	b := &BatchRunner{Options: testOptions(t, r, nil)}
	results := b.RunAll(context.Background(), []ProjectConfig{bad, dockerProject("good")})

	require.Len(t, results, 2)
	assert.Equal(t, ConfigurationError, KindOf(results[0].Error))
	assert.Equal(t, StateFailed, results[0].State)
	assert.True(t, results[1].Success())
	assert.Zero(t, r.count("git clone git@"))
}

func TestBatchRunner_LoggerFor(t *testing.T) {
	var seen []string
	b := &BatchRunner{
		Options: testOptions(t, newFakeRunner(), nil),
		LoggerFor: func(cfg ProjectConfig) *slog.Logger {
			seen = append(seen, cfg.Name)
			return discardLogger()
		},
	}

	b.RunAll(context.Background(), []ProjectConfig{dockerProject("a"), dockerProject("b")})

	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestSummarize(t *testing.T) {
	results := []*PipelineResult{
		{Project: "one", State: StateCompleted},
		{Project: "two", State: StateFailed, FailedAt: StageDeploy, Error: &StageError{Kind: PromotionFailure, Stage: StageDeploy, Cause: "rename failed"}},
		{Project: "three", State: StateFailed, Error: &ConfigError{Project: "three", Field: "repo", Message: "bad"}},
	}

	s := Summarize(results)

	assert.Equal(t, 1, s.Completed)
	assert.Equal(t, 2, s.Failed)
	require.Len(t, s.Lines, 3)
	assert.True(t, strings.HasPrefix(s.Lines[0], "[OK]   one"))
	assert.Equal(t, "[FAIL] two at deploy: PromotionFailure at deploy: rename failed", s.Lines[1])
	assert.True(t, strings.HasPrefix(s.Lines[2], "[FAIL] three at config:"))
	assert.True(t, strings.HasSuffix(s.String(), "1 completed, 2 failed"))
}
