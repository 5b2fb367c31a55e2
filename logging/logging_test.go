package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("chatty"))
}

func TestParseSize(t *testing.T) {
	n, err := ParseSize("5MB")
	require.NoError(t, err)
	assert.Equal(t, int64(5*1024*1024), n)

	n, err = ParseSize("2097152")
	require.NoError(t, err)
	assert.Equal(t, int64(2*1024*1024), n)

	_, err = ParseSize("512k")
	assert.ErrorContains(t, err, "minimum")

	_, err = ParseSize("lots")
	assert.Error(t, err)
}

func TestNew_StdoutOnly(t *testing.T) {
	var buf bytes.Buffer
	log, closer, err := New(Options{Level: "warn", Format: "json", Stdout: &buf})
	require.NoError(t, err)
	defer closer.Close()

	log.Info("hidden")
	log.Warn("shown", "project", "web")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"project":"web"`)
}

func TestNew_WritesDailyFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	var buf bytes.Buffer
	log, closer, err := New(Options{Dir: dir, Stdout: &buf})
	require.NoError(t, err)

	log.Info("deployed", "project", "web")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(filepath.Join(dir, time.Now().Format(dateLayout)+".log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "msg=deployed project=web")
	assert.Contains(t, buf.String(), "msg=deployed")
}

func TestNew_RejectsSmallCap(t *testing.T) {
	_, _, err := New(Options{Dir: t.TempDir(), MaxSize: 1024})
	assert.ErrorContains(t, err, "minimum")
}

func writeLog(t *testing.T, dir, name string, size int, age time.Duration) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", size)), 0644))
	mod := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func TestTrim_RemovesOldestFirst(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "2026-10-12.log", 400, 72*time.Hour)
	writeLog(t, dir, "2026-10-13.log", 400, 48*time.Hour)
	writeLog(t, dir, "2026-10-14.log", 400, 24*time.Hour)
	writeLog(t, dir, "2026-10-15.log", 400, 0)
	writeLog(t, dir, "notes.txt", 10000, 96*time.Hour)

	removed, err := Trim(dir, 900, "2026-10-15.log")
	require.NoError(t, err)

	assert.Equal(t, []string{"2026-10-12.log", "2026-10-13.log"}, removed)
	assert.FileExists(t, filepath.Join(dir, "2026-10-14.log"))
	assert.FileExists(t, filepath.Join(dir, "notes.txt"))
}

func TestTrim_KeepsCurrentFile(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "2026-10-15.log", 2000, 0)

	removed, err := Trim(dir, 1000, "2026-10-15.log")
	require.NoError(t, err)
	assert.Empty(t, removed)
	assert.FileExists(t, filepath.Join(dir, "2026-10-15.log"))
}

func TestDailyFile_SwitchesOnNewDay(t *testing.T) {
	dir := t.TempDir()
	day := time.Date(2026, 10, 14, 23, 59, 0, 0, time.Local)

	f := &DailyFile{dir: dir, maxSize: DefaultMaxSize, now: func() time.Time { return day }}
	require.NoError(t, f.rotate())
	defer f.Close()

	_, err := f.Write([]byte("before midnight\n"))
	require.NoError(t, err)

	day = day.Add(2 * time.Minute)
	_, err = f.Write([]byte("after midnight\n"))
	require.NoError(t, err)

	first, err := os.ReadFile(filepath.Join(dir, "2026-10-14.log"))
	require.NoError(t, err)
	second, err := os.ReadFile(filepath.Join(dir, "2026-10-15.log"))
	require.NoError(t, err)
	assert.Equal(t, "before midnight\n", string(first))
	assert.Equal(t, "after midnight\n", string(second))
}
