package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const dateLayout = "2006-01-02"

// DailyFile appends to <dir>/YYYY-MM-DD.log, switching files when the date
// changes. Whenever a file is opened, older .log files are deleted until the
// directory fits in maxSize.
type DailyFile struct {
	dir     string
	maxSize int64
	now     func() time.Time

	mu   sync.Mutex
	day  string
	file *os.File
}

// NewDailyFile creates dir if needed and opens today's file.
func NewDailyFile(dir string, maxSize int64) (*DailyFile, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log dir: %w", err)
	}
	d := &DailyFile{dir: dir, maxSize: maxSize, now: time.Now}
	if err := d.rotate(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *DailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.now().Format(dateLayout) != d.day {
		if err := d.rotateLocked(); err != nil {
			return 0, err
		}
	}
	return d.file.Write(p)
}

// Close closes the current file.
func (d *DailyFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}

func (d *DailyFile) rotate() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rotateLocked()
}

func (d *DailyFile) rotateLocked() error {
	if d.file != nil {
		d.file.Close()
	}
	day := d.now().Format(dateLayout)
	name := filepath.Join(d.dir, day+".log")
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	d.file, d.day = f, day

	_, err = Trim(d.dir, d.maxSize, filepath.Base(name))
	return err
}

// Trim deletes the oldest .log files in dir until their total size is at
// most maxSize. keep is never deleted. It returns the deleted file names.
func Trim(dir string, maxSize int64, keep string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read log dir: %w", err)
	}

	type logFile struct {
		name    string
		size    int64
		modTime time.Time
	}
	var files []logFile
	var total int64
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".log") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, logFile{e.Name(), info.Size(), info.ModTime()})
		total += info.Size()
	}

	// oldest first; daily names sort by date
	sort.Slice(files, func(i, j int) bool {
		if !files[i].modTime.Equal(files[j].modTime) {
			return files[i].modTime.Before(files[j].modTime)
		}
		return files[i].name < files[j].name
	})

	var removed []string
	for _, f := range files {
		if total <= maxSize {
			break
		}
		if f.name == keep {
			continue
		}
		if err := os.Remove(filepath.Join(dir, f.name)); err != nil {
			return removed, fmt.Errorf("failed to remove old log file: %w", err)
		}
		total -= f.size
		removed = append(removed, f.name)
	}
	return removed, nil
}
