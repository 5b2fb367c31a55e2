package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"ray/runner"
)

// DefaultProjectsFile is the file written by "ray init".
const DefaultProjectsFile = "ray.config.json"

// Init writes an example projects file to path. An existing file is never
// overwritten.
func Init(path string) error {
	if path == "" {
		path = DefaultProjectsFile
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	data, err := json.MarshalIndent(runner.DefaultProjectsConfig(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode default config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
