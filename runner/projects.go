package runner

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// MinLogDirSize is the smallest accepted internal.maxLogDirSize.
const MinLogDirSize = 1024 * 1024

// ProjectsConfig holds the list of all projects
type ProjectsConfig struct {
	Projects []ProjectConfig `yaml:"projects" json:"projects"`
}

// LoadProjects loads the projects file. JSON files are accepted as well
// since JSON is a subset of YAML.
func LoadProjects(configPath string) (*ProjectsConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read projects config: %w", err)
	}

	var config ProjectsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse projects config %s: %w", configPath, err)
	}

	return &config, nil
}

// GetProject returns a project by name
func (pc *ProjectsConfig) GetProject(name string) (*ProjectConfig, error) {
	name = strings.TrimSpace(name)
	for i := range pc.Projects {
		if strings.TrimSpace(pc.Projects[i].Name) == name {
			return &pc.Projects[i], nil
		}
	}
	return nil, fmt.Errorf("project '%s' not found", name)
}

// Validate checks every project and returns all problems joined.
func (pc *ProjectsConfig) Validate() error {
	var errs []error
	seen := make(map[string]bool)
	containers := make(map[string]string)
	for i := range pc.Projects {
		p := &pc.Projects[i]
		if err := p.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		key := WorkspaceSegment(p.Name)
		if seen[key] {
			errs = append(errs, &ConfigError{Project: p.Name, Field: "name", Message: "another project maps to the same workspace"})
		}
		seen[key] = true

		if spec, ok := p.Docker.(ContainerSpec); ok {
			if owner, taken := containers[spec.ContainerName]; taken {
				errs = append(errs, &ConfigError{
					Project: p.Name,
					Field:   "docker.containername",
					Message: fmt.Sprintf("container %q is already used by project %s", spec.ContainerName, owner),
				})
			} else {
				containers[spec.ContainerName] = p.Name
			}
		}
	}
	return errors.Join(errs...)
}

// Validate checks a single project configuration.
func (p *ProjectConfig) Validate() error {
	fail := func(field, msg string) error {
		return &ConfigError{Project: p.Name, Field: field, Message: msg}
	}

	if strings.TrimSpace(p.Name) == "" {
		return fail("name", "is required")
	}
	if !strings.HasPrefix(p.Repo, "https://") {
		return fail("repo", `must start with "https://"`)
	}

	switch spec := p.Docker.(type) {
	case nil:
		return fail("docker", "section is required")
	case ContainerSpec:
		if spec.Image == "" {
			return fail("docker.image", "is required")
		}
		if spec.ContainerName == "" {
			return fail("docker.containername", "is required")
		}
	case ComposeSpec:
		if spec.ComposeFile == "" {
			return fail("docker.path.compose", `is required for type "compose"`)
		}
	default:
		return fail("docker.type", fmt.Sprintf("unsupported spec %T", spec))
	}

	if in := p.Internal; in != nil {
		if in.MaxLogDirSize != 0 && in.MaxLogDirSize < MinLogDirSize {
			return fail("internal.maxLogDirSize", "must be at least 1MB")
		}
		switch strings.ToLower(in.LogLevel) {
		case "", "debug", "info", "warn", "error":
		default:
			return fail("internal.logLevel", fmt.Sprintf("unknown level %q", in.LogLevel))
		}
	}

	if s := p.Schedule; s != nil {
		if err := s.Validate(); err != nil {
			return fail("schedule", err.Error())
		}
	}

	return nil
}

// DefaultProjectsConfig returns the example written by "ray init".
func DefaultProjectsConfig() *ProjectsConfig {
	return &ProjectsConfig{Projects: []ProjectConfig{{
		Name:   "my-project",
		Repo:   "https://github.com/your/repo.git",
		Branch: "main",
		Docker: ContainerSpec{
			Image:         "your-image",
			ContainerName: "your-container",
			Dockerfile:    DefaultDockerfile,
		},
		Internal: &Internal{
			LogDir:        "./logs",
			MaxLogDirSize: 5 * 1024 * 1024,
			LogLevel:      "info",
			EnvFilePath:   "./.env",
		},
		Env: map[string]string{"NODE_ENV": "production"},
	}}}
}

// MarshalJSON writes a project in the same shape LoadProjects reads.
func (p ProjectConfig) MarshalJSON() ([]byte, error) {
	type plain ProjectConfig
	return json.Marshal(struct {
		plain
		Docker *dockerSection `json:"docker,omitempty"`
	}{plain(p), section(p.Docker)})
}
