package runner

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProjects(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadProjects_JSON(t *testing.T) {
	path := writeProjects(t, "ray.config.json", `{
  "projects": [
    {
      "name": "web",
      "repo": "https://github.com/acme/web.git",
      "branch": "main",
      "buildCommand": "npm run build",
      "docker": {
        "image": "web-image",
        "containername": "web",
        "path": "./docker/Dockerfile",
        "network": "frontend",
        "volumes": ["/srv/web:/app/data"]
      },
      "env": {"NODE_ENV": "production"},
      "internal": {"logdir": "./logs", "maxLogDirSize": 5242880, "logLevel": "debug", "envFilePath": "./.env"}
    },
    {
      "name": "stack",
      "repo": "https://github.com/acme/stack.git",
      "docker": {"type": "compose", "path": {"compose": "./deploy/docker-compose.yml"}}
    }
  ]
}`)

	cfg, err := LoadProjects(path)
	require.NoError(t, err)
	require.Len(t, cfg.Projects, 2)
	require.NoError(t, cfg.Validate())

	web := cfg.Projects[0]
	assert.Equal(t, "npm run build", web.BuildCommand)
	assert.Equal(t, ContainerSpec{
		Image:         "web-image",
		ContainerName: "web",
		Dockerfile:    "./docker/Dockerfile",
		Networks:      []string{"frontend"},
		Volumes:       []string{"/srv/web:/app/data"},
	}, web.Docker)
	assert.Equal(t, "production", web.Env["NODE_ENV"])
	require.NotNil(t, web.Internal)
	assert.Equal(t, int64(5242880), web.Internal.MaxLogDirSize)
	assert.Equal(t, "./.env", web.Internal.EnvFilePath)

	assert.Equal(t, ComposeSpec{ComposeFile: "./deploy/docker-compose.yml"}, cfg.Projects[1].Docker)
}

func TestLoadProjects_YAML(t *testing.T) {
	path := writeProjects(t, "ray.yaml", `
projects:
  - name: api
    repo: https://github.com/acme/api.git
    docker:
      type: docker
      image: api:latest
      containername: api
      path:
        dockerfile: build/Dockerfile
      network: [backend, " ", monitoring]
    schedule:
      every: 1h30m
`)

	cfg, err := LoadProjects(path)
	require.NoError(t, err)

	spec, ok := cfg.Projects[0].Docker.(ContainerSpec)
	require.True(t, ok)
	assert.Equal(t, "build/Dockerfile", spec.Dockerfile)
	assert.Equal(t, []string{"backend", "monitoring"}, spec.Networks)
	assert.Equal(t, &Schedule{Every: "1h30m"}, cfg.Projects[0].Schedule)
}

func TestLoadProjects_DefaultDockerfile(t *testing.T) {
	path := writeProjects(t, "ray.yaml", `
projects:
  - name: api
    repo: https://github.com/acme/api.git
    docker: {image: api, containername: api}
`)

	cfg, err := LoadProjects(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultDockerfile, cfg.Projects[0].Docker.(ContainerSpec).Dockerfile)
}

func TestLoadProjects_UnknownDockerType(t *testing.T) {
	path := writeProjects(t, "ray.yaml", `
projects:
  - name: api
    repo: https://github.com/acme/api.git
    docker: {type: podman, image: api}
`)

	_, err := LoadProjects(path)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "docker.type", cfgErr.Field)
	assert.Equal(t, ConfigurationError, KindOf(err))
}

func TestLoadProjects_MissingFile(t *testing.T) {
	_, err := LoadProjects(filepath.Join(t.TempDir(), "nope.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestProjectConfig_Validate(t *testing.T) {
	valid := func() ProjectConfig { return dockerProject("web") }

	tests := []struct {
		name  string
		edit  func(p *ProjectConfig)
		field string
	}{
		{"valid", func(p *ProjectConfig) {}, ""},
		{"missing name", func(p *ProjectConfig) { p.Name = "  " }, "name"},
		{"ssh repo", func(p *ProjectConfig) { p.Repo = "git@github.com:acme/web.git" }, "repo"},
		{"http repo", func(p *ProjectConfig) { p.Repo = "http://github.com/acme/web.git" }, "repo"},
		{"no docker", func(p *ProjectConfig) { p.Docker = nil }, "docker"},
		{"no image", func(p *ProjectConfig) { p.Docker = ContainerSpec{ContainerName: "web"} }, "docker.image"},
		{"no container", func(p *ProjectConfig) { p.Docker = ContainerSpec{Image: "web"} }, "docker.containername"},
		{"compose without file", func(p *ProjectConfig) { p.Docker = ComposeSpec{} }, "docker.path.compose"},
		{"small log dir", func(p *ProjectConfig) { p.Internal = &Internal{MaxLogDirSize: 1024} }, "internal.maxLogDirSize"},
		{"bad log level", func(p *ProjectConfig) { p.Internal = &Internal{LogLevel: "verbose"} }, "internal.logLevel"},
		{"bad schedule", func(p *ProjectConfig) { p.Schedule = &Schedule{At: "25:00"} }, "schedule"},
		{"both schedules", func(p *ProjectConfig) { p.Schedule = &Schedule{At: "03:00", Every: "1h"} }, "schedule"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid()
			tt.edit(&p)
			err := p.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestProjectsConfig_ValidateWorkspaceCollision(t *testing.T) {
	cfg := &ProjectsConfig{Projects: []ProjectConfig{dockerProject("My App"), dockerProject("my-app")}}

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "same workspace")
}

func TestProjectsConfig_ValidateDuplicateContainerName(t *testing.T) {
	api := dockerProject("api")
	api.Docker = ContainerSpec{Image: "api:latest", ContainerName: "web", Dockerfile: DefaultDockerfile}
	cfg := &ProjectsConfig{Projects: []ProjectConfig{dockerProject("web"), api}}

	err := cfg.Validate()

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "api", cfgErr.Project)
	assert.Equal(t, "docker.containername", cfgErr.Field)
	assert.Contains(t, err.Error(), "already used by project web")
}

func TestProjectsConfig_GetProject(t *testing.T) {
	cfg := &ProjectsConfig{Projects: []ProjectConfig{dockerProject("web"), dockerProject("api")}}

	p, err := cfg.GetProject(" api ")
	require.NoError(t, err)
	assert.Equal(t, "api", p.Name)

	_, err = cfg.GetProject("db")
	assert.Error(t, err)
}

func TestDefaultProjectsConfig_RoundTrip(t *testing.T) {
	data, err := json.MarshalIndent(DefaultProjectsConfig(), "", "  ")
	require.NoError(t, err)
	assert.Contains(t, string(data), `"containername": "your-container"`)

	path := writeProjects(t, "ray.config.json", string(data))
	cfg, err := LoadProjects(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultProjectsConfig(), cfg)
	assert.NoError(t, cfg.Validate())
}
