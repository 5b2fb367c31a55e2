package runner

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultDockerfile is used when a docker project does not name one.
const DefaultDockerfile = "./Dockerfile"

// dockerSection is the on-disk shape of the "docker" block.
type dockerSection struct {
	Type          string     `yaml:"type,omitempty" json:"type,omitempty"`
	Image         string     `yaml:"image,omitempty" json:"image,omitempty"`
	ContainerName string     `yaml:"containername,omitempty" json:"containername,omitempty"`
	Path          pathField  `yaml:"path,omitempty" json:"path"`
	Network       stringList `yaml:"network,omitempty" json:"network,omitempty"`
	Volumes       []string   `yaml:"volumes,omitempty" json:"volumes,omitempty"`
}

// pathField accepts either a plain Dockerfile path or a
// {dockerfile, compose} mapping.
type pathField struct {
	Dockerfile string `yaml:"dockerfile,omitempty" json:"dockerfile,omitempty"`
	Compose    string `yaml:"compose,omitempty" json:"compose,omitempty"`
}

func (p *pathField) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		p.Dockerfile = node.Value
		return nil
	}
	type plain pathField
	return node.Decode((*plain)(p))
}

// stringList accepts a single string or a list of strings. Empty strings are
// dropped.
type stringList []string

func (l *stringList) UnmarshalYAML(node *yaml.Node) error {
	var items []string
	switch node.Kind {
	case yaml.ScalarNode:
		items = []string{node.Value}
	case yaml.SequenceNode:
		if err := node.Decode(&items); err != nil {
			return err
		}
	default:
		return fmt.Errorf("line %d: expected a string or a list of strings", node.Line)
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*l = out
	return nil
}

// UnmarshalYAML decodes a project and resolves its docker block into a
// ContainerSpec or ComposeSpec.
func (p *ProjectConfig) UnmarshalYAML(node *yaml.Node) error {
	type plain ProjectConfig
	var raw struct {
		plain  `yaml:",inline"`
		Docker *dockerSection `yaml:"docker"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	*p = ProjectConfig(raw.plain)
	if raw.Docker == nil {
		return nil
	}

	spec, err := raw.Docker.spec()
	if err != nil {
		return &ConfigError{Project: p.Name, Field: "docker.type", Message: err.Error()}
	}
	p.Docker = spec
	return nil
}

func (d *dockerSection) spec() (DockerSpec, error) {
	switch strings.ToLower(strings.TrimSpace(d.Type)) {
	case "", "docker":
		dockerfile := d.Path.Dockerfile
		if dockerfile == "" {
			dockerfile = DefaultDockerfile
		}
		return ContainerSpec{
			Image:         d.Image,
			ContainerName: d.ContainerName,
			Dockerfile:    dockerfile,
			Networks:      []string(d.Network),
			Volumes:       d.Volumes,
		}, nil
	case "compose":
		return ComposeSpec{ComposeFile: d.Path.Compose}, nil
	default:
		return nil, fmt.Errorf("unknown type %q, expected \"docker\" or \"compose\"", d.Type)
	}
}

// section converts a DockerSpec back to its on-disk shape.
func section(spec DockerSpec) *dockerSection {
	switch s := spec.(type) {
	case ContainerSpec:
		return &dockerSection{
			Type:          s.Kind(),
			Image:         s.Image,
			ContainerName: s.ContainerName,
			Path:          pathField{Dockerfile: s.Dockerfile},
			Network:       s.Networks,
			Volumes:       s.Volumes,
		}
	case ComposeSpec:
		return &dockerSection{
			Type: s.Kind(),
			Path: pathField{Compose: s.ComposeFile},
		}
	}
	return nil
}
