package runner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/types"
	"github.com/joho/godotenv"
)

// loadComposeServices parses a compose file the way "docker compose" would
// and returns its service names. It catches a missing or malformed file
// before anything is recreated.
func loadComposeServices(ctx context.Context, project, workspace, file string) ([]string, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}

	name := loader.NormalizeProjectName(filepath.Base(workspace))
	if name == "" {
		name = loader.NormalizeProjectName(project)
	}

	env, err := composeEnvironment(filepath.Dir(file))
	if err != nil {
		return nil, err
	}

	p, err := loader.LoadWithContext(ctx, types.ConfigDetails{
		WorkingDir:  filepath.Dir(file),
		ConfigFiles: []types.ConfigFile{{Filename: file, Content: data}},
		Environment: env,
	}, func(opts *loader.Options) {
		opts.SetProjectName(name, false)
	})
	if err != nil {
		return nil, err
	}

	services := p.ServiceNames()
	if len(services) == 0 {
		return nil, fmt.Errorf("%s defines no services", file)
	}
	return services, nil
}

// composeEnvironment returns the variables "docker compose" interpolates
// with: the .env file next to the compose file, overridden by the process
// environment.
func composeEnvironment(dir string) (types.Mapping, error) {
	env := types.Mapping{}
	dotEnv, err := godotenv.Read(filepath.Join(dir, ".env"))
	switch {
	case err == nil:
		for k, v := range dotEnv {
			env[k] = v
		}
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Join(dir, ".env"), err)
	}
	for k, v := range types.NewMapping(os.Environ()) {
		env[k] = v
	}
	return env, nil
}
