package runner

import (
	"strings"

	"ray/runner/process"
)

// Output matchers for docker CLI failures that are expected during a swap.
var (
	noSuchContainer = containsAny("no such container")
	noSuchNetwork   = containsAny("no such network", "not found")
	networkExists   = containsAny("already exists")
)

func containsAny(needles ...string) process.Matcher {
	return func(output string) bool {
		out := strings.ToLower(output)
		for _, n := range needles {
			if strings.Contains(out, n) {
				return true
			}
		}
		return false
	}
}

func gitClone(repo, branch, workspace string) process.Command {
	args := []string{"clone"}
	if branch != "" {
		args = append(args, "-b", branch)
	}
	return process.Cmd("git", append(args, repo, workspace)...)
}

func dockerBuild(image, dockerfile, workspace string) process.Command {
	return process.Cmd("docker", "build", "-t", image, "-f", dockerfile, workspace)
}

func dockerRun(spec ContainerSpec, logDir, envFile string) process.Command {
	args := []string{"run", "-d", "--name", spec.TempName(), "-v", logDir + ":/app/logs"}
	if envFile != "" {
		args = append(args, "--env-file", envFile)
	}
	for _, v := range spec.Volumes {
		args = append(args, "-v", v)
	}
	return process.Cmd("docker", append(args, spec.Image)...)
}

func dockerNetwork(verb string, args ...string) process.Command {
	return process.Cmd("docker", append([]string{"network", verb}, args...)...)
}

func dockerComposeUp(file string) process.Command {
	return process.Cmd("docker", "compose", "-f", file, "up", "-d")
}
