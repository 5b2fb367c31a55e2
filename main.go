package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli"

	"ray/cmd"
)

// Version is set at build time.
var Version = "dev"

func main() {
	app := cli.NewApp()
	app.Name = "ray"
	app.Usage = "Deploy projects from git to docker"
	app.Version = Version
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "config, c",
			Value:  "ray.yaml",
			Usage:  "Load settings from `FILE`",
			EnvVar: "RAY_CONFIG",
		},
		cli.StringFlag{
			Name:  "projects, p",
			Usage: "Load projects from `FILE` (overrides the settings)",
		},
	}

	app.Commands = []cli.Command{
		{
			Name:      "run",
			Usage:     "Deploy every project, or only the named one",
			ArgsUsage: "[project]",
			Flags: []cli.Flag{
				cli.BoolFlag{
					Name:  "verbose, v",
					Usage: "print the output of every command",
				},
			},
			Action: withEnv(func(c *cli.Context, env *cmd.Env) error {
				return cmd.Run(context.Background(), env, cmd.RunOptions{
					ProjectsFile: c.GlobalString("projects"),
					Project:      c.Args().First(),
					Verbose:      c.Bool("verbose"),
					Out:          os.Stdout,
				})
			}),
		},
		{
			Name:      "init",
			Usage:     "Write an example " + cmd.DefaultProjectsFile,
			ArgsUsage: "[file]",
			Action: func(c *cli.Context) error {
				path := c.Args().First()
				if err := cmd.Init(path); err != nil {
					return err
				}
				if path == "" {
					path = cmd.DefaultProjectsFile
				}
				fmt.Printf("Wrote %s\n", path)
				return nil
			},
		},
		{
			Name:      "history",
			Usage:     "List recent runs",
			ArgsUsage: "[project]",
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "limit, n",
					Value: 20,
					Usage: "number of runs to show",
				},
			},
			Action: withEnv(func(c *cli.Context, env *cmd.Env) error {
				return cmd.History(env, c.Args().First(), c.Int("limit"), os.Stdout)
			}),
		},
		{
			Name:  "serve",
			Usage: "Start the HTTP API and the scheduler",
			Action: withEnv(func(c *cli.Context, env *cmd.Env) error {
				return cmd.Serve(context.Background(), env, c.GlobalString("projects"))
			}),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func withEnv(fn func(c *cli.Context, env *cmd.Env) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		env, err := cmd.Setup(c.GlobalString("config"))
		if err != nil {
			return err
		}
		defer env.Close()
		return fn(c, env)
	}
}
