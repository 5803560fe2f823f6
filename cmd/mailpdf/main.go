package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/nhle/mailpdf/internal/model"
)

func main() {
	if err := newCLI().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCLI() *cli.App {
	return &cli.App{
		Name:  "mailpdf",
		Usage: "save PDF attachments of matching unread mail and mark the mail read",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   model.DefaultConfigPath,
				Usage:   "YAML configuration file",
				EnvVars: []string{"MAILPDF_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "env-file",
				Value: ".env",
				Usage: "dotenv file loaded before the configuration",
			},
		},
		Before: loadEnvFile,
		Action: runCommand,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "poll the mailbox until interrupted",
				Action: runCommand,
			},
			{
				Name:   "once",
				Usage:  "run a single poll cycle and print its result",
				Action: onceCommand,
			},
			{
				Name:   "login",
				Usage:  "sign in (device code if needed) and store the token cache",
				Action: loginCommand,
			},
			{
				Name:  "history",
				Usage: "show recently saved attachments from the download ledger",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20, Usage: "number of rows"},
				},
				Action: historyCommand,
			},
		},
	}
}

// loadEnvFile loads the dotenv file into the process environment without
// overriding variables that are already set. A missing file is ignored.
func loadEnvFile(c *cli.Context) error {
	path := c.String("env-file")
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}
