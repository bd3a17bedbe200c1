// Package main is the feoblog server CLI entrypoint: db management,
// server-user administration, and the `serve` subcommand (spec §6).
package main

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var log = logrus.WithField("prefix", "main")

var dataDirFlag = &cli.StringFlag{
	Name:    "data-dir",
	Aliases: []string{"d"},
	Value:   "./data",
	Usage:   "directory holding the feoblog data file",
}

func main() {
	app := &cli.App{
		Name:   "feoblog",
		Usage:  "a federated, cryptographically-signed microblogging server",
		Flags:  []cli.Flag{dataDirFlag, verbosityFlag, logFileFlag},
		Before: configureLogging,
		Commands: []*cli.Command{
			dbCommand,
			userCommand,
			serveCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Error("feoblog exited with an error")
		os.Exit(1)
	}
}

func dataPath(c *cli.Context) string {
	dir, err := ensureDataDir(c.String(dataDirFlag.Name))
	if err != nil {
		log.WithError(err).Fatal("could not prepare data directory")
	}
	return filepath.Join(dir, "feoblog.db")
}
