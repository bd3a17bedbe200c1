package main

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var verbosityFlag = &cli.StringFlag{
	Name:  "verbosity",
	Usage: "logging verbosity (debug, info=default, warn, error, fatal, panic)",
	Value: "info",
}

var logFileFlag = &cli.StringFlag{
	Name:  "log-file",
	Usage: "also write logs to this file",
}

// configureLogging applies the global --verbosity and --log-file flags.
// Grounded on the teacher's ConfigurePersistentLogging: same file flags,
// same stdout+file multi-writer, minus the fluentd/json formatter choices
// and config-file loading this CLI has no use for.
func configureLogging(c *cli.Context) error {
	level, err := logrus.ParseLevel(c.String(verbosityFlag.Name))
	if err != nil {
		return err
	}
	logrus.SetLevel(level)

	logFileName := c.String(logFileFlag.Name)
	if logFileName == "" {
		return nil
	}

	f, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return err
	}
	logrus.SetOutput(io.MultiWriter(os.Stdout, f))
	log.WithField("path", logFileName).Info("logging to file")
	return nil
}
