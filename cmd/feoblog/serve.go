package main

import (
	"context"
	"net/http"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/feoblog/feoblog/api"
	"github.com/feoblog/feoblog/store"
)

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "run the HTTP server",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "bind",
			Value: "127.0.0.1:8080",
			Usage: "address:port to listen on",
		},
		&cli.BoolFlag{
			Name:  "open",
			Usage: "open the server's homepage in the default browser once it's listening",
		},
	},
	Action: func(c *cli.Context) error {
		path := dataPath(c)
		s, err := store.Open(path)
		if err != nil {
			return errors.Wrap(err, "could not open data file; run `db init` first")
		}
		defer s.Close()

		if n, err := s.SweepPlaceholders(context.Background()); err != nil {
			log.WithError(err).Warn("could not sweep stale upload placeholders")
		} else if n > 0 {
			log.WithField("count", n).Info("swept stale upload placeholders")
		}

		handler := api.NewRouter(s)
		bind := c.String("bind")
		server := &http.Server{
			Addr:         bind,
			Handler:      handler,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			log.WithField("bind", bind).Info("serving")
			errCh <- server.ListenAndServe()
		}()

		if c.Bool("open") {
			go openBrowser("http://" + bind + "/")
		}

		select {
		case err := <-errCh:
			if err != nil && err != http.ErrServerClosed {
				return errors.Wrap(err, "server exited")
			}
		case <-ctx.Done():
			log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return errors.Wrap(err, "graceful shutdown failed")
			}
		}
		return nil
	},
}

// openBrowser launches the platform default browser. No library in this
// module's dependency stack covers it, so this shells out the way each
// platform expects; a failure here is logged, not fatal, since --open is
// a convenience, not a requirement for the server to run.
func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.WithError(err).WithField("url", url).Warn("could not open browser")
	}
}
