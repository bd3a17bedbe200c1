package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/feoblog/feoblog/identity"
	"github.com/feoblog/feoblog/store"
)

var userCommand = &cli.Command{
	Name:  "user",
	Usage: "manage server users (spec §3: direct posting permission)",
	Subcommands: []*cli.Command{
		userListCommand,
		userAddCommand,
		userRemoveCommand,
	},
}

var userListCommand = &cli.Command{
	Name:  "list",
	Usage: "list server users",
	Action: func(c *cli.Context) error {
		s, err := store.Open(dataPath(c))
		if err != nil {
			return err
		}
		defer s.Close()

		tw := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
		fmt.Fprintf(tw, "user\ton_homepage\tnotes\n")
		if err := s.ServerUsers(context.Background(), func(u store.ServerUser) bool {
			id, err := userIDString(u.User)
			if err != nil {
				return true
			}
			fmt.Fprintf(tw, "%s\t%t\t%s\n", id, u.OnHomepage, u.Notes)
			return true
		}); err != nil {
			return err
		}
		return tw.Flush()
	},
}

var userAddCommand = &cli.Command{
	Name:      "add",
	Usage:     "grant a user direct posting permission",
	ArgsUsage: "USER_ID",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "on-homepage", Value: true, Usage: "include this user's items on the homepage feed"},
		&cli.StringFlag{Name: "notes", Usage: "free-text note stored alongside the server-user row"},
	},
	Action: func(c *cli.Context) error {
		if c.Args().Len() != 1 {
			return cli.Exit("expected exactly one USER_ID argument", 1)
		}
		user, err := identity.ParseUserID(c.Args().First())
		if err != nil {
			return cli.Exit(fmt.Sprintf("invalid user ID: %s", err), 1)
		}
		s, err := store.Open(dataPath(c))
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.AddServerUser(context.Background(), user.Bytes(), c.Bool("on-homepage"), c.String("notes")); err != nil {
			return err
		}
		log.WithField("user", user.String()).Info("added server user")
		return nil
	},
}

var userRemoveCommand = &cli.Command{
	Name:      "remove",
	Usage:     "revoke a user's direct posting permission",
	ArgsUsage: "USER_ID",
	Action: func(c *cli.Context) error {
		if c.Args().Len() != 1 {
			return cli.Exit("expected exactly one USER_ID argument", 1)
		}
		user, err := identity.ParseUserID(c.Args().First())
		if err != nil {
			return cli.Exit(fmt.Sprintf("invalid user ID: %s", err), 1)
		}
		s, err := store.Open(dataPath(c))
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.RemoveServerUser(context.Background(), user.Bytes()); err != nil {
			return err
		}
		log.WithField("user", user.String()).Info("removed server user")
		return nil
	},
}

func userIDString(raw []byte) (string, error) {
	id, err := identity.UserIDFromBytes(raw)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
