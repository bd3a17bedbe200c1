package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/feoblog/feoblog/store"
)

var dbCommand = &cli.Command{
	Name:  "db",
	Usage: "manage the data file",
	Subcommands: []*cli.Command{
		dbInitCommand,
		dbUpgradeCommand,
		dbPruneCommand,
		dbUsageCommand,
	},
}

var dbInitCommand = &cli.Command{
	Name:  "init",
	Usage: "create a new, empty data file",
	Action: func(c *cli.Context) error {
		path := dataPath(c)
		s, err := store.Create(path)
		if err != nil {
			return err
		}
		defer s.Close()
		log.WithField("path", path).Info("initialized new data file")
		return nil
	},
}

var dbUpgradeCommand = &cli.Command{
	Name:  "upgrade",
	Usage: "run any pending schema migrations",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "i-have-a-backup",
			Usage: "confirm you've backed up the data file; upgrade refuses to run without this",
		},
	},
	Action: func(c *cli.Context) error {
		if !c.Bool("i-have-a-backup") {
			return cli.Exit("refusing to upgrade without --i-have-a-backup: migrations rewrite derived indices in place", 1)
		}
		path := dataPath(c)
		s, err := store.OpenForUpgrade(path)
		if err != nil {
			return err
		}
		defer s.Close()
		before, err := s.Version()
		if err != nil {
			return err
		}
		if err := s.Upgrade(); err != nil {
			return err
		}
		after, _ := s.Version()
		log.WithField("from", before).WithField("to", after).Info("upgrade complete")
		return nil
	},
}

var dbPruneCommand = &cli.Command{
	Name:  "prune",
	Usage: "remove items and attachments outside the known-users view",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "dry-run", Usage: "report what would be removed without removing it"},
		&cli.BoolFlag{Name: "exec", Usage: "actually remove rows (default unless --dry-run is given)"},
		&cli.BoolFlag{Name: "skip-unused-attachments", Usage: "don't prune orphaned attachment blobs"},
		&cli.BoolFlag{Name: "skip-unfollowed-items", Usage: "don't prune items from users outside the known-users view"},
	},
	Action: func(c *cli.Context) error {
		if c.Bool("dry-run") && c.Bool("exec") {
			return cli.Exit("--dry-run and --exec are mutually exclusive", 1)
		}
		path := dataPath(c)
		s, err := store.Open(path)
		if err != nil {
			return err
		}
		defer s.Close()

		if !c.Bool("dry-run") {
			if n, err := s.SweepPlaceholders(context.Background()); err != nil {
				return err
			} else if n > 0 {
				fmt.Printf("swept %d stale upload placeholders\n", n)
			}
		}

		opts := store.PruneOptions{
			Items:       !c.Bool("skip-unfollowed-items"),
			Attachments: !c.Bool("skip-unused-attachments"),
			DryRun:      c.Bool("dry-run"),
		}
		result, err := s.Prune(context.Background(), opts)
		if err != nil {
			return err
		}

		verb := "removed"
		if opts.DryRun {
			verb = "would remove"
		}
		// Items and attachments get their own byte totals in separate
		// columns on purpose, per the upstream report this was cloned
		// from mixing them into one (spec §9).
		tw := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
		fmt.Fprintf(tw, "kind\tcount\tbytes\n")
		fmt.Fprintf(tw, "items (%s)\t%d\t%d\n", verb, result.ItemsRemoved, result.ItemBytesRemoved)
		fmt.Fprintf(tw, "attachments (%s)\t%d\t%d\n", verb, result.AttachmentsRemoved, result.AttachmentBytesRemoved)
		return tw.Flush()
	},
}

var dbUsageCommand = &cli.Command{
	Name:  "usage",
	Usage: "report storage usage by user",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "limit", Usage: "show only the top N users by total bytes", Value: 0},
		&cli.BoolFlag{Name: "hex", Usage: "print user IDs in hex instead of base58"},
	},
	Action: func(c *cli.Context) error {
		path := dataPath(c)
		s, err := store.Open(path)
		if err != nil {
			return err
		}
		defer s.Close()

		rows, err := s.UsageByUser(context.Background())
		if err != nil {
			return err
		}
		if limit := c.Int("limit"); limit > 0 && limit < len(rows) {
			rows = rows[:limit]
		}

		useHex := c.Bool("hex")
		tw := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
		fmt.Fprintf(tw, "user\titems\titem_bytes\tattach\tattach_bytes\n")
		for _, r := range rows {
			var user string
			if useHex {
				user = hex.EncodeToString(r.User)
			} else {
				id, err := userIDString(r.User)
				if err != nil {
					user = hex.EncodeToString(r.User)
				} else {
					user = id
				}
			}
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", user, r.ItemCount, r.ItemBytes, r.AttachmentCount, r.AttachmentBytes)
		}
		return tw.Flush()
	},
}
