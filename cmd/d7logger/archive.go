package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/skobkin/d7logger/internal/app"
	"github.com/skobkin/d7logger/internal/persistence"
)

func newArchiveCmd() *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Inspect the sqlite record archive",
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "archive database (default is the user config dir)")

	resolve := func() (string, error) {
		if dbPath != "" {
			return dbPath, nil
		}
		paths, err := app.ResolvePaths()
		if err != nil {
			return "", err
		}
		return paths.DBFile, nil
	}

	sessions := &cobra.Command{
		Use:   "sessions",
		Short: "List archived sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := resolve()
			if err != nil {
				return err
			}
			return withArchive(cmd.Context(), path, func(repo *persistence.RecordRepo) error {
				list, err := repo.ListSessions(cmd.Context())
				if err != nil {
					return err
				}
				return printSessions(cmd.OutOrStdout(), list, time.Now())
			})
		},
	}

	var limit int
	show := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print the records of one session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolve()
			if err != nil {
				return err
			}
			return withArchive(cmd.Context(), path, func(repo *persistence.RecordRepo) error {
				recs, err := repo.ListBySession(cmd.Context(), args[0], limit)
				if err != nil {
					return err
				}
				for _, rec := range recs {
					if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", rec.At.Format("2006/01/02 15:04:05.000000"), rec.Body); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	show.Flags().IntVarP(&limit, "limit", "n", 0, "maximum records to print (0 prints all)")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every archived session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := resolve()
			if err != nil {
				return err
			}
			db, err := persistence.Open(cmd.Context(), path)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			return persistence.ClearDatabase(cmd.Context(), db)
		},
	}

	cmd.AddCommand(sessions, show, clearCmd)

	return cmd
}

func withArchive(ctx context.Context, path string, fn func(repo *persistence.RecordRepo) error) error {
	db, err := persistence.Open(ctx, path)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	return fn(persistence.NewRecordRepo(db))
}

func printSessions(w io.Writer, sessions []persistence.Session, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tSOURCE\tSTARTED\tDURATION\tRECORDS")
	for _, s := range sessions {
		duration := "running"
		if !s.EndedAt.IsZero() {
			duration = s.EndedAt.Sub(s.StartedAt).Round(time.Second).String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.Source, humanize.RelTime(s.StartedAt, now, "ago", "from now"), duration, humanize.Comma(s.RecordCount))
	}

	return tw.Flush()
}
