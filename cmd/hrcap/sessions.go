package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"codeberg.org/mutker/hrcap/internal/export"
	"codeberg.org/mutker/hrcap/internal/journal"
	"codeberg.org/mutker/hrcap/internal/logger"
	"codeberg.org/mutker/hrcap/internal/observations"
	"codeberg.org/mutker/hrcap/internal/session"
	"github.com/spf13/cobra"
)

func newSessionsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List, locate, export and delete recorded sessions",
	}

	cmd.AddCommand(
		newSessionsListCmd(a),
		newSessionsLocateCmd(a),
		newSessionsDeleteCmd(a),
		newSessionsExportCmd(a),
	)

	return cmd
}

func newSessionsListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sessions, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}

			sessions, err := journal.NewRegistry(store).List(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SESSION\tDEVICE\tCREATED\tARTIFACTS")
			for _, s := range sessions {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n",
					s.ID, s.Device, s.Created.Format(journal.TimestampLayout), len(s.Artifacts))
			}

			return w.Flush()
		},
	}
}

func newSessionsLocateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "locate <session-id>",
		Short: "Print the artifact paths of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}

			paths, err := journal.NewRegistry(store).Locate(cmd.Context(), session.ID(args[0]))
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}

			return nil
		},
	}
}

func newSessionsDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>...",
		Short: "Delete every artifact of the given sessions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}

			recorder, err := observations.NewRecorder(a.cfg.ObservationsConfig(), a.log.With("observations"))
			if err != nil {
				return err
			}
			defer recorder.Close()

			registry := journal.NewRegistry(store)
			for _, arg := range args {
				id := session.ID(arg)
				if err := registry.Delete(cmd.Context(), id); err != nil {
					return err
				}

				rows, err := recorder.DeleteSession(cmd.Context(), id)
				if err != nil {
					logger.Warn().Err(err).Str("session", arg).Msg("Failed to delete mirrored observations")
				}

				logger.Info().Str("session", arg).Int64("observations", rows).Msg("Session deleted")
			}

			return nil
		},
	}
}

func newSessionsExportCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <session-id>",
		Short: "Write a session bundle (" + export.FileExtension + ")",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}

			id := session.ID(args[0])
			path := output
			if path == "" {
				path = string(id) + export.FileExtension
			}

			f, err := os.Create(path)
			if err != nil {
				return err
			}

			manifest, err := export.Write(cmd.Context(), f, store, id, a.now())
			if closeErr := f.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				os.Remove(path)
				return err
			}

			abs, _ := filepath.Abs(path)
			fmt.Fprintln(cmd.OutOrStdout(), abs)
			logger.Info().Str("session", args[0]).Int("artifacts", len(manifest.Artifacts)).Msg("Session exported")

			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Bundle path (default <session-id>"+export.FileExtension+")")

	return cmd
}
