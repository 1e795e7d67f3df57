package main

import (
	"fmt"

	"codeberg.org/mutker/hrcap/internal/journal"
	"codeberg.org/mutker/hrcap/internal/protocol"
	"codeberg.org/mutker/hrcap/internal/session"
	"github.com/spf13/cobra"
)

func newInspectCmd(a *app) *cobra.Command {
	var channel string

	cmd := &cobra.Command{
		Use:   "inspect <session-id>",
		Short: "Print the records of a session's binary table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}

			name := journal.ArtifactName(session.ID(args[0]), journal.KindBinary, protocol.ChannelID(channel))
			records, readErr := journal.ReadBinaryRecords(cmd.Context(), store, name)

			dec := protocol.NewDecoder(protocol.NewClassifier(a.cfg.Channels()...))
			out := cmd.OutOrStdout()
			for _, rec := range records {
				obs := dec.Decode(protocol.RawEvent{
					Channel:   protocol.ChannelID(channel),
					Payload:   rec.Payload,
					Timestamp: rec.Time(),
				})
				fmt.Fprintf(out, "%s  %-47s  %s\n",
					rec.Time().Format(journal.TimestampLayout),
					journal.HexString(rec.Payload),
					obs.Summary())
			}

			return readErr
		},
	}

	cmd.Flags().StringVar(&channel, "channel", string(protocol.ChannelVendor), "Channel whose binary table to read")

	return cmd
}
