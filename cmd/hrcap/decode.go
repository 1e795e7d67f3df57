package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"codeberg.org/mutker/hrcap/internal/derive"
	"codeberg.org/mutker/hrcap/internal/errors"
	"codeberg.org/mutker/hrcap/internal/protocol"
	"github.com/spf13/cobra"
)

func newDecodeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "decode <channel> <hex-bytes>",
		Short:   "Decode a single payload and print the observation",
		Example: "  hrcap decode FC20 \"01 0A C6 4E 4D 2C FB 02 8A 1E AF 3C 00 28\"",
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := hex.DecodeString(strings.Join(strings.Fields(strings.Join(args[1:], " ")), ""))
			if err != nil {
				return errors.New().Wrap(errors.ErrInvalidArgument, err)
			}

			dec := protocol.NewDecoder(protocol.NewClassifier(a.cfg.Channels()...))
			obs := derive.Derive(dec.Decode(protocol.RawEvent{
				Channel:   protocol.ChannelID(args[0]),
				Payload:   payload,
				Timestamp: a.now(),
			}))

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, obs.Summary())
			if obs.HeartRate.Valid {
				fmt.Fprintf(out, "forward to health store: %t\n", derive.HeartRateIsPlausible(obs.HeartRate.V))
			}
			if obs.RawOnly() {
				fmt.Fprintln(out, "raw only")
			}

			return nil
		},
	}
}

