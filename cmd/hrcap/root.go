package main

import (
	"io"
	"time"

	"codeberg.org/mutker/hrcap/internal/config"
	"codeberg.org/mutker/hrcap/internal/journal"
	"codeberg.org/mutker/hrcap/internal/logger"
	"codeberg.org/mutker/hrcap/internal/observations"
	"codeberg.org/mutker/hrcap/internal/protocol"
	"github.com/spf13/cobra"
)

type app struct {
	cfg *config.Config
	log logger.Logger
	now func() time.Time
}

func newRootCmd() *cobra.Command {
	a := &app{now: time.Now}

	rootCmd := &cobra.Command{
		Use:           "hrcap",
		Short:         "Capture, decode and journal heart-rate sensor telemetry",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Path to hrcap.toml")
	flags.String("log-level", string(config.DefaultLogLevel), "Log level (debug, info, warning, error)")
	flags.Bool("debug", false, "Enable debugging mode")
	flags.Bool("verbose", false, "Enable verbose logging")
	flags.String("journal-dir", config.DefaultJournalDir, "Directory holding session artifacts")
	flags.Bool("journal-sync", true, "Fsync every journal append")
	flags.String("device", config.DefaultDeviceName, "Device name used for new sessions")
	flags.StringSlice("vendor", []string{string(protocol.ChannelVendor)}, "Channels carrying the proprietary frame")
	flags.Bool("observations", false, "Mirror observations into SQLite")
	flags.String("db-path", observations.DefaultConfig().DBPath, "Observation database path")
	flags.String("mqtt-broker", "", "MQTT broker receiving validated heart rates")
	flags.String("mqtt-topic", "", "MQTT topic for heart rates")

	rootCmd.AddCommand(
		newVersionCmd(),
		newReplayCmd(a),
		newDecodeCmd(a),
		newInspectCmd(a),
		newSessionsCmd(a),
	)

	return rootCmd
}

func (a *app) init(cmd *cobra.Command) error {
	var opts []config.Option
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		opts = append(opts, config.WithConfigFile(path))
	}

	cfg, err := config.Load(cmd.Flags(), opts...)
	if err != nil {
		return err
	}
	a.cfg = cfg

	initLogger(cmd.ErrOrStderr(), cfg)
	a.log = logger.Default()
	logger.Debug().Str("journal_dir", cfg.Journal.Dir).Msg("Config loaded")

	return nil
}

func initLogger(out io.Writer, cfg *config.Config) {
	logger.InitWriter(out, cfg.Debug, cfg.Verbose, logger.IsService())
	if cfg.Debug || cfg.Verbose {
		return
	}
	if level, ok := logger.ParseLevel(cfg.LogLevel); ok {
		logger.SetLogLevel(level)
	}
}

func (a *app) openStore() (*journal.FileStore, error) {
	return journal.NewFileStore(a.cfg.Journal.Dir, a.cfg.Journal.Sync)
}
