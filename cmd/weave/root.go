package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/dgallion1/docweave/internal/config"
	"github.com/dgallion1/docweave/internal/logs"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries the state every subcommand shares once flags are parsed.
type app struct {
	v        *viper.Viper
	cfg      config.Config
	log      *slog.Logger
	closeLog func() error
}

// flagKeys binds command-line flags to configuration keys. Flags are
// looked up on the running command, so each key only needs the
// subcommands that declare it.
var flagKeys = map[string]string{
	"log-level":     "log_level",
	"log-file":      "log_file",
	"dialect":       "weave.dialect",
	"dialects-file": "weave.dialects_file",
	"fig-dir":       "weave.fig_dir",
	"timeout":       "weave.chunk_timeout",
	"ext":           "weave.tangle_ext",
	"port":          "server.port",
	"workers":       "server.worker_count",
}

func execute(args []string, stdout, stderr io.Writer) error {
	a := &app{closeLog: func() error { return nil }}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if cerr := a.closeLog(); err == nil {
		err = cerr
	}
	return err
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "weave",
		Short: "Literate programming weaver",
		Long: "weave executes the code chunks of a literate document and writes the " +
			"document back out with code, results and figures in a markup dialect.",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.init,
	}

	root.PersistentFlags().String("config", "", "config file (default .docweave.yaml)")
	root.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().String("log-file", "", "also append JSON logs to this file")

	root.AddCommand(
		newWeaveCmd(a),
		newTangleCmd(a),
		newServeCmd(a),
		newDialectsCmd(a),
	)
	return root
}

// init loads the configuration and builds the logger.
func (a *app) init(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	v, err := config.NewViper(cfgFile)
	if err != nil {
		return err
	}
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("bind --%s: %w", name, err)
			}
		}
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	if noPlot, _ := cmd.Flags().GetBool("no-plot"); noPlot {
		cfg.Weave.Plot = false
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, closeLog, err := logs.New(logs.Options{
		Level:  cfg.LogLevel,
		Stderr: cmd.ErrOrStderr(),
		File:   cfg.LogFile,
	})
	if err != nil {
		return err
	}

	a.v = v
	a.cfg = cfg
	a.log = log
	a.closeLog = closeLog
	log.Debug("configuration loaded", "config_file", v.ConfigFileUsed())
	return nil
}
