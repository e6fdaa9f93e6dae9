package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/limaJavier/timetable-engine/pkg/config"
	"github.com/limaJavier/timetable-engine/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// errIncomplete marks a run that finished without placing every required period
var errIncomplete = errors.New("timetable is incomplete")

const (
	exitFailure    = 1
	exitIncomplete = 2
)

// app is shared by every subcommand; it is filled by the root command's PersistentPreRunE
type app struct {
	configPath string
	logLevel   string
	config     *config.Config
	logger     *zap.Logger
}

func main() {
	a := &app{}
	root := newRootCommand(a)

	err := root.ExecuteContext(context.Background())
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	switch {
	case err == nil:
	case errors.Is(err, errIncomplete):
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitIncomplete)
	default:
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitFailure)
	}
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "timetable",
		Short:         "School timetable engine",
		Long:          "Generates, evaluates and repairs weekly school timetables driven by a visual rule graph",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to the config file; defaults to ./config/config.yaml or ./config.yaml when present")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "overrides log.level from the config")

	root.AddCommand(
		a.generateCommand(),
		a.evaluateCommand(),
		a.validateCommand(),
		a.resolveCommand(),
		a.serveCommand(),
		a.solveCommand(),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logger, err = logger.NewLogger(cfg.Log); err != nil {
		return err
	}
	a.config = cfg
	return nil
}

// writeOutput writes to the file when one is given and to stdout otherwise
func writeOutput(cmd *cobra.Command, out string, bytes []byte) error {
	if out == "" {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), string(bytes))
		return err
	}
	if err := os.WriteFile(out, bytes, 0666); err != nil {
		return fmt.Errorf("cannot write output file: %w", err)
	}
	return nil
}
