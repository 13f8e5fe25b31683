package cmd

import (
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/goctc/internal/config"
	"github.com/MeKo-Tech/goctc/internal/version"
	"github.com/spf13/cobra"
)

// cliState is shared by one command tree: the --config path and the
// configuration loaded before any subcommand runs.
type cliState struct {
	cfgFile string
	loader  *config.Loader
	config  *config.Config
}

// NewRootCommand builds a fresh command tree. Every call gets its own flags
// and configuration, so trees can be executed repeatedly in one process.
func NewRootCommand() *cobra.Command {
	st := &cliState{}

	rootCmd := &cobra.Command{
		Use:   "ctc",
		Short: "CTC label probability, gradient and best-path decoding",
		Long: `Score a label sequence against a matrix of per-time-step symbol
distributions using Connectionist Temporal Classification.

This tool provides:
- P(label | emissions) via the forward-backward recurrences
- The gradient of P with respect to every emission entry
- Best-path (greedy) decoding
- Parallel batch scoring from job files
- An HTTP and WebSocket scoring service

Examples:
  ctc score emissions.json --label hello
  ctc score emissions.csv -l abc --gradient --format json
  ctc decode emissions.json
  ctc batch jobs.yaml --workers 8
  ctc bench --steps 100,1000
  ctc serve --port 8080`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := st.initConfig(cmd); err != nil {
				return err
			}
			st.setupLogging(cmd)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.SetVersionTemplate(version.String() + "\n")

	rootCmd.PersistentFlags().StringVar(&st.cfgFile, "config", "",
		"config file (default is search in ., $HOME, $HOME/.config/goctc, /etc/goctc)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newScoreCmd(st),
		newDecodeCmd(st),
		newBatchCmd(st),
		newSynthCmd(),
		newBenchCmd(),
		newServeCmd(st),
		newConfigCmd(st),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs a fresh command tree with the process arguments.
func Execute() error {
	return NewRootCommand().Execute()
}

// initConfig loads the configuration, with the root flags bound on top of
// files, environment variables and defaults.
func (st *cliState) initConfig(cmd *cobra.Command) error {
	st.loader = config.NewIsolatedLoader()
	v := st.loader.GetViper()
	flags := cmd.Root().PersistentFlags()
	if err := v.BindPFlag("verbose", flags.Lookup("verbose")); err != nil {
		return err
	}
	if err := v.BindPFlag("log_level", flags.Lookup("log-level")); err != nil {
		return err
	}

	cfg, err := st.loader.LoadWithFile(st.cfgFile)
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	st.config = cfg
	return nil
}

// setupLogging installs a JSON slog handler on stderr so command output on
// stdout stays machine readable.
func (st *cliState) setupLogging(cmd *cobra.Command) {
	var level slog.Level
	if st.config.Verbose {
		level = slog.LevelDebug
	} else {
		switch st.config.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		default:
			level = slog.LevelInfo
		}
	}

	logger := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// GetConfig returns the configuration loaded for this command tree.
func (st *cliState) GetConfig() *config.Config {
	if st.config == nil {
		cfg := config.DefaultConfig()
		st.config = &cfg
	}
	return st.config
}
