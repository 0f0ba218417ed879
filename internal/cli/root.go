// Package cli holds the clarity command tree.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/raysh454/clarity/internal/app"
	"github.com/raysh454/clarity/internal/logging"
)

// state is filled by the root PersistentPreRunE and read by subcommands.
type state struct {
	cfgFile  string
	logLevel string

	cfg    *app.Config
	logger *logging.ZapLogger
}

// NewRootCmd builds a fresh command tree. Tests call it once per case.
func NewRootCmd() *cobra.Command {
	st := &state{}

	root := &cobra.Command{
		Use:           "clarity",
		Short:         "Clarity scans public web pages for accessibility problems.",
		Version:       app.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig(app.NewViper(), st.cfgFile)
			if err != nil {
				return err
			}
			if st.logLevel != "" {
				cfg.Logger.Level = st.logLevel
			}

			// Logs go to stderr so `clarity scan` keeps stdout for JSON.
			logger, err := logging.NewZapLogger(cfg.Logger, zapcore.AddSync(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			st.cfg = cfg
			st.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if st.logger != nil {
				_ = st.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVarP(&st.cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	root.PersistentFlags().StringVar(&st.logLevel, "log-level", "", "override logger.level (debug, info, warn, error)")
	root.SetVersionTemplate(`{{printf "clarity %s\n" .Version}}`)

	root.AddCommand(newServeCmd(st), newScanCmd(st), newDemoCmd(st), newVersionCmd())
	return root
}

// Execute runs the command tree and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the clarity version",
		Args:  cobra.NoArgs,
		// Skip config loading.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "clarity %s\n", app.Version)
		},
	}
}
