package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raysh454/clarity/internal/app"
	"github.com/raysh454/clarity/internal/model"
)

func newScanCmd(st *state) *cobra.Command {
	var (
		strategy string
		pretty   bool
	)

	cmd := &cobra.Command{
		Use:   "scan <url>",
		Short: "Scan one page and print the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := *st.cfg
			if strategy != "" {
				cfg.Scan.Strategy = model.StrategyKind(strategy)
				if err := cfg.Validate(); err != nil {
					return err
				}
			}

			scanner, closeFn, err := app.NewScanner(&cfg, st.logger, nil, nil)
			if err != nil {
				return err
			}
			defer closeFn()

			result, err := scanner.Scan(cmd.Context(), args[0])
			if err != nil {
				var se *model.ScanError
				if errors.As(err, &se) {
					return fmt.Errorf("%s: %s", se.Kind, se.Msg)
				}
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			if pretty {
				enc.SetIndent("", "  ")
			}
			return enc.Encode(result)
		},
	}
	cmd.Flags().StringVar(&strategy, "strategy", "", "local or remote, overrides scan.strategy")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "indent the JSON output")
	return cmd
}
