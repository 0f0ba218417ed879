package cli

import (
	"github.com/spf13/cobra"

	"github.com/raysh454/clarity/internal/app"
	"github.com/raysh454/clarity/internal/logging"
)

func newServeCmd(st *state) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				st.cfg.Server.ListenAddr = addr
			}

			a, err := app.NewApplication(st.cfg, st.logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					st.logger.Warn("closing application", logging.Err(err))
				}
			}()

			st.logger.Info("starting clarity", logging.Field{Key: "version", Value: app.Version})
			return a.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.listen_addr")
	return cmd
}
