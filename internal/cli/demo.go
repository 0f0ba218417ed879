package cli

import (
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/raysh454/clarity/internal/demosite"
)

func newDemoCmd(st *state) *cobra.Command {
	var (
		addr    string
		version int
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Serve a local site with known accessibility defects",
		Long: `Serves a small HTTPS site whose pages fail well-known accessibility rules.
The certificate is self-signed, so local scans against it need
browser.extra_flags: [ignore-certificate-errors] and
scan.url.deny_private_hosts: false.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cert, err := demosite.SelfSignedCertificate([]string{"localhost", "127.0.0.1", "::1"}, time.Now())
			if err != nil {
				return err
			}
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listening on %s: %w", addr, err)
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "demo site on https://%s (control panel at /demo/control)\n", ln.Addr())
			return demosite.New(version, st.logger).ServeTLS(cmd.Context(), ln, cert)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:9443", "listen address")
	cmd.Flags().IntVar(&version, "page-version", 1, "initial page version (1 is the most broken)")
	return cmd
}
