package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/egdigital/egassist/internal/adapters/proxy"
	"github.com/egdigital/egassist/internal/adapters/secrets"
)

func newServeCmd() *cobra.Command {
	var listen string

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the conversation token proxy",
		Long:  "serve exposes GET /api/directline/token, exchanging the server-side channel secret for short-lived conversation tokens. The secret never reaches chat clients.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := newConfig()
			log := newLogger(cfg)

			secret, err := secrets.Resolve(cfg.GetString("serve.secret"), cfg.GetString("serve.secret_file"))
			if err != nil {
				return fmt.Errorf("resolve channel secret: %w", err)
			}

			server, err := proxy.NewServer(proxy.Config{
				UpstreamURL:    cfg.GetString("serve.upstream_url"),
				Secret:         secret,
				RequestTimeout: cfg.GetDuration("serve.timeout"),
			}, nil, log)
			if err != nil {
				return fmt.Errorf("wire token proxy: %w", err)
			}

			addr := listen
			if addr == "" {
				addr = cfg.GetString("serve.listen")
			}

			return server.ListenAndServe(cmd.Context(), addr)
		},
	}

	serveCmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides EGASSIST_SERVE_LISTEN)")

	return serveCmd
}
