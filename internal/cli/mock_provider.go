package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/raysh454/repscan/internal/logging"
	"github.com/raysh454/repscan/internal/mockprovider"
)

func newMockProviderCmd() *cobra.Command {
	cfg := mockprovider.DefaultConfig()
	var latency time.Duration
	cmd := &cobra.Command{
		Use:   "mock-provider",
		Short: "Serve a local imitation of the provider API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Latency = latency
			logger := logging.NewLogger(cmd.ErrOrStderr(), "info", "mock-provider")
			return mockprovider.NewServer(cfg, logger).ListenAndServe(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&cfg.Addr, "addr", cfg.Addr, "Listen address")
	cmd.Flags().StringVar(&cfg.APIKey, "api-key", cfg.APIKey, "Required x-apikey value")
	cmd.Flags().IntVar(&cfg.PendingPolls, "pending-polls", 0, "Lookups answered as queued before stats are released")
	cmd.Flags().DurationVar(&latency, "latency", 0, "Artificial delay per response")
	return cmd
}
