package cli

import (
	"context"
	"time"

	"github.com/pior/statedb"
	"github.com/spf13/cobra"
)

func newPingCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the server answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := printer{cmd.OutOrStdout()}

			return e.withClient(cmd, e.cfg.Wait, func(ctx context.Context, client *statedb.Client) error {
				start := time.Now()
				if err := client.Ping(ctx); err != nil {
					return err
				}

				out.success("pong from %s %s", e.cfg.Addr, took(start))
				return nil
			})
		},
	}
}
