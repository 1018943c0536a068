package cli

import (
	"context"
	"time"

	"github.com/pior/statedb"
	"github.com/pior/statedb/wire"
	"github.com/spf13/cobra"
)

func newDeleteCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <key>",
		Aliases: []string{"del"},
		Short:   "Delete a key",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			out := printer{cmd.OutOrStdout()}

			return e.withClient(cmd, e.cfg.Wait, func(ctx context.Context, client *statedb.Client) error {
				start := time.Now()
				if _, err := client.Await(ctx, wire.NewRequest(wire.RequestDelete, key), answers(wire.ResponseDeleted, key)); err != nil {
					return err
				}

				out.success("deleted %s %s", key, took(start))
				return nil
			})
		},
	}
}
