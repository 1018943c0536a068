package cli

import (
	"context"
	"time"

	"github.com/pior/statedb"
	"github.com/pior/statedb/wire"
	"github.com/spf13/cobra"
)

func newGetCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a value by key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			out := printer{cmd.OutOrStdout()}

			return e.withClient(cmd, e.cfg.Wait, func(ctx context.Context, client *statedb.Client) error {
				start := time.Now()
				resp, err := client.Await(ctx, wire.NewRequest(wire.RequestGet, key), answers(wire.ResponseValue, key))
				if err != nil {
					return err
				}

				out.entry(resp.Key, resp.Value, resp.Type)
				out.info("%s", took(start))
				return nil
			})
		},
	}
}

// answers matches the response confirming a request on key, or any Error.
func answers(kind wire.ResponseKind, key string) func(*wire.Response) bool {
	return func(resp *wire.Response) bool {
		return resp.Kind == wire.ResponseError || (resp.Kind == kind && resp.Key == key)
	}
}
