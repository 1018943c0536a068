package cli

import (
	"context"
	"maps"
	"slices"
	"strings"

	"github.com/pior/statedb"
	"github.com/spf13/cobra"
)

func newDumpCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "dump [prefix]",
		Short: "List every key, optionally filtered by prefix",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			out := printer{cmd.OutOrStdout()}

			return e.withClient(cmd, e.cfg.Wait, func(ctx context.Context, client *statedb.Client) error {
				st := client.Storage()
				if err := st.UpdateAll(); err != nil {
					return err
				}
				// the server answers in order: once the Pong is in, every
				// Value sent for GetAll has been dispatched
				if err := client.Ping(ctx); err != nil {
					return err
				}

				snapshot := st.Snapshot()
				count := 0
				for _, key := range slices.Sorted(maps.Keys(snapshot)) {
					if !strings.HasPrefix(key, prefix) {
						continue
					}
					entry := snapshot[key]
					out.entry(key, entry.Value, entry.Type)
					count++
				}

				if count == 0 {
					out.info("no keys")
				}
				return nil
			})
		},
	}
}
