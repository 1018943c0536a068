package cli

import (
	"context"
	"os"
	"os/signal"
	"slices"
	"sync"
	"time"

	"github.com/pior/statedb"
	"github.com/pior/statedb/wire"
	"github.com/spf13/cobra"
)

func newWatchCommand(e *env) *cobra.Command {
	var forDuration time.Duration

	cmd := &cobra.Command{
		Use:   "watch [key...]",
		Short: "Print changes as the server reports them",
		Long: `Print changes as the server reports them, until interrupted.

The current values are fetched first. Only the given keys are printed when
any are passed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := printer{cmd.OutOrStdout()}
			watched := func(key string) bool {
				return len(args) == 0 || slices.Contains(args, key)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			cmd.SetContext(ctx)

			return e.withClient(cmd, forDuration, func(ctx context.Context, client *statedb.Client) error {
				conn := client.Connection()
				logout := make(chan struct{})
				var once sync.Once

				// handlers run on the receive goroutine, one at a time
				conn.Register(wire.ResponseValue, func(resp *wire.Response) {
					if watched(resp.Key) {
						out.entry(resp.Key, resp.Value, resp.Type)
					}
				})
				conn.Register(wire.ResponseDeleted, func(resp *wire.Response) {
					if watched(resp.Key) {
						out.print("DEL", "%s", resp.Key)
					}
				})
				conn.Register(wire.ResponseError, func(resp *wire.Response) {
					out.warn("server error: %s", resp.Message)
				})
				conn.Register(wire.ResponseForceLogout, func(*wire.Response) {
					out.warn("logged out by the server")
					once.Do(func() { close(logout) })
				})

				if err := client.Storage().UpdateAll(); err != nil {
					return err
				}

				select {
				case <-ctx.Done():
					return nil
				case <-logout:
					return nil
				case <-conn.Done():
					return client.Wait()
				}
			})
		},
	}

	cmd.Flags().DurationVar(&forDuration, "for", 0, "stop after this long (default: until interrupted)")
	return cmd
}
