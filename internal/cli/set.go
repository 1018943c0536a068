package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/pior/statedb"
	"github.com/pior/statedb/wire"
	"github.com/spf13/cobra"
)

func newSetCommand(e *env) *cobra.Command {
	var typeName string

	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a key to a typed value",
		Long: `Set a key to a typed value.

Types: auto, None, Blob (hex), String, Int8, UInt8, Int16, UInt16, Int32,
UInt32, Float32, Float64, BigInt. With auto, integers become Int32 or BigInt,
decimals Float64 (Float32 with --double=false) and anything else a String.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			text := ""
			if len(args) == 2 {
				text = args[1]
			}

			t, ok := wire.ParseDataType(typeName)
			if !ok {
				return fmt.Errorf("unknown type %q", typeName)
			}
			value, err := parseValue(text, t)
			if err != nil {
				return err
			}

			out := printer{cmd.OutOrStdout()}

			return e.withClient(cmd, e.cfg.Wait, func(ctx context.Context, client *statedb.Client) error {
				start := time.Now()
				resp, err := client.Await(ctx, wire.NewSetRequest(key, value, t), answers(wire.ResponseValue, key))
				if err != nil {
					return err
				}

				out.success("stored %s", took(start))
				out.entry(resp.Key, resp.Value, resp.Type)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&typeName, "type", "t", "auto", "value type")
	return cmd
}
