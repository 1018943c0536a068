package cli

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/pior/statedb"
	"github.com/pior/statedb/internal/config"
	"github.com/pior/statedb/internal/logger"
	"github.com/pior/statedb/wire"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides *CLI from *config.Config and *zap.Logger.
var Module = fx.Provide(NewCLI)

type CLI struct {
	root *cobra.Command
	env  *env
}

// env is the state shared by every command
type env struct {
	cfg    *config.Config
	logger *zap.Logger

	// dial overrides the transport picked from the address
	dial statedb.DialFunc
}

func NewCLI(cfg *config.Config, log *zap.Logger) *CLI {
	e := &env{cfg: cfg, logger: log}

	rootCmd := &cobra.Command{
		Use:          "statedb-cli",
		Short:        "A command-line client for statedb",
		Long:         "statedb-cli talks to a statedb server over its binary protocol, directly over TCP or tunneled through a WebSocket (ws:// and wss:// addresses).",
		SilenceUsage: true,
	}
	e.bindFlags(rootCmd)

	registry := newCommandRegistry(e)
	registry.registerCommands(rootCmd)

	return &CLI{root: rootCmd, env: e}
}

func (c *CLI) Run() error {
	return c.root.Execute()
}

// Execute runs args with output sent to out, for tests and embedding.
func (c *CLI) Execute(ctx context.Context, args []string, out io.Writer) error {
	c.root.SetArgs(args)
	c.root.SetOut(out)
	c.root.SetErr(out)
	return c.root.ExecuteContext(ctx)
}

func (e *env) bindFlags(root *cobra.Command) {
	flags := root.PersistentFlags()
	configPath := flags.String("config", "", "TOML config file (default $"+config.EnvConfig+")")
	addr := flags.String("addr", e.cfg.Addr, "server address, host:port or ws:// URL (env $"+config.EnvAddr+")")
	double := flags.Bool("double", e.cfg.FloatPrecision == wire.PrecisionDouble, "infer Float64 for decimal values, Float32 otherwise")
	wait := flags.Duration("wait", e.cfg.Wait, "how long to wait for the server's answer")
	dialTimeout := flags.Duration("dial-timeout", e.cfg.DialTimeout, "connection timeout")
	logLevel := flags.String("log-level", e.cfg.LogLevel, "log level (debug, info, warn, error)")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if flags.Changed("config") {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			*e.cfg = *cfg
		}

		level := e.cfg.LogLevel

		if flags.Changed("addr") {
			e.cfg.Addr = *addr
		}
		if flags.Changed("double") {
			e.cfg.FloatPrecision = precision(*double)
		}
		if flags.Changed("wait") {
			e.cfg.Wait = *wait
		}
		if flags.Changed("dial-timeout") {
			e.cfg.DialTimeout = *dialTimeout
		}
		if flags.Changed("log-level") {
			e.cfg.LogLevel = *logLevel
		}

		if e.logger == nil || e.cfg.LogLevel != level || flags.Changed("config") {
			log, err := logger.New(e.cfg.LogLevel)
			if err != nil {
				return err
			}
			e.logger = log
		}
		return nil
	}
}

func precision(double bool) wire.Precision {
	if double {
		return wire.PrecisionDouble
	}
	return wire.PrecisionSingle
}

func (e *env) clientConfig() statedb.Config {
	cfg := statedb.Config{
		Addr:           e.cfg.Addr,
		DialTimeout:    e.cfg.DialTimeout,
		FloatPrecision: e.cfg.FloatPrecision,
		Logger:         e.logger,
		Dial:           e.dial,
	}
	if cfg.Dial == nil && (strings.HasPrefix(cfg.Addr, "ws://") || strings.HasPrefix(cfg.Addr, "wss://")) {
		cfg.Dial = statedb.WebSocketDialer(nil, nil)
	}
	return cfg
}

// withClient connects, runs fn and tears the connection down. A positive
// timeout bounds the whole call.
func (e *env) withClient(cmd *cobra.Command, timeout time.Duration, fn func(ctx context.Context, client *statedb.Client) error) error {
	ctx := cmd.Context()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	client, err := statedb.NewClient(e.clientConfig())
	if err != nil {
		return err
	}
	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
		_ = client.Wait()
	}()

	return fn(ctx, client)
}
