package logger

import (
	"github.com/pior/statedb/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func Module() fx.Option {
	return fx.Provide(
		func(cfg *config.Config) (*zap.Logger, error) {
			return New(cfg.LogLevel)
		},
	)
}
