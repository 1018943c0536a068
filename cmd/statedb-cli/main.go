package main

import (
	"fmt"
	"os"

	"github.com/pior/statedb/internal/cli"
	"github.com/pior/statedb/internal/config"
	"github.com/pior/statedb/internal/logger"
	"go.uber.org/fx"
)

func main() {
	var cliInstance *cli.CLI

	app := fx.New(
		fx.NopLogger, // Disable fx logs
		config.Module(),
		logger.Module(),
		cli.Module,
		fx.Populate(&cliInstance),
	)

	if err := app.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// cobra prints the error itself
	if err := cliInstance.Run(); err != nil {
		os.Exit(1)
	}
}
