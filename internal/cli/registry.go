package cli

import (
	"github.com/spf13/cobra"
)

// commandRegistry holds all available commands
type commandRegistry struct {
	env *env
}

func newCommandRegistry(e *env) *commandRegistry {
	return &commandRegistry{env: e}
}

// allCommands returns all available commands
func (r *commandRegistry) allCommands() []*cobra.Command {
	return []*cobra.Command{
		newGetCommand(r.env),
		newSetCommand(r.env),
		newDeleteCommand(r.env),
		newPingCommand(r.env),
		newDumpCommand(r.env),
		newWatchCommand(r.env),
	}
}

// registerCommands adds all commands to the root command
func (r *commandRegistry) registerCommands(rootCmd *cobra.Command) {
	for _, cmd := range r.allCommands() {
		rootCmd.AddCommand(cmd)
	}
}
