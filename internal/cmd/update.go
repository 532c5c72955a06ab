package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/mnemo-org/mnemo/internal/memory"
)

// Update replaces the text of an existing memory.
func Update() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:     "update <id> <text...>",
			Short:   "Replace the text of a memory",
			Args:    cobra.MinimumNArgs(2),
			Example: `  mnemo update 9f2c1a "Prefers oat milk in coffee"`,
		},
		outputFlags,
		runUpdate,
	)
}

func runUpdate(ctx *Context, args []string) error {
	m, err := ctx.OpenMemory()
	if err != nil {
		return err
	}

	event, err := m.Update(ctx, args[0], strings.Join(args[1:], " "))
	if err != nil {
		return err
	}

	if jsonRequested(ctx.Command) {
		return printJSON(ctx.Command, event)
	}
	printEvents([]memory.Event{*event})
	return nil
}
