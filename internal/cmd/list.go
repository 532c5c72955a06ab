package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// List prints all memories within a scope.
func List() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:     "list",
			Short:   "List memories in a scope",
			Example: `  mnemo list --user alice --limit 20`,
		},
		append(append([]commandLineFlag{limitFlag}, scopeFlags...), outputFlags...),
		runList,
	)
}

func runList(ctx *Context, _ []string) error {
	scope := scopeFromFlags(ctx.Command)
	if scope.IsZero() {
		return fmt.Errorf("at least one of --user, --agent or --run is required")
	}
	limit, _ := ctx.Command.Flags().GetInt("limit")

	m, err := ctx.OpenMemory()
	if err != nil {
		return err
	}

	items, err := m.GetAll(ctx, scope, limit)
	if err != nil {
		return err
	}

	if jsonRequested(ctx.Command) {
		return printJSON(ctx.Command, items)
	}
	if len(items) == 0 {
		fmt.Println("No memories found.")
		return nil
	}
	printItems(items, false)
	return nil
}
