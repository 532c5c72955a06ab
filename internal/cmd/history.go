package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// History prints the change log of a memory.
func History() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "history <id>",
			Short: "Show the change history of a memory",
			Args:  cobra.ExactArgs(1),
		},
		outputFlags,
		runHistory,
	)
}

func runHistory(ctx *Context, args []string) error {
	m, err := ctx.OpenMemory()
	if err != nil {
		return err
	}

	entries, err := m.History(ctx, args[0])
	if err != nil {
		return err
	}

	if jsonRequested(ctx.Command) {
		return printJSON(ctx.Command, entries)
	}
	if len(entries) == 0 {
		fmt.Println("No history found.")
		return nil
	}
	printHistory(entries)
	return nil
}
