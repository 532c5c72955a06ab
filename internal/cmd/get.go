package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mnemo-org/mnemo/internal/memory"
)

// Get prints a single memory by ID.
func Get() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "get <id>",
			Short: "Show a memory by ID",
			Args:  cobra.ExactArgs(1),
		},
		outputFlags,
		runGet,
	)
}

func runGet(ctx *Context, args []string) error {
	m, err := ctx.OpenMemory()
	if err != nil {
		return err
	}

	item, err := m.Get(ctx, args[0])
	if err != nil {
		return err
	}

	if jsonRequested(ctx.Command) {
		return printJSON(ctx.Command, item)
	}
	printItems([]memory.Item{*item}, false)
	if len(item.Metadata) > 0 {
		fmt.Println("Metadata:")
		for k, v := range item.Metadata {
			fmt.Printf("  %s: %v\n", k, v)
		}
	}
	return nil
}
