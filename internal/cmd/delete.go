package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Delete removes a memory by ID, or every memory in a scope with --all.
func Delete() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "delete [id]",
			Short: "Delete a memory, or all memories in a scope",
			Args:  cobra.MaximumNArgs(1),
			Example: `  mnemo delete 9f2c1a
  mnemo delete --all --user alice`,
		},
		append([]commandLineFlag{allFlag, yesFlag}, scopeFlags...),
		runDelete,
	)
}

var allFlag = commandLineFlag{
	name:  "all",
	kind:  flagBool,
	usage: "delete every memory in the given scope",
}

func runDelete(ctx *Context, args []string) error {
	all, _ := ctx.Command.Flags().GetBool("all")

	m, err := ctx.OpenMemory()
	if err != nil {
		return err
	}

	if !all {
		if len(args) != 1 {
			return fmt.Errorf("pass a memory ID, or --all with a scope")
		}
		event, err := m.Delete(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %s: %s\n", event.ID, truncate(event.Memory, 72))
		return nil
	}

	scope := scopeFromFlags(ctx.Command)
	if scope.IsZero() {
		return fmt.Errorf("--all requires at least one of --user, --agent or --run")
	}
	if yes, _ := ctx.Command.Flags().GetBool("yes"); !yes {
		ok, err := confirm(fmt.Sprintf("Delete all memories for %s?", describeScope(scope)))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Aborted.")
			return nil
		}
	}

	deleted, err := m.DeleteAll(ctx, scope)
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %d memories\n", deleted)
	return nil
}
