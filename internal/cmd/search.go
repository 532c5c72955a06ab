package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mnemo-org/mnemo/internal/memory"
)

// Search finds memories semantically related to a query.
func Search() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "search <query>",
			Short: "Search memories by semantic similarity",
			Args:  cobra.MinimumNArgs(1),
			Example: `  mnemo search --user alice "what does she drink"
  mnemo search --user alice --limit 3 --json "coffee"`,
		},
		append(append([]commandLineFlag{limitFlag}, scopeFlags...), outputFlags...),
		runSearch,
	)
}

func runSearch(ctx *Context, args []string) error {
	scope := scopeFromFlags(ctx.Command)
	if scope.IsZero() {
		return fmt.Errorf("at least one of --user, --agent or --run is required")
	}
	limit, _ := ctx.Command.Flags().GetInt("limit")

	m, err := ctx.OpenMemory()
	if err != nil {
		return err
	}

	result, err := m.Search(ctx, strings.Join(args, " "), memory.SearchOptions{Scope: scope, Limit: limit})
	if err != nil {
		return err
	}

	if jsonRequested(ctx.Command) {
		return printJSON(ctx.Command, result)
	}
	if len(result.Results) == 0 {
		fmt.Println("No memories found.")
		return nil
	}
	printItems(result.Results, true)
	return nil
}
