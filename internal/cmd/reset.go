package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mnemo-org/mnemo/internal/memory"
)

// Reset wipes all memories, history and graph data.
func Reset() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "reset",
			Short: "Delete all stored memories and history",
			Long: `Delete every memory, its history, and any graph relations.

This cannot be undone. The command prompts for confirmation unless
--yes is given or stdin is not a terminal.`,
		},
		[]commandLineFlag{yesFlag},
		runReset,
	)
}

func runReset(ctx *Context, _ []string) error {
	if yes, _ := ctx.Command.Flags().GetBool("yes"); !yes {
		ok, err := confirm("This deletes ALL memories. Continue?")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Aborted.")
			return nil
		}
	}

	m, err := ctx.OpenMemory()
	if err != nil {
		return err
	}
	if err := m.Reset(ctx); err != nil {
		return err
	}
	fmt.Println("All memories deleted.")
	return nil
}

// confirm prompts on stdin for a yes/no answer. A non-interactive
// stdin counts as a refusal so scripts must pass --yes explicitly.
func confirm(prompt string) (bool, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false, fmt.Errorf("stdin is not a terminal, pass --yes to confirm")
	}
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

func describeScope(scope memory.Scope) string {
	var parts []string
	if scope.UserID != "" {
		parts = append(parts, "user "+scope.UserID)
	}
	if scope.AgentID != "" {
		parts = append(parts, "agent "+scope.AgentID)
	}
	if scope.RunID != "" {
		parts = append(parts, "run "+scope.RunID)
	}
	return strings.Join(parts, ", ")
}
