package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mnemo-org/mnemo/internal/memory"
)

// Add stores new memories from the given text or stdin.
func Add() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "add [text...]",
			Short: "Store memories from text",
			Long: `Store one or more memories, scoped to a user, agent or run.

By default the text is run through fact extraction and reconciled against
existing memories; pass --no-infer to store it verbatim.

Example:
  mnemo add --user alice "I prefer green tea over coffee"
  cat conversation.txt | mnemo add --user alice
`,
		},
		append([]commandLineFlag{noInferFlag, metadataFlag}, append(scopeFlags, outputFlags...)...),
		runAdd,
	)
}

func runAdd(ctx *Context, args []string) error {
	scope := scopeFromFlags(ctx.Command)
	if scope.IsZero() {
		return fmt.Errorf("at least one of --user, --agent or --run is required")
	}

	texts := args
	if len(texts) == 0 {
		stdin, err := readStdinLines()
		if err != nil {
			return err
		}
		texts = stdin
	}
	if len(texts) == 0 {
		return fmt.Errorf("no text given: pass it as arguments or on stdin")
	}

	metadata, err := parseMetadataFlags(ctx.Command)
	if err != nil {
		return err
	}

	opts := memory.AddOptions{Scope: scope, Metadata: metadata}
	if noInfer, _ := ctx.Command.Flags().GetBool("no-infer"); noInfer {
		infer := false
		opts.Infer = &infer
	}

	m, err := ctx.OpenMemory()
	if err != nil {
		return err
	}

	result, err := m.Add(ctx, userMessages(texts), opts)
	if err != nil {
		return err
	}

	if jsonRequested(ctx.Command) {
		return printJSON(ctx.Command, result)
	}
	printEvents(result.Results)
	return nil
}

func readStdinLines() ([]string, error) {
	info, err := os.Stdin.Stat()
	if err != nil || info.Mode()&os.ModeCharDevice != 0 {
		return nil, nil
	}
	var lines []string
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

func parseMetadataFlags(cmd *cobra.Command) (map[string]any, error) {
	pairs, _ := cmd.Flags().GetStringArray("metadata")
	if len(pairs) == 0 {
		return nil, nil
	}
	metadata := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid metadata %q, expected key=value", pair)
		}
		metadata[key] = value
	}
	return metadata, nil
}
