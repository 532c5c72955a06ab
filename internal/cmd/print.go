package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/itchyny/gojq"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/mnemo-org/mnemo/internal/history"
	"github.com/mnemo-org/mnemo/internal/memory"
)

// jsonRequested reports whether the command should emit JSON.
func jsonRequested(cmd *cobra.Command) bool {
	asJSON, _ := cmd.Flags().GetBool("json")
	expr, _ := cmd.Flags().GetString("jq")
	return asJSON || expr != ""
}

// printJSON writes v as indented JSON, optionally filtered through a
// jq expression from the --jq flag.
func printJSON(cmd *cobra.Command, v any) error {
	expr, _ := cmd.Flags().GetString("jq")
	if expr == "" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	query, err := gojq.Parse(expr)
	if err != nil {
		return fmt.Errorf("invalid jq expression: %w", err)
	}

	// gojq operates on generic values; round-trip through JSON.
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var input any
	if err := json.Unmarshal(data, &input); err != nil {
		return err
	}

	iter := query.Run(input)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	for {
		out, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := out.(error); ok {
			return fmt.Errorf("jq evaluation failed: %w", err)
		}
		if err := enc.Encode(out); err != nil {
			return err
		}
	}
	return nil
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	return t
}

// printItems renders memories as a table.
func printItems(items []memory.Item, withScore bool) {
	t := newTable()
	header := table.Row{"ID", "MEMORY", "CREATED"}
	if withScore {
		header = table.Row{"ID", "MEMORY", "SCORE", "CREATED"}
	}
	t.AppendHeader(header)
	for _, item := range items {
		mem := truncate(item.Memory, 72)
		created := item.CreatedAt.Format("2006-01-02 15:04")
		if withScore {
			t.AppendRow(table.Row{item.ID, mem, fmt.Sprintf("%.3f", item.Score), created})
		} else {
			t.AppendRow(table.Row{item.ID, mem, created})
		}
	}
	t.Render()
}

// printEvents renders the mutations an Add call performed.
func printEvents(events []memory.Event) {
	if len(events) == 0 {
		fmt.Println("No memory changes.")
		return
	}
	for _, ev := range events {
		fmt.Printf("%s %s  %s\n", eventLabel(ev.Event), ev.ID, truncate(ev.Memory, 72))
	}
}

// printHistory renders the audit trail of a memory.
func printHistory(entries []history.Entry) {
	t := newTable()
	t.AppendHeader(table.Row{"EVENT", "OLD", "NEW", "AT"})
	for _, e := range entries {
		t.AppendRow(table.Row{
			string(e.Event),
			truncate(e.OldMemory, 40),
			truncate(e.NewMemory, 40),
			e.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	t.Render()
}

func eventLabel(ev history.Event) string {
	switch ev {
	case history.EventAdd:
		return color.GreenString("ADD   ")
	case history.EventUpdate:
		return color.YellowString("UPDATE")
	case history.EventDelete:
		return color.RedString("DELETE")
	default:
		return string(ev)
	}
}

func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
