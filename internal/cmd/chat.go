package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// Chat sends a one-shot message through the memory-augmented proxy.
func Chat() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "chat <message...>",
			Short: "Chat with the configured model using stored memories",
			Long: `Send a message to the configured chat model. Relevant memories for
the scope are retrieved and injected as context, and the exchange is
recorded back into memory.`,
			Args:    cobra.MinimumNArgs(1),
			Example: `  mnemo chat --user alice "what tea should I buy?"`,
		},
		append([]commandLineFlag{noStreamFlag}, scopeFlags...),
		runChat,
	)
}

var noStreamFlag = commandLineFlag{
	name:  "no-stream",
	kind:  flagBool,
	usage: "wait for the full response instead of streaming",
}

func runChat(ctx *Context, args []string) error {
	scope := scopeFromFlags(ctx.Command)
	if scope.IsZero() {
		return fmt.Errorf("at least one of --user, --agent or --run is required")
	}

	p, err := ctx.NewProxy()
	if err != nil {
		return err
	}
	// Recording back into memory happens asynchronously; wait for it
	// before the process exits.
	defer p.Wait()
	messages := userMessages([]string{strings.Join(args, " ")})

	if noStream, _ := ctx.Command.Flags().GetBool("no-stream"); noStream {
		resp, err := p.Chat(ctx, messages, scope)
		if err != nil {
			return err
		}
		fmt.Println(resp.Content)
		return nil
	}

	events, err := p.ChatStream(ctx, messages, scope)
	if err != nil {
		return err
	}
	for ev := range events {
		if ev.Error != nil {
			fmt.Println()
			return ev.Error
		}
		fmt.Print(ev.Delta)
		if ev.Done {
			break
		}
	}
	fmt.Println()
	return nil
}
