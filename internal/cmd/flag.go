package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mnemo-org/mnemo/internal/llm"
	"github.com/mnemo-org/mnemo/internal/memory"
)

type flagKind int

const (
	flagString flagKind = iota
	flagBool
	flagInt
)

type commandLineFlag struct {
	name, shorthand, defaultValue, usage string
	kind                                 flagKind
	required                             bool
	bindViper                            bool
}

var (
	userFlag = commandLineFlag{
		name:  "user",
		usage: "user ID scoping the operation",
	}
	agentFlag = commandLineFlag{
		name:  "agent",
		usage: "agent ID scoping the operation",
	}
	runFlag = commandLineFlag{
		name:  "run",
		usage: "run ID scoping the operation",
	}
	limitFlag = commandLineFlag{
		name:         "limit",
		shorthand:    "n",
		kind:         flagInt,
		defaultValue: "0",
		usage:        "maximum number of results (0 means the default)",
	}
	jsonFlag = commandLineFlag{
		name:  "json",
		kind:  flagBool,
		usage: "print the result as JSON",
	}
	jqFlag = commandLineFlag{
		name:  "jq",
		usage: "apply a jq expression to the JSON output (implies --json)",
	}
	noInferFlag = commandLineFlag{
		name:  "no-infer",
		kind:  flagBool,
		usage: "store messages verbatim without fact extraction",
	}
	metadataFlag = commandLineFlag{
		name:  "metadata",
		usage: "metadata to stamp on created memories, as key=value (repeatable)",
	}
	yesFlag = commandLineFlag{
		name:      "yes",
		shorthand: "y",
		kind:      flagBool,
		usage:     "skip the confirmation prompt",
	}
)

var scopeFlags = []commandLineFlag{userFlag, agentFlag, runFlag}

var outputFlags = []commandLineFlag{jsonFlag, jqFlag}

func initFlags(cmd *cobra.Command, flags []commandLineFlag) {
	for _, flag := range flags {
		switch flag.kind {
		case flagBool:
			cmd.Flags().BoolP(flag.name, flag.shorthand, flag.defaultValue == "true", flag.usage)
		case flagInt:
			cmd.Flags().IntP(flag.name, flag.shorthand, 0, flag.usage)
		default:
			if flag.name == "metadata" {
				cmd.Flags().StringArrayP(flag.name, flag.shorthand, nil, flag.usage)
			} else {
				cmd.Flags().StringP(flag.name, flag.shorthand, flag.defaultValue, flag.usage)
			}
		}
		if flag.required {
			if err := cmd.MarkFlagRequired(flag.name); err != nil {
				fmt.Printf("failed to mark flag %s as required: %v\n", flag.name, err)
			}
		}
	}
}

func bindFlags(cmd *cobra.Command, flags []commandLineFlag) error {
	for _, flag := range flags {
		if !flag.bindViper {
			continue
		}
		if err := viper.BindPFlag(flag.name, cmd.Flags().Lookup(flag.name)); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", flag.name, err)
		}
	}
	return nil
}

// scopeFromFlags reads the --user/--agent/--run flags into a Scope.
func scopeFromFlags(cmd *cobra.Command) memory.Scope {
	user, _ := cmd.Flags().GetString("user")
	agent, _ := cmd.Flags().GetString("agent")
	run, _ := cmd.Flags().GetString("run")
	return memory.Scope{UserID: user, AgentID: agent, RunID: run}
}

// userMessages wraps raw text arguments as user messages.
func userMessages(texts []string) []llm.Message {
	msgs := make([]llm.Message, 0, len(texts))
	for _, t := range texts {
		msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: t})
	}
	return msgs
}
