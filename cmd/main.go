package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mnemo-org/mnemo/internal/build"
	"github.com/mnemo-org/mnemo/internal/cmd"

	// Register providers and stores.
	_ "github.com/mnemo-org/mnemo/internal/embedder/allproviders"
	_ "github.com/mnemo-org/mnemo/internal/graph/providers/neo4j"
	_ "github.com/mnemo-org/mnemo/internal/llm/allproviders"
	_ "github.com/mnemo-org/mnemo/internal/vecstore/allstores"
)

var rootCmd = &cobra.Command{
	Use:   build.Slug,
	Short: "Mnemo is a memory layer for LLM applications",
	Long: `Mnemo is a memory layer for LLM applications.

It extracts durable facts from conversations, stores them with vector
and graph indexes, and retrieves them to ground later exchanges. The
same pipeline is available as a CLI and as an HTTP API.
`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "path to the configuration file")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "suppress log output")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text, json)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))

	rootCmd.AddCommand(cmd.Add())
	rootCmd.AddCommand(cmd.Search())
	rootCmd.AddCommand(cmd.List())
	rootCmd.AddCommand(cmd.Get())
	rootCmd.AddCommand(cmd.Update())
	rootCmd.AddCommand(cmd.Delete())
	rootCmd.AddCommand(cmd.History())
	rootCmd.AddCommand(cmd.Reset())
	rootCmd.AddCommand(cmd.Chat())
	rootCmd.AddCommand(cmd.Check())
	rootCmd.AddCommand(cmd.Serve())
	rootCmd.AddCommand(cmd.Version())
	rootCmd.AddCommand(cmd.Upgrade())

	build.Version = version
}

var version = "dev"
