package cmd

import (
	"fmt"
	"net/url"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/mnemo-org/mnemo/internal/cmn/config"
	"github.com/mnemo-org/mnemo/internal/embedder"
	"github.com/mnemo-org/mnemo/internal/graph"
	"github.com/mnemo-org/mnemo/internal/llm"
	"github.com/mnemo-org/mnemo/internal/vecstore"
)

// Check resolves every configured provider section without building
// clients, so misconfiguration surfaces before anything talks to a
// backend.
func Check() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "check",
			Short: "Validate the provider configuration",
			Long: `Resolve the llm, embedder, vector store and graph store sections of
the configuration and print what each resolves to. No clients are
constructed and no network calls are made. Inline credentials are
masked in the output.`,
		},
		outputFlags,
		runCheck,
	)
}

// sectionReport is the printable outcome of resolving one section.
type sectionReport struct {
	Provider string         `json:"provider" yaml:"provider"`
	Params   map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
	Error    string         `json:"error,omitempty" yaml:"error,omitempty"`
}

type checkReport struct {
	ConfigFile  string         `json:"configFile,omitempty" yaml:"configFile,omitempty"`
	LLM         sectionReport  `json:"llm" yaml:"llm"`
	Embedder    sectionReport  `json:"embedder" yaml:"embedder"`
	VectorStore sectionReport  `json:"vectorStore" yaml:"vectorStore"`
	GraphStore  *sectionReport `json:"graphStore,omitempty" yaml:"graphStore,omitempty"`
}

func runCheck(ctx *Context, _ []string) error {
	mem := ctx.Config.Memory

	report := checkReport{
		ConfigFile:  ctx.Config.Paths.ConfigFileUsed,
		LLM:         checkLLM(mem.LLM),
		Embedder:    checkEmbedder(mem.Embedder),
		VectorStore: checkVecStore(mem.VectorStore),
	}
	if mem.GraphStore != nil {
		r := checkGraph(*mem.GraphStore)
		report.GraphStore = &r
	}

	if jsonRequested(ctx.Command) {
		if err := printJSON(ctx.Command, report); err != nil {
			return err
		}
	} else {
		out, err := yaml.Marshal(report)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
	}

	var failed []string
	for _, s := range []struct {
		name   string
		report *sectionReport
	}{
		{"llm", &report.LLM},
		{"embedder", &report.Embedder},
		{"vector_store", &report.VectorStore},
		{"graph_store", report.GraphStore},
	} {
		if s.report != nil && s.report.Error != "" {
			failed = append(failed, s.name)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("configuration invalid: %v", failed)
	}
	if !ctx.Quiet {
		fmt.Fprintln(os.Stderr, "Configuration OK.")
	}
	return nil
}

func checkLLM(sec config.ProviderSection) sectionReport {
	resolved, err := llm.Resolve(sec)
	if err != nil {
		return sectionReport{Provider: sec.Provider, Error: err.Error()}
	}
	p := resolved.Params
	params := map[string]any{"model": p.Model}
	if p.Temperature != nil {
		params["temperature"] = *p.Temperature
	}
	if p.TopP != nil {
		params["top_p"] = *p.TopP
	}
	if p.MaxTokens != nil {
		params["max_tokens"] = *p.MaxTokens
	}
	if len(p.Stop) > 0 {
		params["stop"] = p.Stop
	}
	if p.BaseURL != "" {
		params["base_url"] = p.BaseURL
	}
	if p.Timeout > 0 {
		params["timeout"] = p.Timeout.String()
	}
	if p.MaxRetries != nil {
		params["max_retries"] = *p.MaxRetries
	}
	addCredential(params, p.APIKey, p.APIKeyRef)
	return sectionReport{Provider: string(resolved.Provider), Params: params}
}

func checkEmbedder(sec config.ProviderSection) sectionReport {
	resolved, err := embedder.Resolve(sec)
	if err != nil {
		return sectionReport{Provider: sec.Provider, Error: err.Error()}
	}
	p := resolved.Params
	params := map[string]any{"model": p.Model}
	if p.Dimensions != nil {
		params["dimensions"] = *p.Dimensions
	}
	if p.BatchSize != nil {
		params["batch_size"] = *p.BatchSize
	}
	if p.BaseURL != "" {
		params["base_url"] = p.BaseURL
	}
	if p.Timeout != nil {
		params["timeout"] = p.Timeout.String()
	}
	addCredential(params, p.APIKey, p.APIKeyRef)
	return sectionReport{Provider: string(resolved.Provider), Params: params}
}

func checkVecStore(sec config.ProviderSection) sectionReport {
	resolved, err := vecstore.Resolve(sec)
	if err != nil {
		return sectionReport{Provider: sec.Provider, Error: err.Error()}
	}
	p := resolved.Params
	params := map[string]any{}
	if p.CollectionName != "" {
		params["collection_name"] = p.CollectionName
	}
	if p.Dimensions != nil {
		params["dimensions"] = *p.Dimensions
	}
	if p.Path != "" {
		params["path"] = p.Path
	}
	if p.URL != "" {
		params["url"] = maskURL(p.URL)
	}
	if p.DSN != "" {
		params["dsn"] = maskURL(p.DSN)
	}
	if p.Timeout > 0 {
		params["timeout"] = p.Timeout.String()
	}
	addCredential(params, p.APIKey, p.APIKeyRef)
	return sectionReport{Provider: string(resolved.Provider), Params: params}
}

func checkGraph(sec config.ProviderSection) sectionReport {
	resolved, err := graph.Resolve(sec)
	if err != nil {
		return sectionReport{Provider: sec.Provider, Error: err.Error()}
	}
	p := resolved.Params
	params := map[string]any{
		"uri":      p.URI,
		"username": p.Username,
	}
	if p.Database != "" {
		params["database"] = p.Database
	}
	if p.Threshold != nil {
		params["threshold"] = *p.Threshold
	}
	if p.Timeout > 0 {
		params["timeout"] = p.Timeout.String()
	}
	if p.Password != "" {
		params["password"] = masked
	}
	if p.PasswordRef != "" {
		params["password_ref"] = p.PasswordRef
	}
	return sectionReport{Provider: string(resolved.Provider), Params: params}
}

const masked = "********"

// addCredential records where a credential comes from without leaking
// its value. References are safe to show verbatim.
func addCredential(params map[string]any, inline, ref string) {
	if inline != "" {
		params["api_key"] = masked
	}
	if ref != "" {
		params["api_key_ref"] = ref
	}
}

// maskURL hides the password component of a connection string.
func maskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, has := u.User.Password(); has {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
