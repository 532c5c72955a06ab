// Package allproviders registers every built-in embedding provider.
// Import for side effects wherever resolved handles are turned into clients.
package allproviders

import (
	_ "github.com/mnemo-org/mnemo/internal/embedder/providers/local"
	_ "github.com/mnemo-org/mnemo/internal/embedder/providers/openai"
)
