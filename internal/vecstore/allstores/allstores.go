// Package allstores registers every built-in vector store provider.
// Import it for its side effects wherever the full registry is needed.
package allstores

import (
	_ "github.com/mnemo-org/mnemo/internal/vecstore/providers/memvec"
	_ "github.com/mnemo-org/mnemo/internal/vecstore/providers/pgvector"
	_ "github.com/mnemo-org/mnemo/internal/vecstore/providers/qdrant"
	_ "github.com/mnemo-org/mnemo/internal/vecstore/providers/redis"
	_ "github.com/mnemo-org/mnemo/internal/vecstore/providers/sqlitevec"
)
