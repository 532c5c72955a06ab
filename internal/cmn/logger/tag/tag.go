// Package tag provides standardized tag functions for structured logging.
//
// All tag keys use kebab-case naming convention for consistency.
// Use these functions instead of raw strings to ensure consistent
// and type-safe log output across the codebase.
package tag

import (
	"log/slog"
	"time"
)

// Core identification tags

func String(key, value string) slog.Attr {
	return slog.String(key, value)
}

// Error creates a tag for error objects.
func Error(err any) slog.Attr {
	return slog.Any("err", err)
}

// Provider creates a tag for provider names (llm, embedder, store).
func Provider(name string) slog.Attr {
	return slog.String("provider", name)
}

// Model creates a tag for model identifiers.
func Model(name string) slog.Attr {
	return slog.String("model", name)
}

// MemoryID creates a tag for memory record IDs.
func MemoryID(id string) slog.Attr {
	return slog.String("memory-id", id)
}

// UserID creates a tag for user scope identifiers.
func UserID(id string) slog.Attr {
	return slog.String("user-id", id)
}

// AgentID creates a tag for agent scope identifiers.
func AgentID(id string) slog.Attr {
	return slog.String("agent-id", id)
}

// RunID creates a tag for run scope identifiers.
func RunID(id string) slog.Attr {
	return slog.String("run-id", id)
}

// RequestID creates a tag for request IDs (for API/external calls).
func RequestID(id string) slog.Attr {
	return slog.String("request-id", id)
}

// Event creates a tag for memory mutation events (ADD, UPDATE, DELETE).
func Event(ev string) slog.Attr {
	return slog.String("event", ev)
}

// Collection creates a tag for vector collection names.
func Collection(name string) slog.Attr {
	return slog.String("collection", name)
}

// Path and file tags

// File creates a tag for file paths.
func File(path string) slog.Attr {
	return slog.String("file", path)
}

// Dir creates a tag for directory paths.
func Dir(path string) slog.Attr {
	return slog.String("dir", path)
}

// Path creates a tag for generic paths (prefer File or Dir when specific).
func Path(path string) slog.Attr {
	return slog.String("path", path)
}

// Network tags

// Addr creates a tag for network addresses (host:port).
func Addr(addr string) slog.Attr {
	return slog.String("addr", addr)
}

// Port creates a tag for port numbers.
func Port(port int) slog.Attr {
	return slog.Int("port", port)
}

// URL creates a tag for request URLs.
func URL(u string) slog.Attr {
	return slog.String("url", u)
}

// Execution context tags

// Status creates a tag for HTTP or operation status values.
func Status(status int) slog.Attr {
	return slog.Int("status", status)
}

// Count creates a tag for result counts.
func Count(n int) slog.Attr {
	return slog.Int("count", n)
}

// Duration creates a tag for elapsed time values.
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Timeout creates a tag for timeout duration values.
func Timeout(d time.Duration) slog.Attr {
	return slog.Duration("timeout", d)
}

// Attempt creates a tag for retry attempt numbers.
func Attempt(n int) slog.Attr {
	return slog.Int("attempt", n)
}

// Version creates a tag for version strings.
func Version(v string) slog.Attr {
	return slog.String("version", v)
}
