package memory

import (
	"time"

	"github.com/mnemo-org/mnemo/internal/graph"
	"github.com/mnemo-org/mnemo/internal/history"
	"github.com/mnemo-org/mnemo/internal/vecstore"
)

// Scope identifies whose memories an operation touches. At least one
// field must be set for Add, Search, GetAll and DeleteAll.
type Scope struct {
	UserID  string `json:"user_id,omitempty"`
	AgentID string `json:"agent_id,omitempty"`
	RunID   string `json:"run_id,omitempty"`
}

// IsZero reports whether no scope field is set.
func (s Scope) IsZero() bool {
	return s.UserID == "" && s.AgentID == "" && s.RunID == ""
}

func (s Scope) vectorFilters() vecstore.Filters {
	return vecstore.Filters{UserID: s.UserID, AgentID: s.AgentID, RunID: s.RunID}
}

func (s Scope) graphFilters() graph.Filters {
	return graph.Filters{UserID: s.UserID, AgentID: s.AgentID, RunID: s.RunID}
}

// selfReference is the name the extraction prompts substitute for
// first-person pronouns.
func (s Scope) selfReference() string {
	switch {
	case s.UserID != "":
		return s.UserID
	case s.AgentID != "":
		return s.AgentID
	default:
		return "USER"
	}
}

// Item is a stored memory as surfaced by the API.
type Item struct {
	ID        string         `json:"id"`
	Memory    string         `json:"memory"`
	Hash      string         `json:"hash,omitempty"`
	Score     float32        `json:"score,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt *time.Time     `json:"updated_at,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
	AgentID   string         `json:"agent_id,omitempty"`
	RunID     string         `json:"run_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// AddOptions control how Add ingests messages.
type AddOptions struct {
	Scope
	// Metadata is stamped onto every memory the call creates.
	Metadata map[string]any
	// Infer runs the fact-extraction and reconciliation pipeline. Nil
	// means true; false stores each message verbatim.
	Infer *bool
}

func (o AddOptions) inferEnabled() bool {
	return o.Infer == nil || *o.Infer
}

// Event is one memory mutation performed by an Add call.
type Event struct {
	ID             string        `json:"id"`
	Memory         string        `json:"memory"`
	Event          history.Event `json:"event"`
	PreviousMemory string        `json:"previous_memory,omitempty"`
}

// AddResult reports what an Add call changed.
type AddResult struct {
	Results []Event `json:"results"`
	// Relations are the graph relations added, when graph memory is on.
	Relations []graph.Triple `json:"relations,omitempty"`
}

// SearchOptions control Search.
type SearchOptions struct {
	Scope
	// Limit caps the number of results. Defaults to 10.
	Limit int
}

// SearchResult is the outcome of a Search call.
type SearchResult struct {
	Results []Item `json:"results"`
	// Relations are graph triples related to the query, when graph
	// memory is on.
	Relations []graph.Triple `json:"relations,omitempty"`
}

// existingMemory is the surrogate-ID view of retrieved memories handed to
// the update prompt. Integer surrogates keep the model from mangling
// UUIDs; answers are mapped back before anything is applied.
type existingMemory struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type factsResponse struct {
	Facts []string `json:"facts"`
}

type updateDecision struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Event     string `json:"event"`
	OldMemory string `json:"old_memory,omitempty"`
}

type updateResponse struct {
	Memory []updateDecision `json:"memory"`
}
