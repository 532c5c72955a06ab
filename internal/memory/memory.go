// Package memory is the facade over the resolver cores: it turns a root
// configuration into a working memory pipeline (chat provider, embedder,
// vector store, optional graph store, history log) and exposes the
// add/search/get/update/delete operations on top of them.
package memory

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/mnemo-org/mnemo/internal/cmn/config"
	"github.com/mnemo-org/mnemo/internal/cmn/logger"
	"github.com/mnemo-org/mnemo/internal/cmn/logger/tag"
	"github.com/mnemo-org/mnemo/internal/cmn/secrets"
	"github.com/mnemo-org/mnemo/internal/cmn/stringutil"
	"github.com/mnemo-org/mnemo/internal/embedder"
	_ "github.com/mnemo-org/mnemo/internal/embedder/allproviders" // register embedder providers
	"github.com/mnemo-org/mnemo/internal/graph"
	_ "github.com/mnemo-org/mnemo/internal/graph/providers/neo4j" // register graph providers
	"github.com/mnemo-org/mnemo/internal/history"
	"github.com/mnemo-org/mnemo/internal/llm"
	_ "github.com/mnemo-org/mnemo/internal/llm/allproviders" // register chat providers
	"github.com/mnemo-org/mnemo/internal/vecstore"
	_ "github.com/mnemo-org/mnemo/internal/vecstore/allstores" // register vector stores
)

// ErrNotFound is returned when a memory ID does not exist.
var ErrNotFound = vecstore.ErrNotFound

// reserved payload keys; everything else round-trips as metadata.
var reservedPayloadKeys = map[string]struct{}{
	"data": {}, "hash": {}, "created_at": {}, "updated_at": {},
	"user_id": {}, "agent_id": {}, "run_id": {},
}

const defaultSearchLimit = 10

// Memory is the memory pipeline. Construct with New; safe for concurrent
// use.
type Memory struct {
	chat      llm.Provider
	llmHandle *llm.Resolved
	embedder  embedder.Provider
	store     vecstore.Store
	graph     graph.Store
	extractor *graph.Extractor
	history   *history.Store

	factPrompt   string
	updatePrompt string
	tracer       trace.Tracer
}

// Option overrides a pipeline component, primarily for tests.
type Option func(*Memory)

// WithChatProvider replaces the chat provider.
func WithChatProvider(p llm.Provider) Option {
	return func(m *Memory) { m.chat = p }
}

// WithEmbedder replaces the embedding provider.
func WithEmbedder(p embedder.Provider) Option {
	return func(m *Memory) { m.embedder = p }
}

// WithVectorStore replaces the vector store.
func WithVectorStore(s vecstore.Store) Option {
	return func(m *Memory) { m.store = s }
}

// WithGraphStore replaces (or enables) the graph store.
func WithGraphStore(s graph.Store) Option {
	return func(m *Memory) { m.graph = s }
}

// WithHistoryStore replaces the history log.
func WithHistoryStore(s *history.Store) Option {
	return func(m *Memory) { m.history = s }
}

// New resolves every provider section in cfg and opens the pipeline.
// Section validation errors surface before any connection is made.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Memory, error) {
	m := &Memory{
		factPrompt:   cfg.Memory.FactExtractionPrompt,
		updatePrompt: cfg.Memory.UpdateMemoryPrompt,
		tracer:       otel.Tracer("github.com/mnemo-org/mnemo/internal/memory"),
	}

	llmHandle, err := llm.Resolve(cfg.Memory.LLM)
	if err != nil {
		return nil, err
	}
	embHandle, err := embedder.Resolve(cfg.Memory.Embedder)
	if err != nil {
		return nil, err
	}
	vecHandle, err := vecstore.Resolve(cfg.Memory.VectorStore)
	if err != nil {
		return nil, err
	}
	var graphHandle *graph.Resolved
	if cfg.Memory.GraphStore != nil {
		if graphHandle, err = graph.Resolve(*cfg.Memory.GraphStore); err != nil {
			return nil, err
		}
	}
	m.llmHandle = llmHandle

	// Test overrides skip client construction for the components they
	// replace.
	for _, opt := range opts {
		opt(m)
	}

	store := secrets.NewRegistry(secrets.Options{
		BaseDir:    cfg.Secrets.BaseDir,
		VaultAddr:  cfg.Secrets.VaultAddr,
		VaultToken: cfg.Secrets.VaultToken,
	})

	if m.chat == nil {
		if m.chat, err = llmHandle.NewClient(ctx, store); err != nil {
			return nil, err
		}
	}
	if m.embedder == nil {
		client, err := embHandle.NewClient(ctx, store)
		if err != nil {
			return nil, err
		}
		m.embedder = embedder.NewCache(client, embHandle.Params.Model, 0, 0)
	}
	if m.store == nil {
		m.store, err = vecHandle.NewStore(ctx, store,
			vecstore.WithDataDir(cfg.Paths.VectorDir),
			vecstore.WithDimensions(m.embedder.Dimensions()))
		if err != nil {
			return nil, err
		}
	}
	if m.graph == nil && graphHandle != nil {
		if m.graph, err = graphHandle.NewStore(ctx, store); err != nil {
			return nil, err
		}
	}
	if m.history == nil {
		if m.history, err = history.Open(ctx, cfg.Paths.HistoryDB); err != nil {
			return nil, err
		}
	}
	if m.graph != nil {
		m.extractor = graph.NewExtractor(llmHandle, m.chat)
	}
	return m, nil
}

// LLMHandle returns the resolved chat provider handle.
func (m *Memory) LLMHandle() *llm.Resolved {
	return m.llmHandle
}

// ChatClient returns the chat provider the pipeline runs on.
func (m *Memory) ChatClient() llm.Provider {
	return m.chat
}

// Close releases every backing store.
func (m *Memory) Close(ctx context.Context) error {
	var firstErr error
	if err := m.store.Close(); err != nil {
		firstErr = err
	}
	if m.graph != nil {
		if err := m.graph.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := m.history.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Add ingests conversation messages into the scope's memory. With
// inference on, the messages are distilled into facts which are
// reconciled against existing memories; otherwise each message is stored
// verbatim.
func (m *Memory) Add(ctx context.Context, messages []llm.Message, opts AddOptions) (*AddResult, error) {
	ctx, span := m.tracer.Start(ctx, "memory.Add")
	defer span.End()

	if opts.IsZero() {
		return nil, fmt.Errorf("at least one of user_id, agent_id, run_id is required")
	}
	if len(messages) == 0 {
		return nil, fmt.Errorf("no messages to add")
	}

	var (
		result *AddResult
		err    error
	)
	if opts.inferEnabled() {
		result, err = m.addInferred(ctx, messages, opts)
	} else {
		result, err = m.addVerbatim(ctx, messages, opts)
	}
	if err != nil {
		return nil, err
	}

	if m.graph != nil {
		relations, err := m.mirrorToGraph(ctx, conversationText(messages), opts.Scope)
		if err != nil {
			// Graph memory is best-effort; the vector write already
			// succeeded.
			logger.Warn(ctx, "Graph memory update failed", tag.Error(err))
		} else {
			result.Relations = relations
		}
	}
	return result, nil
}

func (m *Memory) addVerbatim(ctx context.Context, messages []llm.Message, opts AddOptions) (*AddResult, error) {
	texts := make([]string, 0, len(messages))
	for _, msg := range messages {
		texts = append(texts, msg.Content)
	}
	embeddings, err := m.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}

	result := &AddResult{}
	for i, msg := range messages {
		metadata := cloneMetadata(opts.Metadata)
		if msg.Role != "" {
			metadata["role"] = string(msg.Role)
		}
		ev, err := m.createMemory(ctx, msg.Content, embeddings[i], opts.Scope, metadata)
		if err != nil {
			return nil, err
		}
		result.Results = append(result.Results, *ev)
	}
	return result, nil
}

func (m *Memory) addInferred(ctx context.Context, messages []llm.Message, opts AddOptions) (*AddResult, error) {
	facts, err := m.extractFacts(ctx, messages)
	if err != nil {
		return nil, err
	}
	if len(facts) == 0 {
		logger.Debug(ctx, "No facts extracted from messages")
		return &AddResult{Results: []Event{}}, nil
	}

	embeddings, err := m.embedder.Embed(ctx, facts)
	if err != nil {
		return nil, err
	}
	factEmbedding := make(map[string][]float32, len(facts))
	for i, fact := range facts {
		factEmbedding[fact] = embeddings[i]
	}

	// Retrieve the neighborhood of every fact; the update prompt decides
	// against this combined view.
	var retrieved []vecstore.Hit
	for _, emb := range embeddings {
		hits, err := m.store.Search(ctx, emb, 5, opts.vectorFilters())
		if err != nil {
			return nil, err
		}
		retrieved = append(retrieved, hits...)
	}
	retrieved = lo.UniqBy(retrieved, func(h vecstore.Hit) string { return h.ID })

	decisions, err := m.decideUpdates(ctx, retrieved, facts)
	if err != nil {
		return nil, err
	}

	result := &AddResult{}
	for _, d := range decisions {
		switch strings.ToUpper(d.Event) {
		case "ADD":
			emb, ok := factEmbedding[d.Text]
			if !ok {
				if embs, err := m.embedder.Embed(ctx, []string{d.Text}); err == nil {
					emb = embs[0]
				} else {
					return nil, err
				}
			}
			ev, err := m.createMemory(ctx, d.Text, emb, opts.Scope, cloneMetadata(opts.Metadata))
			if err != nil {
				return nil, err
			}
			result.Results = append(result.Results, *ev)
		case "UPDATE":
			ev, err := m.updateMemory(ctx, d.ID, d.Text, opts.Scope)
			if err != nil {
				return nil, err
			}
			result.Results = append(result.Results, *ev)
		case "DELETE":
			ev, err := m.deleteMemory(ctx, d.ID)
			if err != nil {
				return nil, err
			}
			result.Results = append(result.Results, *ev)
		case "NONE":
			// Already covered.
		default:
			logger.Warn(ctx, "Ignoring unknown memory event", tag.Event(d.Event))
		}
	}
	if result.Results == nil {
		result.Results = []Event{}
	}
	return result, nil
}

func (m *Memory) extractFacts(ctx context.Context, messages []llm.Message) ([]string, error) {
	req := m.llmHandle.NewChatRequest([]llm.Message{
		{Role: llm.RoleSystem, Content: factExtractionPrompt(m.factPrompt)},
		{Role: llm.RoleUser, Content: "Input:\n" + conversationText(messages)},
	}, llm.WithJSONResponse())

	resp, err := m.chat.Chat(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fact extraction failed: %w", err)
	}
	var facts factsResponse
	if err := json.Unmarshal([]byte(stripCodeFence(resp.Content)), &facts); err != nil {
		return nil, fmt.Errorf("fact extraction returned malformed JSON: %w", err)
	}
	return lo.Filter(facts.Facts, func(f string, _ int) bool { return strings.TrimSpace(f) != "" }), nil
}

// decideUpdates runs the update prompt over surrogate integer IDs and
// maps the model's answers back to real memory IDs.
func (m *Memory) decideUpdates(ctx context.Context, retrieved []vecstore.Hit, facts []string) ([]updateDecision, error) {
	surrogate := make(map[string]string, len(retrieved))
	existing := make([]existingMemory, 0, len(retrieved))
	for i, hit := range retrieved {
		sid := strconv.Itoa(i)
		surrogate[sid] = hit.ID
		data, _ := hit.Payload["data"].(string)
		existing = append(existing, existingMemory{ID: sid, Text: data})
	}

	prompt, err := updateMemoryPrompt(m.updatePrompt, existing, facts)
	if err != nil {
		return nil, err
	}
	req := m.llmHandle.NewChatRequest([]llm.Message{
		{Role: llm.RoleUser, Content: prompt},
	}, llm.WithJSONResponse())

	resp, err := m.chat.Chat(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("memory reconciliation failed: %w", err)
	}
	var decisions updateResponse
	if err := json.Unmarshal([]byte(stripCodeFence(resp.Content)), &decisions); err != nil {
		return nil, fmt.Errorf("memory reconciliation returned malformed JSON: %w", err)
	}

	out := make([]updateDecision, 0, len(decisions.Memory))
	for _, d := range decisions.Memory {
		if real, ok := surrogate[d.ID]; ok {
			d.ID = real
		} else if !strings.EqualFold(d.Event, "ADD") {
			// UPDATE/DELETE against an id the model invented.
			logger.Warn(ctx, "Dropping decision with unknown memory id", tag.MemoryID(d.ID), tag.Event(d.Event))
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (m *Memory) createMemory(ctx context.Context, text string, embedding []float32, scope Scope, metadata map[string]any) (*Event, error) {
	id := uuid.NewString()
	now := time.Now().UTC()

	payload := cloneMetadata(metadata)
	payload["data"] = text
	payload["hash"] = contentHash(text)
	payload["created_at"] = now.Format(time.RFC3339Nano)
	if scope.UserID != "" {
		payload["user_id"] = scope.UserID
	}
	if scope.AgentID != "" {
		payload["agent_id"] = scope.AgentID
	}
	if scope.RunID != "" {
		payload["run_id"] = scope.RunID
	}

	if err := m.store.Insert(ctx, []vecstore.Record{{ID: id, Vector: embedding, Payload: payload}}); err != nil {
		return nil, err
	}
	if err := m.history.Record(ctx, history.Entry{
		MemoryID:  id,
		NewMemory: text,
		Event:     history.EventAdd,
		CreatedAt: now,
		ActorID:   scope.UserID,
	}); err != nil {
		return nil, err
	}
	logger.Debug(ctx, "Memory created", tag.MemoryID(id))
	return &Event{ID: id, Memory: text, Event: history.EventAdd}, nil
}

func (m *Memory) updateMemory(ctx context.Context, id, text string, scope Scope) (*Event, error) {
	existing, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	previous, _ := existing.Payload["data"].(string)

	embeddings, err := m.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	payload := existing.Payload
	payload["data"] = text
	payload["hash"] = contentHash(text)
	payload["updated_at"] = now.Format(time.RFC3339Nano)

	if err := m.store.Update(ctx, vecstore.Record{ID: id, Vector: embeddings[0], Payload: payload}); err != nil {
		return nil, err
	}
	if err := m.history.Record(ctx, history.Entry{
		MemoryID:  id,
		OldMemory: previous,
		NewMemory: text,
		Event:     history.EventUpdate,
		CreatedAt: now,
		UpdatedAt: now,
		ActorID:   scope.UserID,
	}); err != nil {
		return nil, err
	}
	logger.Debug(ctx, "Memory updated", tag.MemoryID(id))
	return &Event{ID: id, Memory: text, Event: history.EventUpdate, PreviousMemory: previous}, nil
}

func (m *Memory) deleteMemory(ctx context.Context, id string) (*Event, error) {
	existing, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	previous, _ := existing.Payload["data"].(string)

	if err := m.store.Delete(ctx, id); err != nil {
		return nil, err
	}
	if err := m.history.Record(ctx, history.Entry{
		MemoryID:  id,
		OldMemory: previous,
		Event:     history.EventDelete,
		IsDeleted: true,
	}); err != nil {
		return nil, err
	}
	logger.Debug(ctx, "Memory deleted", tag.MemoryID(id))
	return &Event{ID: id, Memory: previous, Event: history.EventDelete, PreviousMemory: previous}, nil
}

// mirrorToGraph extracts entities and relations from text and merges them
// into the scope's graph, removing relations the text contradicts.
func (m *Memory) mirrorToGraph(ctx context.Context, text string, scope Scope) ([]graph.Triple, error) {
	self := scope.selfReference()
	entities, err := m.extractor.ExtractEntities(ctx, text, self)
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, nil
	}
	triples, err := m.extractor.ExtractRelations(ctx, text, self, entities)
	if err != nil {
		return nil, err
	}

	entityType := make(map[string]string, len(entities))
	for _, e := range entities {
		entityType[e.Entity] = e.EntityType
	}
	names := make(map[string]struct{})
	for _, t := range triples {
		names[t.Source] = struct{}{}
		names[t.Destination] = struct{}{}
	}
	ordered := lo.Keys(names)
	embeddings, err := m.embedder.Embed(ctx, ordered)
	if err != nil {
		return nil, err
	}
	embedding := make(map[string][]float32, len(ordered))
	for i, name := range ordered {
		embedding[name] = embeddings[i]
	}

	existing, err := m.graph.GetAll(ctx, scope.graphFilters(), 100)
	if err != nil {
		return nil, err
	}
	deletions, err := m.extractor.ExtractDeletions(ctx, text, self, existing)
	if err != nil {
		return nil, err
	}
	if len(deletions) > 0 {
		if err := m.graph.DeleteRelations(ctx, deletions, scope.graphFilters()); err != nil {
			return nil, err
		}
	}

	relations := make([]graph.Relation, 0, len(triples))
	for _, t := range triples {
		relations = append(relations, graph.Relation{
			Source:       graph.Node{Name: t.Source, Type: entityType[t.Source], Embedding: embedding[t.Source]},
			Relationship: t.Relationship,
			Destination:  graph.Node{Name: t.Destination, Type: entityType[t.Destination], Embedding: embedding[t.Destination]},
		})
	}
	if err := m.graph.AddRelations(ctx, relations, scope.graphFilters()); err != nil {
		return nil, err
	}
	return triples, nil
}

// Search returns the memories nearest to query in the scope.
func (m *Memory) Search(ctx context.Context, query string, opts SearchOptions) (*SearchResult, error) {
	ctx, span := m.tracer.Start(ctx, "memory.Search")
	defer span.End()

	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query is empty")
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	embeddings, err := m.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	hits, err := m.store.Search(ctx, embeddings[0], limit, opts.vectorFilters())
	if err != nil {
		return nil, err
	}

	result := &SearchResult{Results: make([]Item, 0, len(hits))}
	for _, hit := range hits {
		item := payloadItem(hit.ID, hit.Payload)
		item.Score = hit.Score
		result.Results = append(result.Results, item)
	}

	if m.graph != nil {
		relations, err := m.graph.SearchRelations(ctx, embeddings[0], limit, opts.graphFilters())
		if err != nil {
			logger.Warn(ctx, "Graph search failed", tag.Error(err))
		} else {
			result.Relations = relations
		}
	}
	return result, nil
}

// Get returns a single memory by ID.
func (m *Memory) Get(ctx context.Context, id string) (*Item, error) {
	rec, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	item := payloadItem(rec.ID, rec.Payload)
	return &item, nil
}

// GetAll returns the memories in the scope.
func (m *Memory) GetAll(ctx context.Context, scope Scope, limit int) ([]Item, error) {
	records, err := m.store.List(ctx, scope.vectorFilters(), limit)
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(records))
	for _, rec := range records {
		items = append(items, payloadItem(rec.ID, rec.Payload))
	}
	return items, nil
}

// Update replaces a memory's text.
func (m *Memory) Update(ctx context.Context, id, text string) (*Event, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("memory text is empty")
	}
	return m.updateMemory(ctx, id, text, Scope{})
}

// Delete removes a single memory.
func (m *Memory) Delete(ctx context.Context, id string) (*Event, error) {
	return m.deleteMemory(ctx, id)
}

// DeleteAll removes every memory in the scope.
func (m *Memory) DeleteAll(ctx context.Context, scope Scope) (int, error) {
	if scope.IsZero() {
		return 0, fmt.Errorf("at least one of user_id, agent_id, run_id is required")
	}
	records, err := m.store.List(ctx, scope.vectorFilters(), 0)
	if err != nil {
		return 0, err
	}
	for _, rec := range records {
		if _, err := m.deleteMemory(ctx, rec.ID); err != nil {
			return 0, err
		}
	}
	if m.graph != nil {
		if err := m.graph.DeleteAll(ctx, scope.graphFilters()); err != nil {
			logger.Warn(ctx, "Graph delete failed", tag.Error(err))
		}
	}
	return len(records), nil
}

// History returns the change log of a memory, oldest first.
func (m *Memory) History(ctx context.Context, id string) ([]history.Entry, error) {
	return m.history.List(ctx, id)
}

// Reset drops every memory, every history entry, and the whole graph.
func (m *Memory) Reset(ctx context.Context) error {
	if err := m.store.Reset(ctx); err != nil {
		return err
	}
	if m.graph != nil {
		if err := m.graph.DeleteAll(ctx, graph.Filters{}); err != nil {
			return err
		}
	}
	return m.history.Reset(ctx)
}

func conversationText(messages []llm.Message) string {
	var b strings.Builder
	for _, msg := range messages {
		if msg.Role == llm.RoleSystem {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
	}
	return b.String()
}

// contentHash fingerprints a memory's text. The text is canonicalized
// first so inputs differing only in whitespace or Unicode composition
// produce the same hash.
func contentHash(text string) string {
	sum := md5.Sum([]byte(stringutil.NormalizeText(text)))
	return hex.EncodeToString(sum[:])
}

func cloneMetadata(metadata map[string]any) map[string]any {
	out := make(map[string]any, len(metadata)+6)
	for k, v := range metadata {
		if _, reserved := reservedPayloadKeys[k]; reserved {
			continue
		}
		out[k] = v
	}
	return out
}

// payloadItem rebuilds the API view of a memory from its stored payload.
func payloadItem(id string, payload map[string]any) Item {
	item := Item{ID: id}
	item.Memory, _ = payload["data"].(string)
	item.Hash, _ = payload["hash"].(string)
	item.UserID, _ = payload["user_id"].(string)
	item.AgentID, _ = payload["agent_id"].(string)
	item.RunID, _ = payload["run_id"].(string)
	if raw, ok := payload["created_at"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			item.CreatedAt = t
		}
	}
	if raw, ok := payload["updated_at"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			item.UpdatedAt = &t
		}
	}
	for k, v := range payload {
		if _, reserved := reservedPayloadKeys[k]; reserved {
			continue
		}
		if item.Metadata == nil {
			item.Metadata = make(map[string]any)
		}
		item.Metadata[k] = v
	}
	return item
}
