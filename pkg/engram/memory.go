// Package engram orchestrates the memory pipelines: turning conversation
// into reconciled fact records on the way in, and blending similarity,
// importance, recency and graph associations into ranked recall on the way
// out. Storage, embedding and reasoning are collaborator contracts; this
// package owns only the decisions between them.
package engram

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parchmentco/engram/pkg/dotdir"
	"github.com/parchmentco/engram/pkg/embeddings"
	"github.com/parchmentco/engram/pkg/extract"
	"github.com/parchmentco/engram/pkg/graph"
	"github.com/parchmentco/engram/pkg/history"
	historynop "github.com/parchmentco/engram/pkg/history/nop"
	"github.com/parchmentco/engram/pkg/lifecycle"
	"github.com/parchmentco/engram/pkg/persona"
	"github.com/parchmentco/engram/pkg/pulse"
	pulsenop "github.com/parchmentco/engram/pkg/pulse/nop"
	"github.com/parchmentco/engram/pkg/reasoner"
	"github.com/parchmentco/engram/pkg/recollect"
	"github.com/parchmentco/engram/pkg/reconcile"
	"github.com/parchmentco/engram/pkg/surprise"
	"github.com/parchmentco/engram/pkg/vector"
)

const (
	// nearbyLimit is how many existing memories are retrieved around each
	// candidate fact while scoring surprise.
	nearbyLimit = 5

	// MemoryTypeProcedural marks records produced by procedural
	// summarization rather than fact extraction.
	MemoryTypeProcedural = "procedural_memory"
)

// Config wires a Memory from its collaborators. Store, Embedder and
// Reasoner are required; everything else has a working default.
type Config struct {
	Store    vector.Store
	Embedder embeddings.Embedder
	Reasoner reasoner.Reasoner

	// Graph enables associative memory when non-nil and GraphEnabled.
	Graph        graph.Store
	GraphEnabled bool

	// History receives the audit trail. Nil discards it.
	History history.Log

	// Publisher receives lifecycle events. Nil discards them.
	Publisher pulse.Publisher

	// SurpriseThreshold and FlashbulbThreshold tune novelty detection.
	// Zero values use the package defaults.
	SurpriseThreshold  float64
	FlashbulbThreshold float64

	// Weights tunes the recall blend. Nil uses the default 0.5/0.3/0.2.
	Weights *recollect.Weights

	// PersonaEnabled injects the synthesized identity into search results.
	PersonaEnabled bool

	// ResonanceSize bounds the buffer of recent reinforcement events.
	// Non-positive uses pulse.DefaultResonanceSize.
	ResonanceSize int

	// Snapshots caches the synthesized identity on disk when non-nil.
	Snapshots   *dotdir.Manager
	SnapshotDir string

	Logger *zap.Logger
}

// Memory is the orchestrator over both pipelines. Safe for concurrent use;
// note that two concurrent Add calls carrying the same fact can both pass
// the surprise check and create duplicate records. That race is accepted:
// closing it would require cross-call locking on every add.
type Memory struct {
	store     vector.Store
	embedder  embeddings.Embedder
	reasoner  reasoner.Reasoner
	graph     graph.Store
	history   history.Log
	publisher pulse.Publisher

	evaluator *surprise.Evaluator
	extractor *extract.Extractor
	planner   *reconcile.Planner
	ranker    *recollect.Ranker
	expander  *recollect.Expander
	hook      lifecycle.Hook
	persona   *persona.Engine
	buffer    *pulse.ResonanceBuffer

	graphEnabled   bool
	personaEnabled bool

	snapshots   *dotdir.Manager
	snapshotDir string

	identityMu sync.RWMutex
	identity   string

	logger *zap.Logger
	now    func() time.Time
}

// NewMemory validates the configuration and assembles the pipelines.
func NewMemory(cfg Config) (*Memory, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("%w: vector store is required", ErrInvalidConfig)
	}
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if cfg.Reasoner == nil {
		return nil, fmt.Errorf("%w: reasoner is required", ErrInvalidConfig)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	evaluator, err := surprise.NewEvaluator(cfg.SurpriseThreshold, cfg.FlashbulbThreshold)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	weights := recollect.DefaultWeights()
	if cfg.Weights != nil {
		weights = *cfg.Weights
	}
	ranker, err := recollect.NewRanker(weights, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	log := cfg.History
	if log == nil {
		log = historynop.NewLog()
	}

	publisher := cfg.Publisher
	if publisher == nil {
		publisher = pulsenop.NewPublisher()
	}

	extractor := extract.NewExtractor(cfg.Reasoner, logger)
	buffer := pulse.NewResonanceBuffer(cfg.ResonanceSize)

	m := &Memory{
		store:          cfg.Store,
		embedder:       cfg.Embedder,
		reasoner:       cfg.Reasoner,
		graph:          cfg.Graph,
		history:        log,
		publisher:      publisher,
		evaluator:      evaluator,
		extractor:      extractor,
		planner:        reconcile.NewPlanner(cfg.Reasoner, logger),
		ranker:         ranker,
		expander:       recollect.NewExpander(cfg.Graph, extractor, logger),
		hook:           lifecycle.NewStoreHook(cfg.Store, publisher, buffer, logger),
		persona:        persona.NewEngine(cfg.Reasoner, logger),
		buffer:         buffer,
		graphEnabled:   cfg.GraphEnabled && cfg.Graph != nil,
		personaEnabled: cfg.PersonaEnabled,
		snapshots:      cfg.Snapshots,
		snapshotDir:    cfg.SnapshotDir,
		logger:         logger,
		now:            time.Now,
	}

	m.restoreIdentity()

	return m, nil
}

// Add records a conversation. The vector branch extracts and reconciles
// facts while the graph branch extracts associations; both run concurrently
// and join before the merged result is returned.
func (m *Memory) Add(ctx context.Context, msgs []extract.Message, session Session, opts *AddOptions) (*AddResult, error) {
	if err := session.Validate(); err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("%w: no messages", ErrEmptyInput)
	}
	if opts == nil {
		opts = &AddOptions{}
	}

	if opts.Procedural {
		return m.addProcedural(ctx, msgs, session, opts)
	}

	var (
		wg        sync.WaitGroup
		mutations []Mutation
		vectorErr error
		assocs    []graph.Association
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if opts.Raw {
			mutations, vectorErr = m.addRaw(ctx, msgs, session, opts)
			return
		}
		mutations = m.addInferred(ctx, msgs, session, opts)
	}()

	if m.graphEnabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assocs = m.addAssociations(ctx, msgs, session)
		}()
	}

	wg.Wait()

	if vectorErr != nil {
		return nil, vectorErr
	}

	return &AddResult{Results: mutations, Associations: assocs}, nil
}

// addInferred is the reconciliation branch: extract facts, score surprise
// per fact, plan one decision batch, apply each action independently.
func (m *Memory) addInferred(ctx context.Context, msgs []extract.Message, session Session, opts *AddOptions) []Mutation {
	conversation := extract.RenderConversation(msgs)
	agentMemory := session.AgentID != "" && extract.HasAssistantAuthor(msgs)

	facts := m.extractor.Facts(ctx, conversation, agentMemory)
	if len(facts) == 0 {
		m.logger.Debug("no facts extracted, nothing to reconcile")
		return nil
	}

	filters := session.Filters()

	candidates := make([]reconcile.Candidate, 0, len(facts))
	vectors := make(map[string][]float32, len(facts))
	var existing []reconcile.Existing
	seen := map[string]struct{}{}

	for _, fact := range facts {
		vec, err := m.embedder.Embed(ctx, fact, embeddings.ModeAdd)
		if err != nil {
			m.logger.Warn("embedding candidate fact failed, skipping it",
				zap.String("fact", fact),
				zap.Error(err),
			)
			continue
		}
		vectors[fact] = vec

		hits, err := m.store.Search(ctx, fact, vec, nearbyLimit, filters)
		if err != nil {
			m.logger.Warn("nearby retrieval failed, treating fact as novel",
				zap.String("fact", fact),
				zap.Error(err),
			)
			hits = nil
		}

		nearby := make([]surprise.Nearby, 0, len(hits))
		for _, h := range hits {
			// Cosine scores land in [-1,1]; the evaluator wants [0,1].
			score := h.Score
			if score < 0 {
				score = 0
			} else if score > 1 {
				score = 1
			}
			nearby = append(nearby, surprise.Nearby{ID: h.ID, Score: score})
			if _, dup := seen[h.ID]; !dup {
				seen[h.ID] = struct{}{}
				existing = append(existing, reconcile.Existing{ID: h.ID, Text: h.Text()})
			}
		}

		assessment, err := m.evaluator.Evaluate(nearby)
		if err != nil {
			m.logger.Warn("surprise evaluation failed, skipping fact",
				zap.String("fact", fact),
				zap.Error(err),
			)
			continue
		}

		candidates = append(candidates, reconcile.Candidate{Text: fact, Assessment: assessment})
	}

	actions := m.planner.Plan(ctx, candidates, existing)

	mutations := make([]Mutation, 0, len(actions))
	for _, action := range actions {
		mutation, ok := m.apply(ctx, action, vectors, session, opts)
		if !ok {
			continue
		}
		mutations = append(mutations, mutation)
	}

	return mutations
}

// apply executes one reconciliation action. Failures are contained to the
// action: the rest of the batch still lands.
func (m *Memory) apply(ctx context.Context, action reconcile.Action, vectors map[string][]float32, session Session, opts *AddOptions) (Mutation, bool) {
	switch action.Op {
	case reconcile.OpAdd:
		vec, ok := vectors[action.Text]
		if !ok {
			var err error
			vec, err = m.embedder.Embed(ctx, action.Text, embeddings.ModeAdd)
			if err != nil {
				m.logger.Warn("embedding for ADD failed, skipping action", zap.Error(err))
				return Mutation{}, false
			}
		}

		id, err := m.createRecord(ctx, action.Text, vec, session, opts.Metadata, action.Flashbulb, "")
		if err != nil {
			m.logger.Warn("applying ADD failed", zap.Error(err))
			return Mutation{}, false
		}
		return Mutation{ID: id, Text: action.Text, Event: string(reconcile.OpAdd)}, true

	case reconcile.OpUpdate:
		previous, err := m.updateRecord(ctx, action.ID, action.Text, session, opts.Metadata)
		if err != nil {
			m.logger.Warn("applying UPDATE failed", zap.String("memory_id", action.ID), zap.Error(err))
			return Mutation{}, false
		}
		return Mutation{ID: action.ID, Text: action.Text, Event: string(reconcile.OpUpdate), PreviousText: previous}, true

	case reconcile.OpDelete:
		text, err := m.deleteRecord(ctx, action.ID, session)
		if err != nil {
			m.logger.Warn("applying DELETE failed", zap.String("memory_id", action.ID), zap.Error(err))
			return Mutation{}, false
		}
		if text == "" {
			text = action.PreviousText
		}
		return Mutation{ID: action.ID, Text: text, Event: string(reconcile.OpDelete)}, true

	case reconcile.OpReinforce:
		if err := m.hook.Reinforce(ctx, action.ID); err != nil {
			m.logger.Warn("applying REINFORCE failed", zap.String("memory_id", action.ID), zap.Error(err))
			return Mutation{}, false
		}
		return Mutation{ID: action.ID, Text: action.Text, Event: string(reconcile.OpReinforce)}, true

	case reconcile.OpNone:
		// An unchanged fact may still pick up fresh session identifiers.
		if session.AgentID == "" && session.RunID == "" {
			return Mutation{}, false
		}
		if err := m.refreshScope(ctx, action.ID, session); err != nil {
			m.logger.Warn("refreshing scope on NONE failed", zap.String("memory_id", action.ID), zap.Error(err))
		}
		return Mutation{}, false

	default:
		m.logger.Warn("unknown action op", zap.String("op", string(action.Op)))
		return Mutation{}, false
	}
}

// addRaw stores each message verbatim, one record per non-empty message.
func (m *Memory) addRaw(ctx context.Context, msgs []extract.Message, session Session, opts *AddOptions) ([]Mutation, error) {
	mutations := make([]Mutation, 0, len(msgs))

	for _, msg := range msgs {
		if msg.Content == "" {
			continue
		}

		vec, err := m.embedder.Embed(ctx, msg.Content, embeddings.ModeAdd)
		if err != nil {
			return nil, fmt.Errorf("embedding raw message: %w", err)
		}

		msgSession := session
		if msg.Name != "" {
			msgSession.ActorID = msg.Name
		}

		id, err := m.createRecordWithRole(ctx, msg.Content, vec, msgSession, opts.Metadata, false, "", msg.Role)
		if err != nil {
			return nil, fmt.Errorf("storing raw message: %w", err)
		}

		mutations = append(mutations, Mutation{ID: id, Text: msg.Content, Event: string(reconcile.OpAdd)})
	}

	return mutations, nil
}

// addAssociations is the graph branch of Add. Entirely best-effort.
func (m *Memory) addAssociations(ctx context.Context, msgs []extract.Message, session Session) []graph.Association {
	conversation := extract.RenderConversation(msgs)

	assocs := m.extractor.GraphElements(ctx, conversation)
	if len(assocs) == 0 {
		return nil
	}

	if err := m.graph.Add(ctx, assocs, session.GraphFilters()); err != nil {
		m.logger.Warn("storing associations failed", zap.Error(err))
		return nil
	}

	return assocs
}

// addProcedural summarizes the conversation into one procedural record.
func (m *Memory) addProcedural(ctx context.Context, msgs []extract.Message, session Session, opts *AddOptions) (*AddResult, error) {
	conversation := extract.RenderConversation(msgs)

	summary, err := m.reasoner.Generate(ctx, []reasoner.Message{
		{Role: reasoner.RoleSystem, Content: proceduralPrompt},
		{Role: reasoner.RoleUser, Content: conversation},
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("summarizing procedural memory: %w", err)
	}
	if summary == "" {
		return nil, fmt.Errorf("%w: empty procedural summary", ErrEmptyInput)
	}

	vec, err := m.embedder.Embed(ctx, summary, embeddings.ModeAdd)
	if err != nil {
		return nil, fmt.Errorf("embedding procedural memory: %w", err)
	}

	id, err := m.createRecord(ctx, summary, vec, session, opts.Metadata, false, MemoryTypeProcedural)
	if err != nil {
		return nil, err
	}

	return &AddResult{
		Results: []Mutation{{ID: id, Text: summary, Event: string(reconcile.OpAdd)}},
	}, nil
}

const proceduralPrompt = `Summarize the following agent conversation into a concise procedural memory: what was attempted, the steps taken, and the outcome. Write it as a compact set of reusable instructions. No preamble.`

// createRecord persists a new memory record and its audit entry.
func (m *Memory) createRecord(ctx context.Context, text string, vec []float32, session Session, metadata map[string]any, flashbulb bool, memoryType string) (string, error) {
	return m.createRecordWithRole(ctx, text, vec, session, metadata, flashbulb, memoryType, "")
}

func (m *Memory) createRecordWithRole(ctx context.Context, text string, vec []float32, session Session, metadata map[string]any, flashbulb bool, memoryType string, role string) (string, error) {
	id := uuid.NewString()
	now := m.now().UTC().Format(time.RFC3339)

	payload := map[string]any{}
	for k, v := range metadata {
		payload[k] = v
	}

	payload[vector.PayloadData] = text
	payload[vector.PayloadHash] = contentHash(text)
	payload[vector.PayloadCreatedAt] = now
	payload[vector.PayloadImportance] = 1.0

	if session.UserID != "" {
		payload[vector.PayloadUserID] = session.UserID
	}
	if session.AgentID != "" {
		payload[vector.PayloadAgentID] = session.AgentID
	}
	if session.RunID != "" {
		payload[vector.PayloadRunID] = session.RunID
	}
	if session.ActorID != "" {
		payload[vector.PayloadActorID] = session.ActorID
	}
	if role != "" {
		payload[vector.PayloadRole] = role
	}
	if flashbulb {
		payload[vector.PayloadIsFlashbulb] = true
	}
	if memoryType != "" {
		payload[vector.PayloadMemoryType] = memoryType
	}

	if err := m.store.Insert(ctx, []vector.Record{{ID: id, Vector: vec, Payload: payload}}); err != nil {
		return "", fmt.Errorf("inserting record: %w", err)
	}

	if err := m.history.Append(ctx, history.Entry{
		MemoryID: id,
		NewValue: text,
		Event:    history.EventAdd,
		ActorID:  session.ActorID,
		Role:     role,
	}); err != nil {
		m.logger.Warn("appending ADD history failed", zap.String("memory_id", id), zap.Error(err))
	}

	eventType := pulse.EventTypeStored
	if flashbulb {
		eventType = pulse.EventTypeFlashbulb
	}
	m.emit(ctx, eventType, id, text, session)

	return id, nil
}

// updateRecord overwrites a record's text and embedding, carrying forward
// scoping and protected metadata from the prior version. Importance resets
// to 1.0. Returns the previous text for the audit trail.
func (m *Memory) updateRecord(ctx context.Context, id, text string, session Session, metadata map[string]any) (string, error) {
	prior, err := m.store.Get(ctx, id)
	if err != nil {
		return "", fmt.Errorf("loading record %s: %w", id, err)
	}
	previous := prior.Text()

	vec, err := m.embedder.Embed(ctx, text, embeddings.ModeUpdate)
	if err != nil {
		return "", fmt.Errorf("embedding replacement text: %w", err)
	}

	// Start from the prior payload so scoping and protected metadata
	// survive unless the caller explicitly overrides them.
	payload := map[string]any{}
	for k, v := range prior.Payload {
		payload[k] = v
	}
	for k, v := range metadata {
		payload[k] = v
	}

	payload[vector.PayloadData] = text
	payload[vector.PayloadHash] = contentHash(text)
	payload[vector.PayloadUpdatedAt] = m.now().UTC().Format(time.RFC3339)
	payload[vector.PayloadImportance] = 1.0

	if session.UserID != "" {
		payload[vector.PayloadUserID] = session.UserID
	}
	if session.AgentID != "" {
		payload[vector.PayloadAgentID] = session.AgentID
	}
	if session.RunID != "" {
		payload[vector.PayloadRunID] = session.RunID
	}

	if err := m.store.Update(ctx, vector.Record{ID: id, Vector: vec, Payload: payload}); err != nil {
		return "", fmt.Errorf("updating record %s: %w", id, err)
	}

	if err := m.history.Append(ctx, history.Entry{
		MemoryID:      id,
		PreviousValue: previous,
		NewValue:      text,
		Event:         history.EventUpdate,
		ActorID:       session.ActorID,
	}); err != nil {
		m.logger.Warn("appending UPDATE history failed", zap.String("memory_id", id), zap.Error(err))
	}

	return previous, nil
}

// deleteRecord tombstones a record and returns its last text.
func (m *Memory) deleteRecord(ctx context.Context, id string, session Session) (string, error) {
	prior, err := m.store.Get(ctx, id)
	if err != nil {
		return "", fmt.Errorf("loading record %s: %w", id, err)
	}
	text := prior.Text()

	if err := m.store.Delete(ctx, id); err != nil {
		return "", fmt.Errorf("deleting record %s: %w", id, err)
	}

	if err := m.history.Append(ctx, history.Entry{
		MemoryID:      id,
		PreviousValue: text,
		Event:         history.EventDelete,
		IsDeleted:     true,
		ActorID:       session.ActorID,
	}); err != nil {
		m.logger.Warn("appending DELETE history failed", zap.String("memory_id", id), zap.Error(err))
	}

	m.emit(ctx, pulse.EventTypeForgotten, id, text, session)

	return text, nil
}

// refreshScope updates only the session identifiers on an otherwise
// unchanged record. No audit entry: the content did not move.
func (m *Memory) refreshScope(ctx context.Context, id string, session Session) error {
	rec, err := m.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("loading record %s: %w", id, err)
	}

	if session.AgentID != "" {
		rec.Payload[vector.PayloadAgentID] = session.AgentID
	}
	if session.RunID != "" {
		rec.Payload[vector.PayloadRunID] = session.RunID
	}
	rec.Payload[vector.PayloadUpdatedAt] = m.now().UTC().Format(time.RFC3339)

	if err := m.store.Update(ctx, vector.Record{ID: id, Payload: rec.Payload}); err != nil {
		return fmt.Errorf("updating record %s: %w", id, err)
	}

	return nil
}

// emit publishes a lifecycle event. Best-effort: failures are logged,
// never surfaced.
func (m *Memory) emit(ctx context.Context, eventType, memoryID, text string, session Session) {
	event := pulse.Event{
		SchemaVersion: pulse.SchemaVersionV1,
		EventType:     eventType,
		EventID:       uuid.NewString(),
		EmittedAt:     m.now().UTC(),
		Source: pulse.Source{
			UserID:  session.UserID,
			AgentID: session.AgentID,
			RunID:   session.RunID,
		},
		MemoryID: memoryID,
		Text:     text,
	}

	if err := m.publisher.Publish(ctx, &event); err != nil {
		m.logger.Warn("publishing lifecycle event failed",
			zap.String("event_type", eventType),
			zap.String("memory_id", memoryID),
			zap.Error(err),
		)
	}
}

// Absorb feeds an external lifecycle event into the resonance buffer, for
// callers subscribed to another instance's pulse stream.
func (m *Memory) Absorb(event pulse.Event) {
	m.buffer.Absorb(event)
}

// Close releases every collaborator.
func (m *Memory) Close() error {
	errs := []error{
		m.store.Close(),
		m.embedder.Close(),
		m.reasoner.Close(),
		m.history.Close(),
		m.publisher.Close(),
	}
	if m.graph != nil {
		errs = append(errs, m.graph.Close())
	}
	return errors.Join(errs...)
}

// contentHash is the md5 hex digest of the record's text, kept for change
// detection across updates.
func contentHash(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}
