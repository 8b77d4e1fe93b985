package engram_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/parchmentco/engram/pkg/embeddings/mock"
	"github.com/parchmentco/engram/pkg/engram"
	"github.com/parchmentco/engram/pkg/extract"
	"github.com/parchmentco/engram/pkg/graph/memgraph"
	reasonermock "github.com/parchmentco/engram/pkg/reasoner/mock"
	"github.com/parchmentco/engram/pkg/vector"
	"github.com/parchmentco/engram/pkg/vector/memvec"
)

// Scripted unit vectors so similarities are exact.
var (
	vecTennis   = []float32{1, 0, 0}
	vecWeather  = []float32{0, 1, 0}
	vecMountain = []float32{0, 0, 1}
)

func newFixture(responses ...string) (*engram.Memory, *memvec.Store, *mock.Embedder, *reasonermock.Reasoner) {
	store := memvec.NewStore(zap.NewNop())
	embedder := mock.NewEmbedder()
	rsn := reasonermock.NewReasoner(responses...)

	m, err := engram.NewMemory(engram.Config{
		Store:    store,
		Embedder: embedder,
		Reasoner: rsn,
	})
	Expect(err).NotTo(HaveOccurred())

	return m, store, embedder, rsn
}

func seedRecord(store *memvec.Store, id, text string, vec []float32, payload map[string]any) {
	if payload == nil {
		payload = map[string]any{}
	}
	payload[vector.PayloadData] = text
	Expect(store.Insert(context.Background(), []vector.Record{
		{ID: id, Vector: vec, Payload: payload},
	})).To(Succeed())
}

var _ = Describe("NewMemory", func() {
	It("requires a store, an embedder and a reasoner", func() {
		_, err := engram.NewMemory(engram.Config{
			Embedder: mock.NewEmbedder(),
			Reasoner: reasonermock.NewReasoner(),
		})
		Expect(errors.Is(err, engram.ErrInvalidConfig)).To(BeTrue())

		_, err = engram.NewMemory(engram.Config{
			Store:    memvec.NewStore(zap.NewNop()),
			Reasoner: reasonermock.NewReasoner(),
		})
		Expect(errors.Is(err, engram.ErrInvalidConfig)).To(BeTrue())

		_, err = engram.NewMemory(engram.Config{
			Store:    memvec.NewStore(zap.NewNop()),
			Embedder: mock.NewEmbedder(),
		})
		Expect(errors.Is(err, engram.ErrInvalidConfig)).To(BeTrue())
	})

	It("rejects thresholds with flashbulb above surprise", func() {
		_, err := engram.NewMemory(engram.Config{
			Store:              memvec.NewStore(zap.NewNop()),
			Embedder:           mock.NewEmbedder(),
			Reasoner:           reasonermock.NewReasoner(),
			SurpriseThreshold:  0.5,
			FlashbulbThreshold: 0.9,
		})
		Expect(errors.Is(err, engram.ErrInvalidConfig)).To(BeTrue())
	})
})

var _ = Describe("Add", func() {
	var ctx context.Context
	session := engram.Session{UserID: "u1"}

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("rejects a session without any scoping identifier", func() {
		m, _, _, _ := newFixture()
		_, err := m.Add(ctx, []extract.Message{{Role: "user", Content: "hi"}}, engram.Session{}, nil)
		Expect(errors.Is(err, engram.ErrMissingScope)).To(BeTrue())
	})

	It("rejects an empty conversation", func() {
		m, _, _, _ := newFixture()
		_, err := m.Add(ctx, nil, session, nil)
		Expect(errors.Is(err, engram.ErrEmptyInput)).To(BeTrue())
	})

	It("creates a flashbulb record for a novel fact", func() {
		m, store, embedder, _ := newFixture(
			`{"facts": ["Alice likes tennis"]}`,
			`{"memory": [{"event": "ADD", "text": "Alice likes tennis"}]}`,
		)
		embedder.Embeddings["Alice likes tennis"] = vecTennis

		result, err := m.Add(ctx, []extract.Message{
			{Role: "user", Content: "I really enjoy tennis"},
		}, session, nil)
		Expect(err).NotTo(HaveOccurred())

		Expect(result.Results).To(HaveLen(1))
		Expect(result.Results[0].Event).To(Equal("ADD"))
		Expect(result.Results[0].Text).To(Equal("Alice likes tennis"))

		records, err := store.List(ctx, nil, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(1))
		Expect(records[0].Text()).To(Equal("Alice likes tennis"))
		Expect(records[0].Payload[vector.PayloadIsFlashbulb]).To(Equal(true))
		Expect(records[0].Payload[vector.PayloadUserID]).To(Equal("u1"))
		Expect(records[0].Payload[vector.PayloadImportance]).To(Equal(1.0))
		Expect(records[0].Payload[vector.PayloadHash]).NotTo(BeEmpty())
	})

	It("reinforces the best match instead of duplicating a known fact", func() {
		m, store, embedder, _ := newFixture(
			`{"facts": ["Alice likes tennis"]}`,
			`{"memory": [{"event": "ADD", "text": "Alice likes tennis"}]}`,
		)
		embedder.Embeddings["Alice likes tennis"] = vecTennis
		seedRecord(store, "m1", "Alice likes tennis", vecTennis, map[string]any{
			vector.PayloadUserID:     "u1",
			vector.PayloadImportance: 0.5,
		})

		result, err := m.Add(ctx, []extract.Message{
			{Role: "user", Content: "I really enjoy tennis"},
		}, session, nil)
		Expect(err).NotTo(HaveOccurred())

		Expect(result.Results).To(HaveLen(1))
		Expect(result.Results[0].Event).To(Equal("REINFORCE"))
		Expect(result.Results[0].ID).To(Equal("m1"))

		records, err := store.List(ctx, nil, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(1))

		rec, err := store.Get(ctx, "m1")
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.Payload[vector.PayloadImportance]).To(BeNumerically("~", 0.6, 1e-9))
		Expect(rec.Payload[vector.PayloadReinforceCount]).To(Equal(1))
		Expect(rec.Payload[vector.PayloadLastAccessedAt]).NotTo(BeEmpty())
	})

	It("updates through the temp id, carrying scope forward and resetting importance", func() {
		m, store, embedder, _ := newFixture(
			`{"facts": ["Alice now prefers padel"]}`,
			`{"memory": [{"id": "0", "event": "UPDATE", "text": "Alice now prefers padel", "old_memory": "Alice likes tennis"}]}`,
		)
		embedder.Embeddings["Alice now prefers padel"] = vecTennis
		seedRecord(store, "m7", "Alice likes tennis", vecTennis, map[string]any{
			vector.PayloadUserID:     "u1",
			vector.PayloadAgentID:    "a1",
			vector.PayloadImportance: 0.3,
			vector.PayloadVisibility: "private",
		})

		result, err := m.Add(ctx, []extract.Message{
			{Role: "user", Content: "Actually I play padel now"},
		}, session, nil)
		Expect(err).NotTo(HaveOccurred())

		Expect(result.Results).To(HaveLen(1))
		Expect(result.Results[0].Event).To(Equal("UPDATE"))
		Expect(result.Results[0].ID).To(Equal("m7"))
		Expect(result.Results[0].PreviousText).To(Equal("Alice likes tennis"))

		rec, err := store.Get(ctx, "m7")
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.Text()).To(Equal("Alice now prefers padel"))
		Expect(rec.Payload[vector.PayloadAgentID]).To(Equal("a1"))
		Expect(rec.Payload[vector.PayloadVisibility]).To(Equal("private"))
		Expect(rec.Payload[vector.PayloadImportance]).To(Equal(1.0))
		Expect(rec.Payload[vector.PayloadUpdatedAt]).NotTo(BeEmpty())
	})

	It("tombstones a contradicted memory", func() {
		m, store, embedder, _ := newFixture(
			`{"facts": ["Alice stopped playing tennis"]}`,
			`{"memory": [{"id": "0", "event": "DELETE", "text": "Alice likes tennis"}]}`,
		)
		embedder.Embeddings["Alice stopped playing tennis"] = vecTennis
		seedRecord(store, "m1", "Alice likes tennis", vecTennis, map[string]any{
			vector.PayloadUserID: "u1",
		})

		result, err := m.Add(ctx, []extract.Message{
			{Role: "user", Content: "I quit tennis"},
		}, session, nil)
		Expect(err).NotTo(HaveOccurred())

		Expect(result.Results).To(HaveLen(1))
		Expect(result.Results[0].Event).To(Equal("DELETE"))
		Expect(result.Results[0].Text).To(Equal("Alice likes tennis"))

		_, err = store.Get(ctx, "m1")
		Expect(errors.Is(err, vector.ErrNotFound)).To(BeTrue())
	})

	It("refreshes session identifiers on NONE without touching content", func() {
		m, store, embedder, _ := newFixture(
			`{"facts": ["Alice likes tennis"]}`,
			`{"memory": [{"id": "0", "event": "NONE", "text": "Alice likes tennis"}]}`,
		)
		embedder.Embeddings["Alice likes tennis"] = vecTennis
		seedRecord(store, "m1", "Alice likes tennis", vecTennis, map[string]any{
			vector.PayloadUserID:  "u1",
			vector.PayloadAgentID: "a2",
		})

		result, err := m.Add(ctx, []extract.Message{
			{Role: "user", Content: "I really enjoy tennis"},
		}, engram.Session{UserID: "u1", AgentID: "a2"}, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Results).To(BeEmpty())

		rec, err := store.Get(ctx, "m1")
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.Text()).To(Equal("Alice likes tennis"))
		Expect(rec.Payload[vector.PayloadAgentID]).To(Equal("a2"))
		Expect(rec.Payload[vector.PayloadUpdatedAt]).NotTo(BeEmpty())
	})

	It("degrades to no mutations when the reconciliation response is unusable", func() {
		m, store, embedder, _ := newFixture(
			`{"facts": ["Alice likes tennis"]}`,
			"I would rather chat about the weather.",
		)
		embedder.Embeddings["Alice likes tennis"] = vecTennis

		result, err := m.Add(ctx, []extract.Message{
			{Role: "user", Content: "I really enjoy tennis"},
		}, session, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Results).To(BeEmpty())

		records, err := store.List(ctx, nil, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(BeEmpty())
	})

	It("returns an empty result when no facts are extracted", func() {
		m, store, _, rsn := newFixture(`{"facts": []}`)

		result, err := m.Add(ctx, []extract.Message{
			{Role: "user", Content: "hmm"},
		}, session, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Results).To(BeEmpty())

		// Extraction ran, reconciliation never did.
		Expect(rsn.CallCount()).To(Equal(1))

		records, err := store.List(ctx, nil, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(BeEmpty())
	})

	It("stores messages verbatim in raw mode without calling the reasoner", func() {
		m, store, _, rsn := newFixture()

		result, err := m.Add(ctx, []extract.Message{
			{Role: "user", Content: "remember this exactly", Name: "alice"},
			{Role: "assistant", Content: "noted"},
		}, session, &engram.AddOptions{Raw: true})
		Expect(err).NotTo(HaveOccurred())

		Expect(rsn.CallCount()).To(BeZero())
		Expect(result.Results).To(HaveLen(2))

		records, err := store.List(ctx, nil, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(2))
		Expect(records[0].Text()).To(Equal("remember this exactly"))
		Expect(records[0].Payload[vector.PayloadRole]).To(Equal("user"))
		Expect(records[0].Payload[vector.PayloadActorID]).To(Equal("alice"))
		Expect(records[1].Payload[vector.PayloadRole]).To(Equal("assistant"))
	})

	It("summarizes the conversation into one procedural record", func() {
		m, store, _, _ := newFixture("Check the build logs first, then rerun the failing stage.")

		result, err := m.Add(ctx, []extract.Message{
			{Role: "user", Content: "fix the pipeline"},
			{Role: "assistant", Content: "found a flaky stage, reran it"},
		}, engram.Session{AgentID: "a1"}, &engram.AddOptions{Procedural: true})
		Expect(err).NotTo(HaveOccurred())

		Expect(result.Results).To(HaveLen(1))
		Expect(result.Results[0].Event).To(Equal("ADD"))

		rec, err := store.Get(ctx, result.Results[0].ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.Payload[vector.PayloadMemoryType]).To(Equal(engram.MemoryTypeProcedural))
	})

	It("merges caller metadata into created records", func() {
		m, store, embedder, _ := newFixture(
			`{"facts": ["Alice likes tennis"]}`,
			`{"memory": [{"event": "ADD", "text": "Alice likes tennis"}]}`,
		)
		embedder.Embeddings["Alice likes tennis"] = vecTennis

		_, err := m.Add(ctx, []extract.Message{
			{Role: "user", Content: "I really enjoy tennis"},
		}, session, &engram.AddOptions{Metadata: map[string]any{"category": "hobby"}})
		Expect(err).NotTo(HaveOccurred())

		records, err := store.List(ctx, nil, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(1))
		Expect(records[0].Payload["category"]).To(Equal("hobby"))
	})

	It("extracts associations on the graph branch in raw mode", func() {
		store := memvec.NewStore(zap.NewNop())
		graphStore := memgraph.NewStore(zap.NewNop())
		rsn := reasonermock.NewReasoner(
			`{"entities": [{"source": "alice", "relationship": "plays", "destination": "tennis"}]}`,
		)

		m, err := engram.NewMemory(engram.Config{
			Store:        store,
			Embedder:     mock.NewEmbedder(),
			Reasoner:     rsn,
			Graph:        graphStore,
			GraphEnabled: true,
		})
		Expect(err).NotTo(HaveOccurred())

		result, err := m.Add(ctx, []extract.Message{
			{Role: "user", Content: "alice plays tennis"},
		}, session, &engram.AddOptions{Raw: true})
		Expect(err).NotTo(HaveOccurred())

		Expect(result.Associations).To(HaveLen(1))
		Expect(result.Associations[0].Source).To(Equal("alice"))

		stored, err := graphStore.Search(ctx, "alice", session.GraphFilters(), 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(stored).To(HaveLen(1))
	})
})
