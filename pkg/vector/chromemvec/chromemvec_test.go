package chromemvec_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/parchmentco/engram/pkg/vector"
	"github.com/parchmentco/engram/pkg/vector/chromemvec"
)

var _ = Describe("Store", func() {
	var (
		store *chromemvec.Store
		ctx   context.Context
	)

	BeforeEach(func() {
		var err error
		store, err = chromemvec.NewStore(chromemvec.Config{}, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
		ctx = context.Background()
	})

	It("implements vector.Store", func() {
		var _ vector.Store = (*chromemvec.Store)(nil)
	})

	Describe("Insert and Get", func() {
		It("round-trips a record", func() {
			rec := vector.Record{
				ID:     "m1",
				Vector: []float32{1, 0, 0},
				Payload: map[string]any{
					vector.PayloadData:   "Prefers espresso over filter coffee",
					vector.PayloadUserID: "u1",
				},
			}
			Expect(store.Insert(ctx, []vector.Record{rec})).To(Succeed())

			got, err := store.Get(ctx, "m1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Text()).To(Equal("Prefers espresso over filter coffee"))
			Expect(got.Payload[vector.PayloadUserID]).To(Equal("u1"))
		})

		It("returns ErrNotFound for unknown ids", func() {
			_, err := store.Get(ctx, "missing")
			Expect(err).To(MatchError(vector.ErrNotFound))
		})
	})

	Describe("Update", func() {
		BeforeEach(func() {
			rec := vector.Record{
				ID:      "m1",
				Vector:  []float32{1, 0, 0},
				Payload: map[string]any{vector.PayloadData: "before"},
			}
			Expect(store.Insert(ctx, []vector.Record{rec})).To(Succeed())
		})

		It("replaces the payload", func() {
			err := store.Update(ctx, vector.Record{
				ID:      "m1",
				Vector:  []float32{0, 1, 0},
				Payload: map[string]any{vector.PayloadData: "after"},
			})
			Expect(err).NotTo(HaveOccurred())

			got, err := store.Get(ctx, "m1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Text()).To(Equal("after"))
		})

		It("keeps the embedding when none is supplied", func() {
			err := store.Update(ctx, vector.Record{
				ID:      "m1",
				Payload: map[string]any{vector.PayloadData: "after"},
			})
			Expect(err).NotTo(HaveOccurred())

			got, err := store.Get(ctx, "m1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Vector).To(Equal([]float32{1, 0, 0}))
		})

		It("errors on unknown ids", func() {
			err := store.Update(ctx, vector.Record{ID: "missing"})
			Expect(err).To(MatchError(vector.ErrNotFound))
		})
	})

	Describe("Search", func() {
		BeforeEach(func() {
			recs := []vector.Record{
				{ID: "a", Vector: []float32{1, 0, 0}, Payload: map[string]any{vector.PayloadData: "a", vector.PayloadUserID: "u1"}},
				{ID: "b", Vector: []float32{0.9, 0.1, 0}, Payload: map[string]any{vector.PayloadData: "b", vector.PayloadUserID: "u1"}},
				{ID: "c", Vector: []float32{0, 0, 1}, Payload: map[string]any{vector.PayloadData: "c", vector.PayloadUserID: "u2"}},
			}
			Expect(store.Insert(ctx, recs)).To(Succeed())
		})

		It("ranks by similarity descending", func() {
			hits, err := store.Search(ctx, "", []float32{1, 0, 0}, 2, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(hits).To(HaveLen(2))
			Expect(hits[0].ID).To(Equal("a"))
			Expect(hits[1].ID).To(Equal("b"))
		})

		It("filters by scope", func() {
			hits, err := store.Search(ctx, "", []float32{1, 0, 0}, 10, vector.Filters{vector.PayloadUserID: "u2"})
			Expect(err).NotTo(HaveOccurred())
			Expect(hits).To(HaveLen(1))
			Expect(hits[0].ID).To(Equal("c"))
		})

		It("returns nothing from an empty collection", func() {
			Expect(store.Reset(ctx)).To(Succeed())
			hits, err := store.Search(ctx, "", []float32{1, 0, 0}, 5, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(hits).To(BeEmpty())
		})
	})

	Describe("List, Delete, Reset", func() {
		BeforeEach(func() {
			recs := []vector.Record{
				{ID: "a", Vector: []float32{1, 0}, Payload: map[string]any{vector.PayloadUserID: "u1"}},
				{ID: "b", Vector: []float32{0, 1}, Payload: map[string]any{vector.PayloadUserID: "u1"}},
				{ID: "c", Vector: []float32{1, 1}, Payload: map[string]any{vector.PayloadUserID: "u2"}},
			}
			Expect(store.Insert(ctx, recs)).To(Succeed())
		})

		It("lists in insertion order with filters", func() {
			recs, err := store.List(ctx, vector.Filters{vector.PayloadUserID: "u1"}, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(recs).To(HaveLen(2))
			Expect(recs[0].ID).To(Equal("a"))
			Expect(recs[1].ID).To(Equal("b"))
		})

		It("deletes records", func() {
			Expect(store.Delete(ctx, "b")).To(Succeed())
			_, err := store.Get(ctx, "b")
			Expect(err).To(MatchError(vector.ErrNotFound))
		})

		It("errors when deleting unknown ids", func() {
			Expect(store.Delete(ctx, "missing")).To(MatchError(vector.ErrNotFound))
		})

		It("resets everything", func() {
			Expect(store.Reset(ctx)).To(Succeed())
			recs, err := store.List(ctx, nil, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(recs).To(BeEmpty())
		})
	})
})
