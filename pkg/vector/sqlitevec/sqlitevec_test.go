package sqlitevec_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/parchmentco/engram/pkg/vector"
	"github.com/parchmentco/engram/pkg/vector/sqlitevec"
)

var _ = Describe("Store", func() {
	var (
		store *sqlitevec.Store
		ctx   context.Context
	)

	newStore := func() *sqlitevec.Store {
		s, err := sqlitevec.NewStore(sqlitevec.Config{
			DBPath:     ":memory:",
			Dimensions: 4,
		}, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
		return s
	}

	BeforeEach(func() {
		ctx = context.Background()
		store = newStore()
	})

	AfterEach(func() {
		Expect(store.Close()).To(Succeed())
	})

	It("implements vector.Store", func() {
		var _ vector.Store = (*sqlitevec.Store)(nil)
	})

	Describe("NewStore", func() {
		It("requires a database path", func() {
			_, err := sqlitevec.NewStore(sqlitevec.Config{Dimensions: 4}, zap.NewNop())
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("database path is required"))
		})

		It("requires dimensions", func() {
			_, err := sqlitevec.NewStore(sqlitevec.Config{DBPath: ":memory:"}, zap.NewNop())
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Insert and Get", func() {
		It("round-trips a record with payload and embedding", func() {
			rec := vector.Record{
				ID:     "m1",
				Vector: []float32{0.1, 0.2, 0.3, 0.4},
				Payload: map[string]any{
					vector.PayloadData:   "User prefers dark mode",
					vector.PayloadUserID: "u1",
				},
			}
			Expect(store.Insert(ctx, []vector.Record{rec})).To(Succeed())

			got, err := store.Get(ctx, "m1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Text()).To(Equal("User prefers dark mode"))
			Expect(got.Payload[vector.PayloadUserID]).To(Equal("u1"))
			Expect(got.Vector).To(HaveLen(4))
		})

		It("returns ErrNotFound for unknown ids", func() {
			_, err := store.Get(ctx, "missing")
			Expect(err).To(MatchError(vector.ErrNotFound))
		})

		It("does nothing when given no records", func() {
			Expect(store.Insert(ctx, nil)).To(Succeed())
		})
	})

	Describe("Update", func() {
		BeforeEach(func() {
			rec := vector.Record{
				ID:      "m1",
				Vector:  []float32{0.1, 0.1, 0.1, 0.1},
				Payload: map[string]any{vector.PayloadData: "before"},
			}
			Expect(store.Insert(ctx, []vector.Record{rec})).To(Succeed())
		})

		It("overwrites payload and embedding", func() {
			err := store.Update(ctx, vector.Record{
				ID:      "m1",
				Vector:  []float32{0.9, 0.9, 0.9, 0.9},
				Payload: map[string]any{vector.PayloadData: "after"},
			})
			Expect(err).NotTo(HaveOccurred())

			got, err := store.Get(ctx, "m1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Text()).To(Equal("after"))
			Expect(got.Vector[0]).To(BeNumerically("~", 0.9, 1e-5))
		})

		It("keeps the embedding when the update carries no vector", func() {
			err := store.Update(ctx, vector.Record{
				ID:      "m1",
				Payload: map[string]any{vector.PayloadData: "after"},
			})
			Expect(err).NotTo(HaveOccurred())

			got, err := store.Get(ctx, "m1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Vector[0]).To(BeNumerically("~", 0.1, 1e-5))
		})

		It("errors on unknown ids", func() {
			err := store.Update(ctx, vector.Record{ID: "missing"})
			Expect(err).To(MatchError(vector.ErrNotFound))
		})
	})

	Describe("Search", func() {
		BeforeEach(func() {
			recs := []vector.Record{
				{ID: "a", Vector: []float32{1, 0, 0, 0}, Payload: map[string]any{vector.PayloadData: "a", vector.PayloadUserID: "u1"}},
				{ID: "b", Vector: []float32{0.9, 0.1, 0, 0}, Payload: map[string]any{vector.PayloadData: "b", vector.PayloadUserID: "u1"}},
				{ID: "c", Vector: []float32{0, 0, 1, 0}, Payload: map[string]any{vector.PayloadData: "c", vector.PayloadUserID: "u2"}},
			}
			Expect(store.Insert(ctx, recs)).To(Succeed())
		})

		It("returns nearest records first", func() {
			hits, err := store.Search(ctx, "", []float32{1, 0, 0, 0}, 2, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(hits).To(HaveLen(2))
			Expect(hits[0].ID).To(Equal("a"))
			Expect(hits[1].ID).To(Equal("b"))
		})

		It("filters by payload values", func() {
			hits, err := store.Search(ctx, "", []float32{1, 0, 0, 0}, 10, vector.Filters{vector.PayloadUserID: "u2"})
			Expect(err).NotTo(HaveOccurred())
			Expect(hits).To(HaveLen(1))
			Expect(hits[0].ID).To(Equal("c"))
		})
	})

	Describe("Delete and Reset", func() {
		BeforeEach(func() {
			rec := vector.Record{
				ID:      "m1",
				Vector:  []float32{1, 0, 0, 0},
				Payload: map[string]any{vector.PayloadData: "x"},
			}
			Expect(store.Insert(ctx, []vector.Record{rec})).To(Succeed())
		})

		It("deletes a record", func() {
			Expect(store.Delete(ctx, "m1")).To(Succeed())
			_, err := store.Get(ctx, "m1")
			Expect(err).To(MatchError(vector.ErrNotFound))
		})

		It("errors when deleting unknown ids", func() {
			Expect(store.Delete(ctx, "missing")).To(MatchError(vector.ErrNotFound))
		})

		It("resets all records", func() {
			Expect(store.Reset(ctx)).To(Succeed())
			recs, err := store.List(ctx, nil, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(recs).To(BeEmpty())
		})
	})
})
