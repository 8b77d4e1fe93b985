package lifecycle_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/parchmentco/engram/pkg/lifecycle"
	"github.com/parchmentco/engram/pkg/pulse"
	"github.com/parchmentco/engram/pkg/vector"
	"github.com/parchmentco/engram/pkg/vector/memvec"
)

var _ = Describe("StoreHook", func() {
	var (
		store  *memvec.Store
		buffer *pulse.ResonanceBuffer
		hook   *lifecycle.StoreHook
		ctx    context.Context
	)

	BeforeEach(func() {
		store = memvec.NewStore(zap.NewNop())
		buffer = pulse.NewResonanceBuffer(5)
		hook = lifecycle.NewStoreHook(store, nil, buffer, zap.NewNop())
		ctx = context.Background()

		Expect(store.Insert(ctx, []vector.Record{{
			ID:     "m1",
			Vector: []float32{1, 0, 0},
			Payload: map[string]any{
				vector.PayloadData:       "Alice likes tennis",
				vector.PayloadUserID:     "u1",
				vector.PayloadImportance: 0.5,
			},
		}})).To(Succeed())
	})

	Describe("Reinforce", func() {
		It("boosts importance and increments the counter", func() {
			Expect(hook.Reinforce(ctx, "m1")).To(Succeed())

			rec, err := store.Get(ctx, "m1")
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Payload[vector.PayloadImportance]).To(BeNumerically("~", 0.6, 1e-9))
			Expect(rec.Payload[vector.PayloadReinforceCount]).To(Equal(1))
			Expect(rec.Payload[vector.PayloadLastAccessedAt]).NotTo(BeEmpty())
		})

		It("clamps importance at 1.0", func() {
			for i := 0; i < 10; i++ {
				Expect(hook.Reinforce(ctx, "m1")).To(Succeed())
			}

			rec, err := store.Get(ctx, "m1")
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Payload[vector.PayloadImportance]).To(BeNumerically("<=", 1.0))
			Expect(rec.Payload[vector.PayloadReinforceCount]).To(Equal(10))
		})

		It("feeds the resonance buffer", func() {
			Expect(hook.Reinforce(ctx, "m1")).To(Succeed())

			recent := buffer.Recent()
			Expect(recent).To(HaveLen(1))
			Expect(recent[0].EventType).To(Equal(pulse.EventTypeReinforced))
			Expect(recent[0].MemoryID).To(Equal("m1"))
			Expect(recent[0].Text).To(Equal("Alice likes tennis"))
			Expect(recent[0].Source.UserID).To(Equal("u1"))
		})

		It("errors on unknown records", func() {
			Expect(hook.Reinforce(ctx, "missing")).To(MatchError(vector.ErrNotFound))
		})
	})

	Describe("SetImportance", func() {
		It("writes a clamped score", func() {
			Expect(hook.SetImportance(ctx, "m1", 1.7)).To(Succeed())

			rec, err := store.Get(ctx, "m1")
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Payload[vector.PayloadImportance]).To(BeNumerically("==", 1.0))

			Expect(hook.SetImportance(ctx, "m1", -0.2)).To(Succeed())
			rec, err = store.Get(ctx, "m1")
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Payload[vector.PayloadImportance]).To(BeNumerically("==", 0.0))
		})
	})
})
