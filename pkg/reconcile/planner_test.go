package reconcile_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/parchmentco/engram/pkg/reasoner/mock"
	"github.com/parchmentco/engram/pkg/reconcile"
	"github.com/parchmentco/engram/pkg/surprise"
)

var _ = Describe("Planner", func() {
	var (
		r       *mock.Reasoner
		planner *reconcile.Planner
		ctx     context.Context
	)

	BeforeEach(func() {
		r = mock.NewReasoner()
		planner = reconcile.NewPlanner(r, zap.NewNop())
		ctx = context.Background()
	})

	It("returns no actions for no candidates without calling the reasoner", func() {
		Expect(planner.Plan(ctx, nil, nil)).To(BeEmpty())
		Expect(r.CallCount()).To(BeZero())
	})

	Describe("ADD decisions", func() {
		It("creates a record for a surprising fact", func() {
			r.Responses = []string{`{"memory": [{"event": "ADD", "text": "Alice likes tennis"}]}`}

			actions := planner.Plan(ctx, []reconcile.Candidate{{
				Text:       "Alice likes tennis",
				Assessment: surprise.Assessment{IsSurprising: true},
			}}, nil)

			Expect(actions).To(HaveLen(1))
			Expect(actions[0].Op).To(Equal(reconcile.OpAdd))
			Expect(actions[0].Text).To(Equal("Alice likes tennis"))
			Expect(actions[0].Flashbulb).To(BeFalse())
		})

		It("reinforces the best match instead of duplicating a known fact", func() {
			r.Responses = []string{`{"memory": [{"event": "ADD", "text": "Alice likes tennis"}]}`}

			actions := planner.Plan(ctx, []reconcile.Candidate{{
				Text: "Alice likes tennis",
				Assessment: surprise.Assessment{
					IsSurprising:  false,
					BestMatchID:   "m1",
					MaxSimilarity: 0.97,
				},
			}}, []reconcile.Existing{{ID: "m1", Text: "Alice likes tennis"}})

			Expect(actions).To(HaveLen(1))
			Expect(actions[0].Op).To(Equal(reconcile.OpReinforce))
			Expect(actions[0].ID).To(Equal("m1"))
		})

		It("tags flashbulb novelty on the created record", func() {
			r.Responses = []string{`{"memory": [{"event": "ADD", "text": "The house burned down"}]}`}

			actions := planner.Plan(ctx, []reconcile.Candidate{{
				Text:       "The house burned down",
				Assessment: surprise.Assessment{IsSurprising: true, IsFlashbulb: true},
			}}, nil)

			Expect(actions).To(HaveLen(1))
			Expect(actions[0].Flashbulb).To(BeTrue())
		})

		It("prefers reinforcement over flashbulb tagging when not surprising", func() {
			r.Responses = []string{`{"memory": [{"event": "ADD", "text": "Alice likes tennis"}]}`}

			actions := planner.Plan(ctx, []reconcile.Candidate{{
				Text: "Alice likes tennis",
				Assessment: surprise.Assessment{
					IsSurprising: false,
					IsFlashbulb:  true,
					BestMatchID:  "m1",
				},
			}}, []reconcile.Existing{{ID: "m1", Text: "Alice likes tennis"}})

			Expect(actions).To(HaveLen(1))
			Expect(actions[0].Op).To(Equal(reconcile.OpReinforce))
		})

		It("skips ADD decisions without text", func() {
			r.Responses = []string{`{"memory": [{"event": "ADD", "text": "  "}]}`}

			actions := planner.Plan(ctx, []reconcile.Candidate{{
				Text:       "Alice likes tennis",
				Assessment: surprise.Assessment{IsSurprising: true},
			}}, nil)

			Expect(actions).To(BeEmpty())
		})
	})

	Describe("UPDATE decisions", func() {
		It("resolves temp ids back to real ids", func() {
			r.Responses = []string{`{"memory": [{"id": "0", "event": "UPDATE", "text": "Alice prefers padel now", "old_memory": "Alice likes tennis"}]}`}

			actions := planner.Plan(ctx, []reconcile.Candidate{{
				Text:       "Alice prefers padel now",
				Assessment: surprise.Assessment{IsSurprising: true},
			}}, []reconcile.Existing{{ID: "m7", Text: "Alice likes tennis"}})

			Expect(actions).To(HaveLen(1))
			Expect(actions[0].Op).To(Equal(reconcile.OpUpdate))
			Expect(actions[0].ID).To(Equal("m7"))
			Expect(actions[0].Text).To(Equal("Alice prefers padel now"))
			Expect(actions[0].PreviousText).To(Equal("Alice likes tennis"))
		})

		It("skips updates against hallucinated ids", func() {
			r.Responses = []string{`{"memory": [{"id": "99", "event": "UPDATE", "text": "whatever"}]}`}

			actions := planner.Plan(ctx, []reconcile.Candidate{{
				Text:       "whatever",
				Assessment: surprise.Assessment{IsSurprising: true},
			}}, []reconcile.Existing{{ID: "m7", Text: "Alice likes tennis"}})

			Expect(actions).To(BeEmpty())
		})
	})

	Describe("DELETE decisions", func() {
		It("tombstones resolved records and records the removed text", func() {
			r.Responses = []string{`{"memory": [{"id": "0", "event": "DELETE", "text": "Alice likes tennis"}]}`}

			actions := planner.Plan(ctx, []reconcile.Candidate{{
				Text:       "Alice stopped playing tennis",
				Assessment: surprise.Assessment{IsSurprising: true},
			}}, []reconcile.Existing{{ID: "m7", Text: "Alice likes tennis"}})

			Expect(actions).To(HaveLen(1))
			Expect(actions[0].Op).To(Equal(reconcile.OpDelete))
			Expect(actions[0].ID).To(Equal("m7"))
			Expect(actions[0].PreviousText).To(Equal("Alice likes tennis"))
		})
	})

	Describe("batch degradation", func() {
		It("applies no actions when the reasoner fails", func() {
			r.Err = errors.New("model offline")

			actions := planner.Plan(ctx, []reconcile.Candidate{{
				Text:       "Alice likes tennis",
				Assessment: surprise.Assessment{IsSurprising: true},
			}}, nil)

			Expect(actions).To(BeEmpty())
		})

		It("applies no actions for unusable responses", func() {
			r.Responses = []string{"I think these facts look fine."}

			actions := planner.Plan(ctx, []reconcile.Candidate{{
				Text:       "Alice likes tennis",
				Assessment: surprise.Assessment{IsSurprising: true},
			}}, nil)

			Expect(actions).To(BeEmpty())
		})

		It("skips malformed entries without aborting the rest", func() {
			r.Responses = []string{`{"memory": [
				{"event": "EXPLODE", "text": "bad"},
				{"event": "ADD", "text": "Alice likes tennis"}
			]}`}

			actions := planner.Plan(ctx, []reconcile.Candidate{{
				Text:       "Alice likes tennis",
				Assessment: surprise.Assessment{IsSurprising: true},
			}}, nil)

			Expect(actions).To(HaveLen(1))
			Expect(actions[0].Op).To(Equal(reconcile.OpAdd))
		})
	})
})
