package recollect_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/parchmentco/engram/pkg/recollect"
)

func ptr(v float64) *float64 { return &v }

var _ = Describe("Ranker", func() {
	var ranker *recollect.Ranker

	BeforeEach(func() {
		var err error
		ranker, err = recollect.NewRanker(recollect.DefaultWeights(), zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewRanker", func() {
		It("rejects weights that do not sum to 1.0", func() {
			_, err := recollect.NewRanker(recollect.Weights{
				Similarity: 0.5,
				Importance: 0.5,
				Recency:    0.5,
			}, zap.NewNop())
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Rank", func() {
		It("scores a perfect candidate at exactly 1.0", func() {
			now := time.Now().UTC().Format(time.RFC3339)
			ranked := ranker.Rank([]recollect.Candidate{{
				ID:         "m1",
				Similarity: ptr(1.0),
				Importance: ptr(1.0),
				CreatedAt:  now,
			}}, 0)

			Expect(ranked).To(HaveLen(1))
			Expect(ranked[0].Score).To(BeNumerically("==", 1.0))
		})

		It("defaults missing similarity to 0.5 and importance to 1.0", func() {
			ranked := ranker.Rank([]recollect.Candidate{{ID: "m1"}}, 0)

			Expect(ranked[0].Similarity).To(BeNumerically("==", 0.5))
			Expect(ranked[0].Importance).To(BeNumerically("==", 1.0))
			Expect(ranked[0].Recency).To(BeNumerically("==", 0.5))
			// 0.5*0.5 + 0.3*1.0 + 0.2*0.5
			Expect(ranked[0].Score).To(BeNumerically("==", 0.65))
		})

		It("decays recency to about 0.5 at thirty days", func() {
			createdAt := time.Now().UTC().AddDate(0, 0, -30).Format(time.RFC3339)
			ranked := ranker.Rank([]recollect.Candidate{{ID: "m1", CreatedAt: createdAt}}, 0)

			Expect(ranked[0].Recency).To(BeNumerically("~", 0.5, 0.001))
		})

		It("uses the default recency for unparseable timestamps", func() {
			ranked := ranker.Rank([]recollect.Candidate{{ID: "m1", CreatedAt: "yesterday-ish"}}, 0)
			Expect(ranked[0].Recency).To(BeNumerically("==", 0.5))
		})

		It("orders by blended score descending", func() {
			now := time.Now().UTC().Format(time.RFC3339)
			ranked := ranker.Rank([]recollect.Candidate{
				{ID: "a", Similarity: ptr(0.9), Importance: ptr(1.0), CreatedAt: now},
				{ID: "b", Similarity: ptr(0.95), Importance: ptr(0.5), CreatedAt: now},
				{ID: "c", Similarity: ptr(0.2), Importance: ptr(1.0), CreatedAt: now},
			}, 0)

			// a: 0.5*0.9 + 0.3*1.0 + 0.2*1.0 = 0.95
			// b: 0.5*0.95 + 0.3*0.5 + 0.2*1.0 = 0.825
			// c: 0.5*0.2 + 0.3*1.0 + 0.2*1.0 = 0.6
			Expect(ranked[0].ID).To(Equal("a"))
			Expect(ranked[0].Score).To(BeNumerically("==", 0.95))
			Expect(ranked[1].ID).To(Equal("b"))
			Expect(ranked[1].Score).To(BeNumerically("==", 0.825))
			Expect(ranked[2].ID).To(Equal("c"))
			Expect(ranked[2].Score).To(BeNumerically("==", 0.6))

			// A higher-importance candidate outranks a slightly more similar
			// one when the importance gap outweighs the similarity gap.
			Expect(ranked[0].Score).To(BeNumerically(">", ranked[1].Score))
		})

		It("keeps input order on ties", func() {
			ranked := ranker.Rank([]recollect.Candidate{
				{ID: "first", Similarity: ptr(0.8)},
				{ID: "second", Similarity: ptr(0.8)},
			}, 0)

			Expect(ranked[0].ID).To(Equal("first"))
			Expect(ranked[1].ID).To(Equal("second"))
		})

		It("is idempotent on an already-sorted list", func() {
			input := []recollect.Candidate{
				{ID: "a", Similarity: ptr(0.9)},
				{ID: "b", Similarity: ptr(0.5)},
				{ID: "c", Similarity: ptr(0.1)},
			}

			once := ranker.Rank(input, len(input))
			Expect(once[0].ID).To(Equal("a"))
			Expect(once[1].ID).To(Equal("b"))
			Expect(once[2].ID).To(Equal("c"))
		})

		It("truncates to the limit", func() {
			ranked := ranker.Rank([]recollect.Candidate{
				{ID: "a", Similarity: ptr(0.9)},
				{ID: "b", Similarity: ptr(0.5)},
			}, 1)

			Expect(ranked).To(HaveLen(1))
			Expect(ranked[0].ID).To(Equal("a"))
		})

		It("rounds the score to four decimals", func() {
			ranked := ranker.Rank([]recollect.Candidate{
				{ID: "a", Similarity: ptr(1.0 / 3.0), Importance: ptr(1.0 / 3.0)},
			}, 0)

			// 0.5/3 + 0.3/3 + 0.2*0.5 rounded
			Expect(ranked[0].Score).To(BeNumerically("==", 0.3667))
		})
	})
})
