package cached_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/parchmentco/engram/pkg/embeddings"
	"github.com/parchmentco/engram/pkg/embeddings/cached"
	"github.com/parchmentco/engram/pkg/embeddings/mock"
)

var _ = Describe("Embedder", func() {
	var (
		inner    *mock.Embedder
		embedder *cached.Embedder
		ctx      context.Context
	)

	BeforeEach(func() {
		inner = mock.NewEmbedder()
		var err error
		embedder, err = cached.NewEmbedder(inner, cached.Config{}, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
		ctx = context.Background()
	})

	AfterEach(func() {
		Expect(embedder.Close()).To(Succeed())
	})

	It("implements embeddings.Embedder", func() {
		var _ embeddings.Embedder = (*cached.Embedder)(nil)
	})

	It("delegates to the wrapped embedder", func() {
		inner.Embeddings["hello"] = []float32{1, 2, 3}

		vec, err := embedder.Embed(ctx, "hello", embeddings.ModeAdd)
		Expect(err).NotTo(HaveOccurred())
		Expect(vec).To(Equal([]float32{1, 2, 3}))
		Expect(inner.Calls).To(ContainElement("hello"))
	})

	It("returns stable embeddings across repeated calls", func() {
		first, err := embedder.Embed(ctx, "repeat", embeddings.ModeSearch)
		Expect(err).NotTo(HaveOccurred())

		second, err := embedder.Embed(ctx, "repeat", embeddings.ModeSearch)
		Expect(err).NotTo(HaveOccurred())
		Expect(second).To(Equal(first))
	})

	It("propagates errors without caching them", func() {
		inner.FailOn = "bad"

		_, err := embedder.Embed(ctx, "bad", embeddings.ModeAdd)
		Expect(err).To(MatchError(embeddings.ErrEmbedding))

		inner.FailOn = ""
		_, err = embedder.Embed(ctx, "bad", embeddings.ModeAdd)
		Expect(err).NotTo(HaveOccurred())
	})
})
