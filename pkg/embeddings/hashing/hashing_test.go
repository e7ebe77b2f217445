package hashing_test

import (
	"context"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/engram/pkg/embeddings/hashing"
)

func norm(vec []float32) float64 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

var _ = Describe("Embedder", func() {
	var (
		embedder *hashing.Embedder
		ctx      context.Context
	)

	BeforeEach(func() {
		embedder = hashing.NewEmbedder(hashing.Config{})
		ctx = context.Background()
	})

	Describe("NewEmbedder", func() {
		It("defaults to 512 dimensions", func() {
			Expect(embedder.Dimensions()).To(Equal(512))
		})

		It("accepts a custom dimension", func() {
			e := hashing.NewEmbedder(hashing.Config{Dimensions: 64})
			vec, err := e.Embed(ctx, "hello world")
			Expect(err).NotTo(HaveOccurred())
			Expect(vec).To(HaveLen(64))
		})
	})

	Describe("Embed", func() {
		It("is deterministic for identical input", func() {
			a, err := embedder.Embed(ctx, "the quick brown fox")
			Expect(err).NotTo(HaveOccurred())
			b, err := embedder.Embed(ctx, "the quick brown fox")
			Expect(err).NotTo(HaveOccurred())
			Expect(a).To(Equal(b))
		})

		It("returns a unit-length vector for text with tokens", func() {
			vec, err := embedder.Embed(ctx, "apple banana cherry")
			Expect(err).NotTo(HaveOccurred())
			Expect(norm(vec)).To(BeNumerically("~", 1.0, 1e-6))
		})

		It("returns the zero vector for empty text", func() {
			vec, err := embedder.Embed(ctx, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(vec).To(HaveLen(512))
			Expect(norm(vec)).To(BeZero())
		})

		It("returns the zero vector when no token survives filtering", func() {
			vec, err := embedder.Embed(ctx, "!!! a b 1 ?")
			Expect(err).NotTo(HaveOccurred())
			Expect(norm(vec)).To(BeZero())
		})

		It("counts repeated tokens into the same bucket", func() {
			single, err := embedder.Embed(ctx, "apple")
			Expect(err).NotTo(HaveOccurred())
			repeated, err := embedder.Embed(ctx, "apple apple apple")
			Expect(err).NotTo(HaveOccurred())

			// Both normalize to the same unit vector.
			Expect(repeated).To(Equal(single))
		})

		It("ignores case and punctuation", func() {
			a, err := embedder.Embed(ctx, "Hello, World!")
			Expect(err).NotTo(HaveOccurred())
			b, err := embedder.Embed(ctx, "hello world")
			Expect(err).NotTo(HaveOccurred())
			Expect(a).To(Equal(b))
		})

		It("produces only non-negative components", func() {
			vec, err := embedder.Embed(ctx, "some text with several words")
			Expect(err).NotTo(HaveOccurred())
			for _, v := range vec {
				Expect(v).To(BeNumerically(">=", 0))
			}
		})
	})

	Describe("Tokenize", func() {
		It("lowercases and splits on non-alphanumeric runs", func() {
			Expect(hashing.Tokenize("Hello,   WORLD--foo_bar")).To(Equal([]string{"hello", "world", "foo", "bar"}))
		})

		It("drops tokens of length one", func() {
			Expect(hashing.Tokenize("a bc d ef 1 23")).To(Equal([]string{"bc", "ef", "23"}))
		})

		It("returns nil for empty input", func() {
			Expect(hashing.Tokenize("")).To(BeNil())
		})

		It("returns nil when everything is filtered", func() {
			Expect(hashing.Tokenize("! @ # $")).To(BeNil())
		})
	})
})
