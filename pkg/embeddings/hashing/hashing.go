// Package hashing implements pkg/embeddings' Embedder using the hashing trick:
// tokens are counted into buckets selected by a SHA-1 digest and the resulting
// histogram is L2-normalized. The embedding is fully deterministic, requires no
// model download or network call, and is cheap enough to recompute on every
// write. It captures token overlap only — that is the intended behavior for
// lightweight keyword-style recall, not a stand-in for a real model.
package hashing

import (
	"context"
	"crypto/sha1"
	"encoding/binary"
	"math"
	"strings"
)

// DefaultDimensions is the embedding vector length used when none is configured.
const DefaultDimensions = 512

// Embedder maps text to fixed-length unit vectors via hashed token counts.
type Embedder struct {
	dimensions int
}

// Config holds configuration for the hashing embedder.
type Config struct {
	// Dimensions is the embedding vector length.
	// Defaults to DefaultDimensions if zero.
	Dimensions int
}

// NewEmbedder creates a hashing embedder.
func NewEmbedder(cfg Config) *Embedder {
	dimensions := cfg.Dimensions
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}

	return &Embedder{dimensions: dimensions}
}

// Dimensions returns the configured vector length.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// Embed converts text into a unit-length vector of hashed token counts.
// Text with no surviving tokens embeds to the zero vector. Embed is a pure
// function of (text, dimensions) and never fails.
func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dimensions)

	for _, token := range Tokenize(text) {
		vec[e.bucket(token)]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)

	if norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}

	return vec, nil
}

// Close is a no-op for the hashing embedder.
func (e *Embedder) Close() error {
	return nil
}

// bucket maps a token to a vector index: the first 32 bits of the token's
// SHA-1 digest, big-endian, modulo the vector length. Distinct tokens may
// collide; the hashing trick accepts that.
func (e *Embedder) bucket(token string) int {
	sum := sha1.Sum([]byte(token))
	return int(binary.BigEndian.Uint32(sum[:4]) % uint32(e.dimensions))
}

// Tokenize lowercases text, collapses every run of characters outside [a-z0-9]
// into a single space, splits on whitespace, and drops tokens of length <= 1.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}

	lowered := strings.ToLower(text)

	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}

	fields := strings.Fields(b.String())
	tokens := fields[:0]
	for _, f := range fields {
		if len(f) > 1 {
			tokens = append(tokens, f)
		}
	}

	if len(tokens) == 0 {
		return nil
	}

	return tokens
}
