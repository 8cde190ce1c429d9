package embedder

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const defaultLocalDimensions = 256

// LocalEmbedder produces deterministic embeddings without any external
// service: tokens are hashed into a fixed number of buckets and the
// resulting vector is L2-normalized. Quality is far below a real
// model, but identical input always yields an identical vector, which
// makes it the provider of choice for tests and offline smoke runs.
type LocalEmbedder struct {
	dimensions int
}

type LocalOption func(*LocalEmbedder)

func WithLocalDimensions(dimensions int) LocalOption {
	return func(e *LocalEmbedder) {
		if dimensions > 0 {
			e.dimensions = dimensions
		}
	}
}

func NewLocalEmbedder(opts ...LocalOption) *LocalEmbedder {
	e := &LocalEmbedder{dimensions: defaultLocalDimensions}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *LocalEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dimensions)

	for _, token := range tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(token))
		bucket := int(h.Sum32()) % e.dimensions
		if bucket < 0 {
			bucket += e.dimensions
		}
		vec[bucket]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}

	return vec, nil
}

func (e *LocalEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = vec
	}
	return embeddings, nil
}

func (e *LocalEmbedder) Dimensions() int {
	return e.dimensions
}

func (e *LocalEmbedder) Close() error {
	return nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
