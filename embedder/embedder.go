// Package embedder turns code chunks into vectors. Providers are
// interchangeable behind the Embedder interface and are constructed
// through functional options plus a config-driven factory.
package embedder

import "context"

// Embedder converts text into fixed-dimension embedding vectors.
//
// EmbedBatch returns one row per input in the same order. A row may be
// nil when that single input could not be embedded; callers must skip
// nil rows rather than substitute zero vectors, which would pollute
// similarity search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
