// Package embed provides a text embedding interface and a remote API
// implementation with batching, retry, and rate limiting.
//
// An Embedder converts text into dense vector representations suitable for
// similarity search. The [OpenAI] implementation talks to the OpenAI
// embeddings API (or any OpenAI-compatible provider via WithBaseURL) and
// retries transient failures under an injectable [Policy].
package embed

import (
	"context"
	"errors"
)

// Embedder converts text into dense float32 vectors.
type Embedder interface {
	// Embed returns the embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns embedding vectors for multiple texts, preserving
	// input order 1:1. Implementations may split large batches into several
	// API calls transparently.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the dimensionality of the output vectors.
	Dimension() int
}

// Common errors.
var (
	// ErrEmptyInput is returned when the input text is empty.
	ErrEmptyInput = errors.New("embed: empty input")
)
