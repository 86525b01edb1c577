package embed

import (
	"net/http"

	"golang.org/x/time/rate"
)

// config holds shared configuration for embedder implementations.
type config struct {
	model      string
	dim        int
	baseURL    string
	httpClient *http.Client
	policy     Policy
	limiter    *rate.Limiter
	normalize  bool
}

// Option configures an embedder.
type Option func(*config)

// WithModel sets the embedding model name.
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithDimension sets the desired output vector dimensionality.
func WithDimension(dim int) Option {
	return func(c *config) { c.dim = dim }
}

// WithBaseURL overrides the API base URL, e.g. for OpenAI-compatible
// providers or test servers.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) { c.httpClient = client }
}

// WithRetryPolicy replaces the retry policy for transient API failures.
func WithRetryPolicy(p Policy) Option {
	return func(c *config) { c.policy = p }
}

// WithRateLimiter throttles API calls. Pass nil to disable throttling.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(c *config) { c.limiter = l }
}

// WithNormalize controls L2 normalization of returned vectors. Enabled by
// default so that inner-product search behaves like cosine similarity;
// consumers must not re-normalize.
func WithNormalize(normalize bool) Option {
	return func(c *config) { c.normalize = normalize }
}
