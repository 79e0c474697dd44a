// Package embedder turns short text prompts into 384-dimension vectors.
//
// # Providers
//
//   - local: offline feature hashing (default, no network)
//   - ollama: a local Ollama server running a 384-dimension model such as all-minilm
//   - openai / jina: OpenAI-compatible /embeddings endpoints, asked for 384 dimensions
//
// New builds a provider from Config. Every provider validates that the
// returned vectors have exactly Dimension entries.
//
// # Caching
//
// Providers share an LRU cache keyed by the SHA-256 of the text. The ranker
// embeds the whole input string on every keystroke, so repeated inputs and
// backspacing hit the cache instead of the model.
//
// # Serialized Access
//
// Gate wraps an Embedder that must not be called concurrently:
//
//	gate := embedder.NewGate(e)
//	vecs, err := gate.Embed(ctx, prompts)               // background work, queued fairly
//	q, err := gate.EmbedPriority(ctx, []string{input})  // interactive query, skips the queue
//
// # Retries
//
// HTTP providers retry transport failures, 429 and 5xx responses with
// exponential backoff (3 attempts, 100ms doubling up to 5s). Other client
// errors fail immediately.
package embedder
