package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Provider configuration
const (
	ProviderJina   = "jina"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderLocal  = "local"

	// Default models
	DefaultJinaModel   = "jina-embeddings-v3"
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultOllamaModel = "all-minilm"
	DefaultLocalModel  = "local-hashed-features"

	// Default endpoints
	DefaultJinaURL   = "https://api.jina.ai/v1"
	DefaultOpenAIURL = "https://api.openai.com/v1"
	DefaultOllamaURL = "http://localhost:11434"

	// Environment fallbacks for API keys
	EnvJinaAPIKey   = "JINA_API_KEY"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"

	// Batch limits
	MaxBatchSize = 100

	// Retry configuration
	MaxRetries        = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0
)

// RemoteProvider implements Embedder against an OpenAI-compatible
// /embeddings endpoint. Both OpenAI and Jina speak this format and accept a
// "dimensions" field, which pins the output width to Dimension.
type RemoteProvider struct {
	name       string
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	cache      *Cache
	retry      RetryConfig
}

// NewJinaProvider creates a Jina AI embedder. Empty baseURL and model select the defaults.
func NewJinaProvider(apiKey, baseURL, model string, cache *Cache) (*RemoteProvider, error) {
	return newRemoteProvider(ProviderJina, apiKey, EnvJinaAPIKey, baseURL, DefaultJinaURL, model, DefaultJinaModel, cache)
}

// NewOpenAIProvider creates an OpenAI embedder. Empty baseURL and model select the defaults.
func NewOpenAIProvider(apiKey, baseURL, model string, cache *Cache) (*RemoteProvider, error) {
	return newRemoteProvider(ProviderOpenAI, apiKey, EnvOpenAIAPIKey, baseURL, DefaultOpenAIURL, model, DefaultOpenAIModel, cache)
}

func newRemoteProvider(name, apiKey, keyEnv, baseURL, defaultURL, model, defaultModel string, cache *Cache) (*RemoteProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, keyEnv)
	}
	if baseURL == "" {
		baseURL = defaultURL
	}
	if model == "" {
		model = defaultModel
	}
	return &RemoteProvider{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache: cache,
		retry: DefaultRetryConfig(),
	}, nil
}

func (p *RemoteProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return embedCached(ctx, p.cache, texts, p.fetch)
}

func (p *RemoteProvider) fetch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += MaxBatchSize {
		end := min(start+MaxBatchSize, len(texts))
		batch := texts[start:end]

		vectors, err := retryWithBackoff(ctx, p.retry, func() ([][]float32, error) {
			return p.callAPI(ctx, batch)
		})
		if err != nil {
			return nil, fmt.Errorf("%w after %d retries: %v", ErrProviderFailed, p.retry.MaxRetries, err)
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (p *RemoteProvider) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := map[string]interface{}{
		"input":      texts,
		"model":      p.model,
		"dimensions": Dimension,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &statusError{Code: resp.StatusCode, Body: string(bodyBytes)}
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(apiResp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(apiResp.Data))
	}

	// The API may return entries out of order; index is authoritative.
	vectors := make([][]float32, len(texts))
	for _, data := range apiResp.Data {
		if data.Index < 0 || data.Index >= len(texts) {
			return nil, fmt.Errorf("embedding index %d out of range", data.Index)
		}
		vectors[data.Index] = data.Embedding
	}
	return vectors, nil
}

func (p *RemoteProvider) Dimension() int {
	return Dimension
}

func (p *RemoteProvider) Provider() string {
	return p.name
}

func (p *RemoteProvider) Model() string {
	return p.model
}

func (p *RemoteProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}
