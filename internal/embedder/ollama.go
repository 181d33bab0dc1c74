package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ndev/ask-go/internal/logging"
)

// embedBatchSize bounds how many texts are sent per request burst. Batching
// exists purely to bound request payload cadence — it never changes the
// result set or its ordering.
const embedBatchSize = 100

// defaultEmbedTimeout is the per-request timeout when none is configured.
const defaultEmbedTimeout = 60 * time.Second

// OllamaEmbedder implements rag.Embedder against Ollama's legacy
// /api/embeddings endpoint: one POST {model, prompt} per input text.
// It is safe for concurrent use. No API key is required — Ollama runs
// locally.
type OllamaEmbedder struct {
	// endpoint is the fully qualified embeddings URL resolved from the host.
	endpoint string
	// model is the embedding model name (e.g. "nomic-embed-text").
	model string
	// client is the shared HTTP client carrying the configured timeout.
	client *http.Client
}

// OllamaConfig holds the settings for constructing an OllamaEmbedder.
// Environment lookup happens in the factory, never here.
type OllamaConfig struct {
	// Host is the Ollama server host. A bare "host:port" is promoted to
	// plain HTTP; a trailing slash is stripped.
	Host string
	// Model is the embedding model name (default: "nomic-embed-text").
	Model string
	// Timeout bounds each embedding request (default: 60s). On timeout the
	// call fails and propagates; no retry is attempted.
	Timeout time.Duration
}

// NewOllamaEmbedder constructs an OllamaEmbedder from the given config.
func NewOllamaEmbedder(cfg *OllamaConfig) *OllamaEmbedder {
	host := cfg.Host
	if host == "" {
		host = "http://127.0.0.1:11434"
	}
	model := cfg.Model
	if model == "" {
		model = defaultOllamaModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultEmbedTimeout
	}
	return &OllamaEmbedder{
		endpoint: normalizeEmbedEndpoint(host),
		model:    model,
		client:   &http.Client{Timeout: timeout},
	}
}

// normalizeEmbedEndpoint turns a configured base host into a fully qualified
// embeddings endpoint: scheme defaulted to plain HTTP, trailing slash
// stripped, /api/embeddings appended.
func normalizeEmbedEndpoint(host string) string {
	h := strings.TrimSpace(host)
	if !strings.HasPrefix(h, "http://") && !strings.HasPrefix(h, "https://") {
		h = "http://" + h
	}
	h = strings.TrimRight(h, "/")
	return h + "/api/embeddings"
}

// ollamaEmbedRequest is the JSON body sent per text to /api/embeddings.
type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// ollamaEmbedResponse covers the closed set of response shapes the endpoint
// is known to return: a top-level "embedding" array, or an OpenAI-style
// "data" array whose first element carries the embedding.
type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
	Data      []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error string `json:"error,omitempty"`
}

// vector resolves the embedding from whichever shape the response used.
// Returns false when neither shape yielded one.
func (r *ollamaEmbedResponse) vector() ([]float32, bool) {
	if len(r.Embedding) > 0 {
		return r.Embedding, true
	}
	if len(r.Data) > 0 && len(r.Data[0].Embedding) > 0 {
		return r.Data[0].Embedding, true
	}
	return nil, false
}

// Embed converts texts into embeddings, order preserved, one request per
// non-empty text in bursts of embedBatchSize.
//
// Any transport-level failure aborts the whole call — no partial results are
// returned for a failed batch. A text for which the service yields no
// parseable vector contributes no output entry, so the returned slice may be
// shorter than the input; the mismatch is logged, and callers zip
// positionally.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	attempted := 0

	for start := 0; start < len(texts); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		for _, text := range texts[start:end] {
			if text == "" {
				continue
			}
			attempted++
			vec, ok, err := e.embedOne(ctx, text)
			if err != nil {
				return nil, err
			}
			if ok {
				vectors = append(vectors, vec)
			}
		}
	}

	if len(vectors) < attempted {
		logging.FromContext(ctx).Warn("ollama embedder: some texts yielded no vector",
			slog.Int("texts", attempted), slog.Int("vectors", len(vectors)))
	}
	return vectors, nil
}

// embedOne performs a single embedding request. The bool result is false
// when the response carried no recognised vector shape.
func (e *OllamaEmbedder) embedOne(ctx context.Context, text string) ([]float32, bool, error) {
	payload, err := json.Marshal(ollamaEmbedRequest{Model: e.model, Prompt: text})
	if err != nil {
		return nil, false, fmt.Errorf("ollama embedder: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, false, fmt.Errorf("ollama embedder: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("ollama embedder: request failed: %w", err)
	}
	defer resp.Body.Close()

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, false, fmt.Errorf("ollama embedder: decode response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if result.Error != "" {
			msg = result.Error
		}
		return nil, false, fmt.Errorf("ollama embedder: %s", msg)
	}

	vec, ok := result.vector()
	return vec, ok, nil
}
