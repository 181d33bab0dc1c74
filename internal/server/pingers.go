package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/qdrant/go-client/qdrant"
)

// OllamaPinger probes an Ollama instance with a plain HTTP GET against its
// root endpoint. This is free — no model is loaded and no tokens are consumed —
// which makes it safe to call on every readiness probe. It covers both the
// chat model and the embedding model when they share a host.
type OllamaPinger struct {
	// host is the base URL of the Ollama server (e.g. "http://localhost:11434").
	host string
	// client is the HTTP client used for probes.
	client *http.Client
}

// NewOllamaPinger constructs an OllamaPinger for the given host URL.
func NewOllamaPinger(host string) *OllamaPinger {
	host = strings.TrimRight(host, "/")
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return &OllamaPinger{
		host:   host,
		client: &http.Client{Timeout: probeTimeout},
	}
}

// Name returns the dependency label used in readiness responses.
func (p *OllamaPinger) Name() string { return "ollama" }

// Ping sends a GET to the Ollama root endpoint and expects a 2xx response.
func (p *OllamaPinger) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.host+"/", nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// EmbeddingPinger probes an HTTP embedding endpoint (OpenAI-compatible or
// otherwise) by requesting its base URL. A 401 or 404 still proves the
// service is reachable, so only transport failures count as unhealthy.
type EmbeddingPinger struct {
	// endpoint is the base URL of the embedding service.
	endpoint string
	// client is the HTTP client used for probes.
	client *http.Client
}

// NewEmbeddingPinger constructs an EmbeddingPinger for the given endpoint URL.
func NewEmbeddingPinger(endpoint string) *EmbeddingPinger {
	return &EmbeddingPinger{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{Timeout: probeTimeout},
	}
}

// Name returns the dependency label used in readiness responses.
func (p *EmbeddingPinger) Name() string { return "embeddings" }

// Ping checks TCP/TLS reachability of the embedding endpoint. Any HTTP
// response — including auth challenges — counts as reachable.
func (p *EmbeddingPinger) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("unreachable: %w", err)
	}
	resp.Body.Close()
	return nil
}

// QdrantPinger probes a Qdrant instance using its native HealthCheck RPC.
// It satisfies the Pinger interface and is used by GET /api/ready.
type QdrantPinger struct {
	// client is the Qdrant gRPC client to probe.
	client *qdrant.Client
}

// NewQdrantPinger constructs a QdrantPinger for the given Qdrant client.
func NewQdrantPinger(client *qdrant.Client) *QdrantPinger {
	return &QdrantPinger{client: client}
}

// Name returns the dependency label used in readiness responses.
func (p *QdrantPinger) Name() string { return "qdrant" }

// Ping calls the Qdrant HealthCheck RPC.
// Returns nil if Qdrant is reachable, or a descriptive error otherwise.
func (p *QdrantPinger) Ping(ctx context.Context) error {
	_, err := p.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}
