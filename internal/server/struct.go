package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ndev/ask-go/internal/agent"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// AskTimeout bounds a single /api/ask request end to end, including the
	// agent's tool calls and LLM streaming. Defaults to 5 minutes if zero.
	AskTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on POST /api/ask.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// MetricsRegistry receives the server's Prometheus metrics. If nil, a
	// fresh private registry is created so tests stay hermetic.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs the GET /metrics endpoint. Must correspond to
	// MetricsRegistry; defaults to the same private registry when nil.
	MetricsGatherer prometheus.Gatherer
}

// querier is the interface handleAsk calls to stream an answer.
// *agent.CodebaseAgent satisfies it; tests inject a fake.
type querier interface {
	// Query streams the agent's answer for userMessage to w.
	Query(ctx context.Context, userMessage, workspaceDir string, w io.Writer) error
}

// Server is the HTTP server that wraps the CodebaseAgent.
type Server struct {
	// agent is the codebase agent that answers all questions.
	agent *agent.CodebaseAgent
	// querier is the interface used by handleAsk; set to agent in production,
	// overridden by a fake in tests.
	querier querier
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus instruments owned by this server instance.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// askRequest is the JSON body for POST /api/ask.
type askRequest struct {
	// Question is the user's natural language question about the codebase.
	Question string `json:"question"`
	// WorkspaceDir is the workspace to answer questions about. Must be an
	// absolute path when set; defaults to the server's configured workspace.
	WorkspaceDir string `json:"workspaceDir"`
}
