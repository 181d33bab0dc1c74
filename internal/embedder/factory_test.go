package embedder

import (
	"testing"
)

// clearEmbedderEnv unsets every variable the factory reads so each test
// starts from a clean environment. t.Setenv's cleanup restores the originals.
func clearEmbedderEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"EMBEDDING_PROVIDER", "MODEL_PROVIDER", "EMBEDDING_MODEL",
		"EMBEDDING_API_KEY", "EMBEDDING_ENDPOINT", "EMBEDDING_DIMENSIONS",
		"EMBEDDING_TIMEOUT", "OLLAMA_HOST", "OPENAI_API_KEY",
		"AZURE_OPENAI_API_KEY", "AZURE_OPENAI_ENDPOINT",
	} {
		t.Setenv(key, "")
	}
}

func TestNewFromEnv_DefaultsToOllama(t *testing.T) {
	clearEmbedderEnv(t)

	emb, err := NewFromEnv()
	if err != nil {
		t.Fatalf("NewFromEnv: %v", err)
	}
	if _, ok := emb.(*OllamaEmbedder); !ok {
		t.Errorf("expected *OllamaEmbedder, got %T", emb)
	}
}

func TestNewFromEnv_InheritsModelProvider(t *testing.T) {
	clearEmbedderEnv(t)
	t.Setenv("MODEL_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	emb, err := NewFromEnv()
	if err != nil {
		t.Fatalf("NewFromEnv: %v", err)
	}
	if _, ok := emb.(*OpenAIEmbedder); !ok {
		t.Errorf("expected *OpenAIEmbedder, got %T", emb)
	}
}

func TestNewFromEnv_EmbeddingProviderOverrides(t *testing.T) {
	clearEmbedderEnv(t)
	t.Setenv("MODEL_PROVIDER", "openai")
	t.Setenv("EMBEDDING_PROVIDER", "ollama")

	emb, err := NewFromEnv()
	if err != nil {
		t.Fatalf("NewFromEnv: %v", err)
	}
	if _, ok := emb.(*OllamaEmbedder); !ok {
		t.Errorf("embedding backend must win over the chat backend, got %T", emb)
	}
}

func TestNewFromEnv_OpenAIRequiresKey(t *testing.T) {
	clearEmbedderEnv(t)
	t.Setenv("EMBEDDING_PROVIDER", "openai")

	if _, err := NewFromEnv(); err == nil {
		t.Error("expected error when no API key is configured")
	}
}

func TestNewFromEnv_AzureRequiresEndpoint(t *testing.T) {
	clearEmbedderEnv(t)
	t.Setenv("EMBEDDING_PROVIDER", "azure")
	t.Setenv("AZURE_OPENAI_API_KEY", "key")

	if _, err := NewFromEnv(); err == nil {
		t.Error("expected error when no Azure endpoint is configured")
	}
}

func TestNewFromEnv_UnknownBackend(t *testing.T) {
	clearEmbedderEnv(t)
	t.Setenv("EMBEDDING_PROVIDER", "bogus")

	if _, err := NewFromEnv(); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestDefaultDimensions(t *testing.T) {
	clearEmbedderEnv(t)

	if got := DefaultDimensions("ollama"); got != 768 {
		t.Errorf("ollama default dimensions: expected 768, got %d", got)
	}
	if got := DefaultDimensions("openai"); got != 1536 {
		t.Errorf("openai default dimensions: expected 1536, got %d", got)
	}

	t.Setenv("EMBEDDING_DIMENSIONS", "1024")
	if got := DefaultDimensions("ollama"); got != 1024 {
		t.Errorf("EMBEDDING_DIMENSIONS must win, got %d", got)
	}
}
