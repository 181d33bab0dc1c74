package search

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// defaultRAGTopK is the number of semantic search results returned when the
// workspace does not configure its own value.
const defaultRAGTopK = 6

// ragProfileID is the context profile looked up in the workspace memory config.
const ragProfileID = "rag_profile"

// RAGSettings controls semantic retrieval for a single workspace.
type RAGSettings struct {
	// Enabled toggles semantic retrieval for the workspace.
	Enabled bool
	// TopK is the number of chunks to retrieve per query.
	TopK int
}

// DefaultRAGSettings returns the settings used when a workspace has no
// memory config (or a malformed one): retrieval enabled, top_k=6.
func DefaultRAGSettings() RAGSettings {
	return RAGSettings{Enabled: true, TopK: defaultRAGTopK}
}

// memoryFile mirrors the subset of config/memory.yaml the aggregator reads.
type memoryFile struct {
	Memory struct {
		ContextProfiles []struct {
			ID       string `yaml:"id"`
			Metadata struct {
				RAGEnabled *bool `yaml:"rag_enabled"`
				RAGTopK    int   `yaml:"rag_top_k"`
			} `yaml:"metadata"`
		} `yaml:"context_profiles"`
	} `yaml:"memory"`
}

// LoadRAGSettings reads config/memory.yaml under root and returns the RAG
// settings from the "rag_profile" context profile. Any absence or parse
// failure yields the defaults — a broken config never disables answering.
func LoadRAGSettings(root string) RAGSettings {
	settings := DefaultRAGSettings()

	data, err := os.ReadFile(filepath.Join(root, "config", "memory.yaml"))
	if err != nil {
		return settings
	}

	var mf memoryFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return settings
	}

	for _, profile := range mf.Memory.ContextProfiles {
		if profile.ID != ragProfileID {
			continue
		}
		if profile.Metadata.RAGEnabled != nil {
			settings.Enabled = *profile.Metadata.RAGEnabled
		}
		if profile.Metadata.RAGTopK > 0 {
			settings.TopK = profile.Metadata.RAGTopK
		}
		break
	}

	return settings
}
