// Package tools defines the CodebaseTool interface and the tool
// implementations the agent can invoke during a conversation. Each tool
// satisfies both this package's interface and Eino's tool.BaseTool interface
// so they can be registered directly with a ChatModelAgent.
package tools

// CodebaseTool is the interface that all codebase-aware tools must satisfy.
// It extends the basic Eino tool contract with a Name accessor so the agent
// can log and route tool calls by name without type assertions.
type CodebaseTool interface {
	// Name returns the unique tool name registered with the agent.
	Name() string

	// Description returns a human-readable description of what the tool does.
	// This text is sent to the LLM as part of the tool schema.
	Description() string
}
