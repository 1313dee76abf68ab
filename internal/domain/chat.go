package domain

// ChatMessage is the provider-agnostic chat message shape used by the answer
// generator and LLM integrations.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatSettings carries the sampling knobs for a single completion request.
type ChatSettings struct {
	Temperature float64
	MaxTokens   int
}
