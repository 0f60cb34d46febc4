package llm

// Usage holds token accounting information returned by the LLM backend.
// All counts are in the model's native token unit and may differ between providers
// for the same textual content.
type Usage struct {
	// PromptTokens is the number of tokens consumed by the input messages and system
	// prompt.
	PromptTokens int

	// CompletionTokens is the number of tokens generated in the response.
	CompletionTokens int

	// TotalTokens is PromptTokens + CompletionTokens.
	TotalTokens int
}

// Temperature returns a pointer to v for use in [CompletionRequest.Temperature].
func Temperature(v float64) *float64 {
	return &v
}

// MinTemperature is the lowest sampling temperature accepted by every
// supported backend. Requests that must be reproducible pin to this value.
const MinTemperature = 0.0
