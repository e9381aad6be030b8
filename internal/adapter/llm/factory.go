package llm

import (
	"log"
	"os"
	"time"
)

const (
	// EnvCourseForgeMode is the environment variable name for mode selection.
	EnvCourseForgeMode = "COURSEFORGE_MODE"
	// ModeMock indicates mock mode should be used.
	ModeMock = "MOCK"
)

// NewLLMClient creates an LLM client based on the COURSEFORGE_MODE environment
// variable. If COURSEFORGE_MODE=MOCK, returns a MockClient; otherwise returns
// a real Client.
func NewLLMClient(baseURL, apiKey string, timeout time.Duration) LLMClient {
	mode := os.Getenv(EnvCourseForgeMode)

	if mode == ModeMock {
		log.Println("COURSEFORGE_MODE=MOCK detected, using mock LLM client")
		return NewMockClient()
	}

	return NewClient(baseURL, apiKey, timeout)
}
