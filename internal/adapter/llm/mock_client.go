package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// MockClient is a mock implementation of LLMClient for testing and for
// running the full pipeline without a model endpoint. It inspects the
// system prompt to decide which agent is calling and answers with a
// well-formed artifact or critique for that agent, so negotiation
// sessions converge in a single round.
type MockClient struct{}

// NewMockClient creates a new mock LLM client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Ensure MockClient implements LLMClient interface.
var _ LLMClient = (*MockClient)(nil)

// CreateChatCompletion returns a mock response.
func (m *MockClient) CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	responseContent := m.generateMockResponse(req)

	return &ChatCompletionResponse{
		ID:      fmt.Sprintf("mock-chatcmpl-%d", time.Now().UnixNano()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []Choice{
			{
				Index: 0,
				Message: &ChatMessage{
					Role:    "assistant",
					Content: responseContent,
				},
				FinishReason: "stop",
			},
		},
		Usage: &Usage{
			PromptTokens:     m.estimateTokens(req),
			CompletionTokens: len(responseContent) / 4,
			TotalTokens:      m.estimateTokens(req) + len(responseContent)/4,
		},
		SystemFingerprint: "mock-fp",
	}, nil
}

const mockPathwayJSON = `{
  "title": "Getting Started with the Codebase",
  "description": "[MOCK] A guided pathway through the repository, from setup to core internals.",
  "modules": [
    {
      "title": "Project Orientation",
      "description": "Tour the repository layout, build tooling, and entry points.",
      "theme": "foundations",
      "learning_objectives": ["Describe the repository layout", "Run the project locally"],
      "estimated_minutes": 30
    },
    {
      "title": "Core Data Model",
      "description": "Work through the central types and how they are persisted.",
      "theme": "internals",
      "learning_objectives": ["Explain the core domain types"],
      "estimated_minutes": 45
    },
    {
      "title": "Request Lifecycle",
      "description": "Follow one request end to end through the service layers.",
      "theme": "internals",
      "learning_objectives": ["Trace a request from handler to store"],
      "estimated_minutes": 45
    }
  ]
}`

const mockContentJSON = `{
  "title": "Project Orientation",
  "introduction": "[MOCK] This module walks you through the repository so you can find your way around before diving into the internals.",
  "sections": [
    {
      "heading": "Repository Layout",
      "body": "The repository follows a conventional layout. Application code lives under internal, with one package per concern, and the binary entry point sits at the root."
    },
    {
      "heading": "Running Locally",
      "body": "Clone the repository, install the toolchain, and start the server. The default configuration needs no external services."
    }
  ],
  "conclusion": "You now know where the pieces live and how to run them.",
  "assessment": "Name the package that owns persistence and describe what the entry point wires together."
}`

const mockCritiqueJSON = `{
  "severity": "acceptable",
  "summary": "[MOCK] The draft meets the requirements.",
  "reasoning": "Structure, coverage, and level of detail are all adequate for this audience.",
  "revision_requests": []
}`

// generateMockResponse generates a mock response based on the request. The
// system prompt identifies the calling agent by role.
func (m *MockClient) generateMockResponse(req *ChatCompletionRequest) string {
	var system string
	for _, msg := range req.Messages {
		if msg.Role == "system" {
			system = msg.Content
			break
		}
	}

	lowered := strings.ToLower(system)
	switch {
	case strings.Contains(lowered, "reviewer"):
		return mockCritiqueJSON
	case strings.Contains(lowered, "curriculum architect"):
		return mockPathwayJSON
	case strings.Contains(lowered, "course author"):
		return mockContentJSON
	}

	// Not an agent call; echo like a plain chat model.
	var lastUserMessage string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			lastUserMessage = req.Messages[i].Content
			break
		}
	}

	if lastUserMessage == "" {
		return "[MOCK] This is a mock response from the LLM client."
	}

	return fmt.Sprintf("[MOCK] Received your message: %q. This is a mock response.", truncate(lastUserMessage, 100))
}

// estimateTokens provides a rough token count estimate.
func (m *MockClient) estimateTokens(req *ChatCompletionRequest) int {
	total := 0
	for _, msg := range req.Messages {
		total += len(msg.Content) / 4
	}
	return total
}

// truncate truncates a string to the given length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
