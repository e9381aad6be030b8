// Package agents implements the proposer and critic roles of the
// negotiation pipeline on top of an LLM client. Proposers draft artifacts,
// critics grade them; both speak JSON and both are constructed per session
// with the inputs they need already bound.
package agents

import (
	"context"
	"fmt"

	"github.com/courseforge/courseforge/internal/adapter/llm"
)

const (
	roleSystem = "system"
	roleUser   = "user"

	// Proposers get room to be creative; critics should be repeatable.
	proposerTemperature = 0.7
	criticTemperature   = 0.2
)

// chat sends a single system+user exchange and returns the assistant text.
func chat(ctx context.Context, client llm.LLMClient, model, system, user string, temperature float64) (string, error) {
	temp := temperature
	resp, err := client.CreateChatCompletion(ctx, &llm.ChatCompletionRequest{
		Model: model,
		Messages: []llm.ChatMessage{
			{Role: roleSystem, Content: system},
			{Role: roleUser, Content: user},
		},
		Temperature:    &temp,
		ResponseFormat: map[string]interface{}{"type": "json_object"},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message == nil {
		return "", fmt.Errorf("model returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// clip truncates a string to the given length.
func clip(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
