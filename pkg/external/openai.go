package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-research/deepresearch/pkg/logger"
)

// OpenAILLM implements LLMProvider against the OpenAI chat completions API,
// grounded on pkg/ai's OpenAIClient request/response shape.
type OpenAILLM struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	logger     logger.Logger
}

// NewConfiguredLLM builds an LLMProvider from RESEARCH_OPENAI_API_KEY (falling
// back to OPENAI_API_KEY) and RESEARCH_OPENAI_MODEL (default "gpt-4").
func NewConfiguredLLM(log logger.Logger) (LLMProvider, error) {
	apiKey := os.Getenv("RESEARCH_OPENAI_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("external: RESEARCH_OPENAI_API_KEY or OPENAI_API_KEY must be set")
	}
	model := os.Getenv("RESEARCH_OPENAI_MODEL")
	if model == "" {
		model = "gpt-4"
	}
	return &OpenAILLM{
		apiKey:     apiKey,
		model:      model,
		baseURL:    "https://api.openai.com/v1",
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     log,
	}, nil
}

func (c *OpenAILLM) Generate(ctx context.Context, messages []Message, stopTokens []string) (string, error) {
	apiMessages := make([]map[string]string, 0, len(messages))
	for _, m := range messages {
		apiMessages = append(apiMessages, map[string]string{"role": m.Role, "content": m.Content})
	}

	payload := map[string]interface{}{
		"model":       c.model,
		"messages":    apiMessages,
		"temperature": 0.0,
		"max_tokens":  1500,
	}
	if len(stopTokens) > 0 {
		payload["stop"] = stopTokens
	}

	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("external: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewBuffer(jsonPayload))
	if err != nil {
		return "", fmt.Errorf("external: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("external: llm request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("external: llm returned status %d", resp.StatusCode)
	}

	var body struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("external: decode llm response: %w", err)
	}
	if len(body.Choices) == 0 {
		return "", fmt.Errorf("external: llm response carried no choices")
	}
	return body.Choices[0].Message.Content, nil
}
