package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const defaultModel = "gpt-4o-mini"

type OpenAIClient struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func NewOpenAIClient() *OpenAIClient {
	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = defaultModel
	}

	return &OpenAIClient{
		apiKey:  os.Getenv("OPENAI_API_KEY"),
		model:   model,
		baseURL: "https://api.openai.com/v1/chat/completions",
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (o *OpenAIClient) Configured() bool {
	return o.apiKey != ""
}

// ExtractWine sends one line to OpenAI and guarantees JSON-only output
func (o *OpenAIClient) ExtractWine(ctx context.Context, line string) (string, error) {
	if o.apiKey == "" {
		return "", errors.New("missing OPENAI_API_KEY")
	}
	if line == "" {
		return "", errors.New("empty input line")
	}

	prompt := BuildWineExtractPrompt(line)

	payload := map[string]any{
		"model": o.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature":     0.1,
		"max_tokens":      600,
		"response_format": map[string]string{"type": "json_object"},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		o.baseURL,
		bytes.NewBuffer(body),
	)
	if err != nil {
		return "", err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openai api error: %s", string(raw))
	}

	// OpenAI response shape
	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	if err := json.Unmarshal(raw, &result); err != nil {
		return "", err
	}

	if len(result.Choices) == 0 || result.Choices[0].Message.Content == "" {
		return "", errors.New("empty openai response")
	}

	output := result.Choices[0].Message.Content

	// 🔒 CRITICAL: Ensure JSON-only output
	if !json.Valid([]byte(output)) {
		return "", errors.New("openai returned non-json output")
	}

	return output, nil
}
