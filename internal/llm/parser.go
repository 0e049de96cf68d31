package llm

import (
	"context"
	"encoding/json"
	"errors"
)

// ParseWine runs one line through the client and decodes the model's
// JSON into the fixed schema. A decoded record with an empty name is
// returned as-is; the caller decides what "not a wine" means.
func ParseWine(
	ctx context.Context,
	client Client,
	line string,
) (*ExtractedWine, error) {

	rawJSON, err := client.ExtractWine(ctx, line)
	if err != nil {
		return nil, err
	}

	var parsed ExtractedWine
	if err := json.Unmarshal([]byte(rawJSON), &parsed); err != nil {
		return nil, errors.New("invalid LLM JSON output")
	}

	return &parsed, nil
}
