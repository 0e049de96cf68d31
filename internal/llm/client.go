package llm

import (
	"context"
)

type Client interface {
	// ExtractWine returns the raw JSON emitted by the model for one
	// line of wine-list text.
	ExtractWine(ctx context.Context, line string) (string, error)

	// Configured reports whether the client has credentials to call
	// the external service at all.
	Configured() bool
}
