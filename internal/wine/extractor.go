package wine

import (
	"context"
	"regexp"
	"strings"

	"golang.org/x/time/rate"

	"github.com/afrantzeskakis/convive-3-sub004/internal/llm"
)

// vintageRe matches a plausible vintage year (1900-2099).
var vintageRe = regexp.MustCompile(`\b(19[0-9]{2}|20[0-9]{2})\b`)

// Extractor turns one line of raw text into a WineRecord via the
// external extraction service. The limiter is shared process-wide so
// concurrent ingestion runs cannot jointly exceed the service's rate
// limit, independent of the per-run scheduler delays.
type Extractor struct {
	client   llm.Client
	limiter  *rate.Limiter
	fallback bool
}

// NewExtractor wires the LLM client and the shared limiter. When
// fallback is true a failed or unconfigured service degrades to a
// minimal heuristic record instead of an error.
func NewExtractor(client llm.Client, limiter *rate.Limiter, fallback bool) *Extractor {
	return &Extractor{
		client:   client,
		limiter:  limiter,
		fallback: fallback,
	}
}

// Available reports whether Extract can produce records at all.
func (e *Extractor) Available() bool {
	if e.fallback {
		return true
	}
	return e.client != nil && e.client.Configured()
}

// Extract returns (nil, nil) when the service decides the line is not
// a wine entry. Service failures are returned as errors for the caller
// to count or abort on, unless the fallback policy is enabled.
func (e *Extractor) Extract(ctx context.Context, line string) (*WineRecord, error) {
	if e.client == nil || !e.client.Configured() {
		if e.fallback {
			return heuristicRecord(line), nil
		}
		return nil, ErrServiceUnavailable
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	parsed, err := llm.ParseWine(ctx, e.client, line)
	if err != nil {
		if e.fallback {
			return heuristicRecord(line), nil
		}
		return nil, err
	}

	if parsed.Name == "" {
		// not a wine, by the model's judgment
		return nil, nil
	}

	record := &WineRecord{
		Name:      parsed.Name,
		Vintage:   parsed.Vintage,
		Producer:  parsed.Producer,
		Region:    parsed.Region,
		Country:   parsed.Country,
		Varietals: strings.Join(parsed.Varietals, ", "),
	}

	attrs := map[string]string{}
	for key, val := range map[string]string{
		"price":         parsed.Price,
		"style":         parsed.Style,
		"aroma":         parsed.Aroma,
		"taste":         parsed.Taste,
		"food_pairings": parsed.FoodPairings,
	} {
		if val != "" {
			attrs[key] = val
		}
	}
	if len(attrs) > 0 {
		record.Attributes = attrs
	}

	return record, nil
}

// heuristicRecord is the cheap local fallback: the whole line as the
// name, plus a vintage if a 4-digit year is present.
func heuristicRecord(line string) *WineRecord {
	return &WineRecord{
		Name:    strings.TrimSpace(line),
		Vintage: vintageRe.FindString(line),
	}
}
