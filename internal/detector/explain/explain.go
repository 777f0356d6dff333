// Package explain produces the human-readable reason attached to every flag.
// The deterministic templates here are the contract: an optional enrichment
// service may rewrite them with richer prose, but detection correctness never
// depends on that service being reachable.
package explain

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Templates keyed by finding. All are pure functions of their inputs so a
// re-run over the same batch produces byte-identical reasons.

func Ghost(identityHash string) string {
	return fmt.Sprintf("identity %s has no entry in the staff registry", short(identityHash))
}

func MissingRegistry(identityHash string) string {
	return fmt.Sprintf("identity %s is registered but lacks a confirmed on-chain proof", short(identityHash))
}

func ExactDuplicate(channel string, siblings int) string {
	plural := "identity"
	if siblings > 1 {
		plural = "identities"
	}
	return fmt.Sprintf("shares its %s with %d other registered %s", channel, siblings, plural)
}

func FuzzyDuplicate(counterpartHash string, similarity float64) string {
	return fmt.Sprintf("display name closely matches identity %s (similarity %.2f)", short(counterpartHash), similarity)
}

func SalaryBelow(amount, min decimal.Decimal, grade string) string {
	return fmt.Sprintf("amount %s is below the configured minimum %s for grade %s", amount, min, grade)
}

func SalaryAbove(amount, max decimal.Decimal, grade string) string {
	return fmt.Sprintf("amount %s is above the configured maximum %s for grade %s", amount, max, grade)
}

func short(hash string) string {
	if len(hash) <= 12 {
		return hash
	}
	return hash[:12]
}

// Enricher rewrites a templated reason with a natural-language explanation.
// Implementations must treat the fallback text as authoritative: any error,
// timeout, or empty response degrades to it.
type Enricher interface {
	Enrich(ctx context.Context, flagType string, flagContext map[string]string, fallback string) (string, error)
}

// Apply runs the enricher over a reason, returning the fallback on any
// failure. Safe to call with a nil enricher.
func Apply(ctx context.Context, enricher Enricher, flagType string, flagContext map[string]string, fallback string) string {
	if enricher == nil {
		return fallback
	}
	enriched, err := enricher.Enrich(ctx, flagType, flagContext, fallback)
	if err != nil || enriched == "" {
		return fallback
	}
	return enriched
}
