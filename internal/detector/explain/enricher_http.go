package explain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"payguard/pkg/platform/circuit"
)

// HTTPEnricher calls an external text-generation service. The service is a
// pluggable enrichment step only; callers reach it exclusively through
// Apply, which guarantees fallback behavior. A circuit breaker skips the
// service entirely while it is unhealthy so flag batches never queue behind
// enrichment timeouts.
type HTTPEnricher struct {
	url     string
	client  *http.Client
	breaker *circuit.Breaker
}

// NewHTTPEnricher builds an enricher against the given endpoint. Returns nil
// (enrichment disabled) when the URL is empty.
func NewHTTPEnricher(url string, timeout time.Duration) *HTTPEnricher {
	if url == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPEnricher{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		breaker: circuit.New(5, 30*time.Second),
	}
}

type enrichRequest struct {
	FlagType string            `json:"flagType"`
	Context  map[string]string `json:"context,omitempty"`
	Fallback string            `json:"fallbackText"`
}

type enrichResponse struct {
	Text string `json:"text"`
}

func (e *HTTPEnricher) Enrich(ctx context.Context, flagType string, flagContext map[string]string, fallback string) (string, error) {
	if !e.breaker.Allow() {
		return "", fmt.Errorf("enrich: circuit open")
	}
	text, err := e.call(ctx, flagType, flagContext, fallback)
	if err != nil {
		e.breaker.RecordFailure()
		return "", err
	}
	e.breaker.RecordSuccess()
	return text, nil
}

func (e *HTTPEnricher) call(ctx context.Context, flagType string, flagContext map[string]string, fallback string) (string, error) {
	body, err := json.Marshal(enrichRequest{FlagType: flagType, Context: flagContext, Fallback: fallback})
	if err != nil {
		return "", fmt.Errorf("enrich: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("enrich: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("enrich: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("enrich: unexpected status %d", resp.StatusCode)
	}
	var decoded enrichResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("enrich: decode response: %w", err)
	}
	return decoded.Text, nil
}
