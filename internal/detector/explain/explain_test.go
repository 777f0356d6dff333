package explain

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply(t *testing.T) {
	ctx := context.Background()

	t.Run("nil enricher keeps the template", func(t *testing.T) {
		assert.Equal(t, "fallback text", Apply(ctx, nil, "ghost", nil, "fallback text"))
	})

	t.Run("enriched text replaces the template", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"text":"a richer explanation"}`))
		}))
		defer server.Close()

		enricher := NewHTTPEnricher(server.URL, time.Second)
		require.NotNil(t, enricher)
		assert.Equal(t, "a richer explanation", Apply(ctx, enricher, "ghost", nil, "fallback text"))
	})

	t.Run("service failure degrades to the template", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		enricher := NewHTTPEnricher(server.URL, time.Second)
		assert.Equal(t, "fallback text", Apply(ctx, enricher, "ghost", nil, "fallback text"))
	})

	t.Run("empty enrichment degrades to the template", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"text":""}`))
		}))
		defer server.Close()

		enricher := NewHTTPEnricher(server.URL, time.Second)
		assert.Equal(t, "fallback text", Apply(ctx, enricher, "ghost", nil, "fallback text"))
	})

	t.Run("disabled when no endpoint configured", func(t *testing.T) {
		assert.Nil(t, NewHTTPEnricher("", time.Second))
	})
}

func TestEnricherCircuitBreaks(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	enricher := NewHTTPEnricher(server.URL, time.Second)
	for i := 0; i < 10; i++ {
		_, err := enricher.Enrich(context.Background(), "ghost", nil, "fallback")
		require.Error(t, err)
	}
	// The breaker opened after five consecutive failures; later attempts
	// never reached the service.
	assert.Equal(t, 5, calls)
}
