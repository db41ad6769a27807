package issuer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veritas/internal/platform/config"
	id "veritas/pkg/domain"
)

func newClient() *Client {
	return New(config.IssuerConfig{RequestTimeout: time.Second}, nil)
}

func TestStatusEndpointAnswers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Write([]byte(`{"revoked": true}`))
	}))
	defer server.Close()

	status, err := newClient().CheckStatus(context.Background(), server.URL, id.NewCredentialID())
	require.NoError(t, err)
	assert.True(t, status.Revoked)
	assert.Equal(t, "status", status.Source)
}

func TestFallbackToVerifyEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"valid": true}`))
	}))
	defer server.Close()

	status, err := newClient().CheckStatus(context.Background(), server.URL, id.NewCredentialID())
	require.NoError(t, err)
	assert.False(t, status.Revoked)
	assert.Equal(t, "verify", status.Source)
}

func TestNotFoundIsDefinitive(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newClient().CheckStatus(context.Background(), server.URL, id.NewCredentialID())
	assert.ErrorIs(t, err, ErrCredentialNotFound)
}

func TestBothEndpointsDownIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newClient().CheckStatus(context.Background(), server.URL, id.NewCredentialID())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestCircuitOpensAfterRepeatedFailures(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newClient()
	ctx := context.Background()
	for range 5 {
		_, err := client.CheckStatus(ctx, server.URL, id.NewCredentialID())
		require.ErrorIs(t, err, ErrUnavailable)
	}

	before := calls.Load()
	_, err := client.CheckStatus(ctx, server.URL, id.NewCredentialID())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, before, calls.Load(), "open circuit must not issue requests")
}
