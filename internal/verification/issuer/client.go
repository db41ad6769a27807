// Package issuer queries a credential issuer for revocation state.
package issuer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"veritas/internal/platform/config"
	id "veritas/pkg/domain"
	dErrors "veritas/pkg/domain-errors"
	"veritas/pkg/platform/circuit"
)

// Sentinel errors for the two outcomes callers branch on.
var (
	// ErrCredentialNotFound means the issuer answered 404: it has no record
	// of the credential. This is a definitive failure, not an unknown.
	ErrCredentialNotFound = dErrors.New(dErrors.CodeNotFound, "issuer has no record of the credential")
	// ErrUnavailable means neither the status endpoint nor the verification
	// fallback could answer.
	ErrUnavailable = dErrors.New(dErrors.CodeTransient, "issuer unreachable")
)

// Status is the issuer's answer about one credential.
type Status struct {
	Revoked bool
	// Source records which endpoint answered: "status" or "verify".
	Source string
}

// Client checks credential status against an issuer. A circuit breaker
// short-circuits calls while the issuer is known to be down.
type Client struct {
	client  *http.Client
	breaker *circuit.Breaker
	logger  *slog.Logger
}

// New builds an issuer client from config.
func New(cfg config.IssuerConfig, logger *slog.Logger) *Client {
	c := &Client{
		client: &http.Client{Timeout: cfg.RequestTimeout},
		logger: logger,
	}
	c.breaker = circuit.New("issuer",
		circuit.WithFailureThreshold(5),
		circuit.WithStateChangeHook(func(change circuit.StateChange) {
			if logger == nil {
				return
			}
			if change.Opened {
				logger.Warn("issuer circuit opened")
			}
			if change.Closed {
				logger.Info("issuer circuit closed")
			}
		}),
	)
	return c
}

// CheckStatus asks the issuer's status endpoint, falling back to its
// verification endpoint when the status endpoint misbehaves. A 404 from
// either endpoint is returned as ErrCredentialNotFound.
func (c *Client) CheckStatus(ctx context.Context, baseURL string, credentialID id.CredentialID) (Status, error) {
	if c.breaker.IsOpen() {
		return Status{}, ErrUnavailable
	}
	base := strings.TrimRight(baseURL, "/")

	status, err := c.queryStatus(ctx, base, credentialID)
	if err == nil {
		c.breaker.RecordSuccess()
		return status, nil
	}
	if err == ErrCredentialNotFound {
		c.breaker.RecordSuccess()
		return Status{}, err
	}

	if c.logger != nil {
		c.logger.WarnContext(ctx, "issuer status endpoint failed, trying verification endpoint",
			"error", err,
			"credential_id", credentialID,
		)
	}

	status, err = c.queryVerify(ctx, base, credentialID)
	if err == nil {
		c.breaker.RecordSuccess()
		return status, nil
	}
	if err == ErrCredentialNotFound {
		c.breaker.RecordSuccess()
		return Status{}, err
	}

	c.breaker.RecordFailure()
	return Status{}, ErrUnavailable
}

func (c *Client) queryStatus(ctx context.Context, base string, credentialID id.CredentialID) (Status, error) {
	url := fmt.Sprintf("%s/credentials/%s/status", base, credentialID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Status{}, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Status{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Status{}, ErrCredentialNotFound
	case resp.StatusCode != http.StatusOK:
		return Status{}, fmt.Errorf("issuer status endpoint returned %d", resp.StatusCode)
	}

	var body struct {
		Revoked bool `json:"revoked"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Status{}, err
	}
	return Status{Revoked: body.Revoked, Source: "status"}, nil
}

func (c *Client) queryVerify(ctx context.Context, base string, credentialID id.CredentialID) (Status, error) {
	url := fmt.Sprintf("%s/credentials/%s/verify", base, credentialID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return Status{}, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Status{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Status{}, ErrCredentialNotFound
	case resp.StatusCode != http.StatusOK:
		return Status{}, fmt.Errorf("issuer verification endpoint returned %d", resp.StatusCode)
	}

	var body struct {
		Valid bool `json:"valid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Status{}, err
	}
	return Status{Revoked: !body.Valid, Source: "verify"}, nil
}
