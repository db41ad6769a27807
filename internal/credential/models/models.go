// Package models holds the credential records backing proof generation and
// verification. This is deliberately minimal: issuance flows live outside
// this service, which only needs existence, tenant ownership, claims, and
// lifecycle timestamps.
package models

import (
	"time"

	id "veritas/pkg/domain"
)

// CredentialRecord is one stored credential.
type CredentialRecord struct {
	ID         id.CredentialID
	TenantID   id.TenantID
	SubjectDID string
	IssuerDID  string
	Claims     map[string]any
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

// Expired reports whether the credential has an expiry in the past.
func (c CredentialRecord) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}
