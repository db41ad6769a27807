// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"github.com/google/uuid"

	dErrors "veritas/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing a BatchID where a CredentialID is expected.
type (
	CredentialID uuid.UUID
	TenantID     uuid.UUID
	BatchID      uuid.UUID
	StatusListID uuid.UUID
)

// Parse functions - use at trust boundaries (handlers, API inputs).

func ParseCredentialID(s string) (CredentialID, error) {
	id, err := parseUUID(s, "credential ID")
	return CredentialID(id), err
}

func ParseTenantID(s string) (TenantID, error) {
	id, err := parseUUID(s, "tenant ID")
	return TenantID(id), err
}

func ParseBatchID(s string) (BatchID, error) {
	id, err := parseUUID(s, "batch ID")
	return BatchID(id), err
}

func ParseStatusListID(s string) (StatusListID, error) {
	id, err := parseUUID(s, "status list ID")
	return StatusListID(id), err
}

// New functions - for freshly issued identifiers.

func NewCredentialID() CredentialID { return CredentialID(uuid.New()) }
func NewBatchID() BatchID           { return BatchID(uuid.New()) }
func NewStatusListID() StatusListID { return StatusListID(uuid.New()) }

// String methods - for logging and persistence keys.

func (id CredentialID) String() string { return uuid.UUID(id).String() }
func (id TenantID) String() string     { return uuid.UUID(id).String() }
func (id BatchID) String() string      { return uuid.UUID(id).String() }
func (id StatusListID) String() string { return uuid.UUID(id).String() }

// IsNil checks - used for service-layer validation.

func (id CredentialID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id TenantID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id BatchID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id StatusListID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// parseUUID is the shared validation logic.
// Nil UUIDs are allowed here; use IsNil() at the service layer for business
// validation so store lookups can return proper "not found" errors.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" format")
	}
	return id, nil
}
