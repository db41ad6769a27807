// Package models defines the verification pipeline domain types.
package models

import (
	"time"

	"veritas/pkg/domain"
)

// CheckStatus is the outcome of one pipeline stage.
type CheckStatus string

const (
	CheckPassed  CheckStatus = "passed"
	CheckWarning CheckStatus = "warning"
	CheckFailed  CheckStatus = "failed"
	CheckSkipped CheckStatus = "skipped"
)

// Stage names in pipeline order.
const (
	CheckParse      = "parse"
	CheckSignature  = "signature"
	CheckDID        = "did_resolution"
	CheckExpiration = "expiration"
	CheckRevocation = "revocation"
	CheckAnchor     = "anchor"
)

// Risk flags attached by stages. Stable strings on the wire.
const (
	FlagParseFailed            = "PARSE_FAILED"
	FlagSignatureInvalid       = "SIGNATURE_INVALID"
	FlagDIDUnresolved          = "DID_UNRESOLVED"
	FlagCredentialExpired      = "CREDENTIAL_EXPIRED"
	FlagCredentialRevoked      = "CREDENTIAL_REVOKED"
	FlagRevocationConfirmed    = "REVOCATION_CONFIRMED"
	FlagIssuerCredentialMissing = "ISSUER_CREDENTIAL_NOT_FOUND"
	FlagNoBlockchainAnchor     = "NO_BLOCKCHAIN_ANCHOR"
	FlagAnchorInvalid          = "ANCHOR_INVALID"
)

// CheckResult captures one stage's outcome, its risk contribution and any
// flags it raised.
type CheckResult struct {
	Name      string
	Status    CheckStatus
	Message   string
	Details   map[string]any
	RiskDelta int
	Flags     []string
}

// TrustStatus is the aggregate decision.
type TrustStatus string

const (
	TrustVerified   TrustStatus = "verified"
	TrustSuspicious TrustStatus = "suspicious"
	TrustFailed     TrustStatus = "failed"
)

// Report is the full pipeline outcome for one credential.
type Report struct {
	CredentialID domain.CredentialID
	Status       TrustStatus
	RiskScore    int
	RiskFlags    []string
	Checks       []CheckResult
	VerifiedAt   time.Time
}
