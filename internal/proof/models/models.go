// Package models defines proof generation and verification domain types.
package models

import (
	proofcontract "veritas/contracts/proof"
)

// Reason codes surfaced on the verification wire contract. Stable strings:
// integrators branch on them.
const (
	ReasonInputInvalid       = "PROOF_INPUT_INVALID"
	ReasonHashMismatch       = "PROOF_HASH_MISMATCH"
	ReasonChallengeMismatch  = "PROOF_CHALLENGE_MISMATCH"
	ReasonReplayDetected     = "PROOF_REPLAY_DETECTED"
	ReasonUnsupportedFormat  = "PROOF_UNSUPPORTED_FORMAT"
	ReasonCredentialNotFound = "PROOF_CREDENTIAL_NOT_FOUND"
	ReasonForbidden          = "PROOF_FORBIDDEN"
	ReasonVerified           = "PROOF_VERIFIED"
)

// GenerateInput is the service-level request for proof generation.
type GenerateInput struct {
	Format       proofcontract.Format
	CredentialID string
	SubjectDID   string
	IssuerDID    string
	Challenge    string
	Domain       string
	ClaimsDigest string
	Nonce        string
	Claims       map[string]any
}

// GenerationResult is a proof envelope or an unsupported-format outcome.
// Unsupported is a status, not an error: callers branch on Status.
type GenerationResult struct {
	Status       proofcontract.GenerationStatus
	Code         string
	Format       proofcontract.Format
	ProofPayload map[string]any
	LeafHash     string
	Challenge    string
	Domain       string
	IssuerDID    string
	SubjectDID   string
}

// VerifyInput is the service-level request for proof verification.
type VerifyInput struct {
	Format            proofcontract.Format
	Proof             map[string]any
	Challenge         string
	Domain            string
	ExpectedHash      string
	HashAlgorithm     string
	ExpectedIssuerDID string
}

// VerifyResult is a terminal verification outcome. Invalid proofs are
// results, not errors; errors are reserved for infrastructure failures.
type VerifyResult struct {
	Valid       bool
	Code        string
	ReasonCodes []string
}

// Verified is the singleton success result.
func Verified() *VerifyResult {
	return &VerifyResult{Valid: true, Code: ReasonVerified, ReasonCodes: []string{}}
}

// Rejected builds a failure result whose top-level code is the first reason.
func Rejected(reasons ...string) *VerifyResult {
	return &VerifyResult{Valid: false, Code: reasons[0], ReasonCodes: reasons}
}
