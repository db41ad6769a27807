package proof

// Package proof hosts the stable wire DTOs for the proof and trust engine.
// These shapes are part of the external contract: field names, enum values,
// and the canonicalization/hash identifiers must round-trip bit-exact.
// Versioned independently from any internal models or persistence schemas.

// ContractVersion identifies the contract schema version for compatibility checks.
// Bump on breaking changes to the shapes below; consumers can pin or roll forward.
const ContractVersion = "v0.2.0"

// Format identifies the proof envelope format.
type Format string

const (
	FormatSDJWTVC          Format = "sd-jwt-vc"
	FormatJWTVP            Format = "jwt_vp"
	FormatLDPVP            Format = "ldp_vp"
	FormatLDPVC            Format = "ldp_vc"
	FormatMerkleMembership Format = "merkle-membership"
)

// Canonicalization mode identifiers. RFC8785V1 is the strict recursive mode;
// JCSLikeV1 reproduces historical top-level-only hashing for backward
// compatible verification.
const (
	ModeRFC8785V1 = "RFC8785-V1"
	ModeJCSLikeV1 = "JCS-LIKE-V1"
)

// Hash algorithm identifiers accepted on the wire.
const (
	HashSHA256    = "sha256"
	HashKeccak256 = "keccak256"
)

// GenerationStatus discriminates proof generation outcomes. An unsupported
// format is a status, not an error: callers branch on Status, never on a
// transport failure.
type GenerationStatus string

const (
	GenerationStatusGenerated   GenerationStatus = "generated"
	GenerationStatusUnsupported GenerationStatus = "unsupported"
)

// GenerateRequest asks for a proof envelope over a credential or a raw leaf.
type GenerateRequest struct {
	Format       string         `json:"format"`
	CredentialID string         `json:"credential_id,omitempty"`
	SubjectDID   string         `json:"subject_did,omitempty"`
	IssuerDID    string         `json:"issuer_did,omitempty"`
	Challenge    string         `json:"challenge,omitempty"`
	Domain       string         `json:"domain,omitempty"`
	ClaimsDigest string         `json:"claims_digest,omitempty"`
	Nonce        string         `json:"nonce,omitempty"`
	Claims       map[string]any `json:"claims,omitempty"`
}

// GenerateResponse is the proof generation result envelope.
type GenerateResponse struct {
	Status       string         `json:"status"`
	Code         string         `json:"code,omitempty"`
	Format       string         `json:"format"`
	ProofPayload map[string]any `json:"proof_payload,omitempty"`
	LeafHash     string         `json:"leaf_hash,omitempty"`
	Challenge    string         `json:"challenge,omitempty"`
	Domain       string         `json:"domain,omitempty"`
	IssuerDID    string         `json:"issuer_did,omitempty"`
	SubjectDID   string         `json:"subject_did,omitempty"`
}

// VerifyRequest asks for verification of a previously generated proof.
type VerifyRequest struct {
	Format            string         `json:"format"`
	Proof             map[string]any `json:"proof"`
	Challenge         string         `json:"challenge,omitempty"`
	Domain            string         `json:"domain,omitempty"`
	ExpectedHash      string         `json:"expected_hash,omitempty"`
	HashAlgorithm     string         `json:"hash_algorithm,omitempty"`
	ExpectedIssuerDID string         `json:"expected_issuer_did,omitempty"`
}

// VerifyResponse reports the verification outcome with machine-readable
// reason codes.
type VerifyResponse struct {
	Valid       bool     `json:"valid"`
	Code        string   `json:"code"`
	ReasonCodes []string `json:"reason_codes"`
}

// StatusListExport is the bit-exact external form of a revocation status list.
type StatusListExport struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Bitstring    string `json:"bitstring"`
	Size         int    `json:"size"`
	RevokedCount int    `json:"revoked_count"`
	Digest       string `json:"digest"`
	UpdatedAt    string `json:"updated_at"`
}

// StatusListExportType is the constant Type value for StatusListExport.
const StatusListExportType = "BitstringStatusList"

// RevokeRequest revokes a single credential.
type RevokeRequest struct {
	CredentialID string `json:"credential_id"`
	Reason       string `json:"reason,omitempty"`
}

// RevokeResponse reports the resulting status list assignment.
type RevokeResponse struct {
	StatusList StatusEntry `json:"status_list"`
	Code       string      `json:"code"`
}

// StatusEntry locates one credential's bit within a status list.
type StatusEntry struct {
	ListID  string `json:"list_id"`
	Index   int    `json:"index"`
	Revoked bool   `json:"revoked"`
}

// CreateBatchRequest groups credentials into one merkle anchor batch.
type CreateBatchRequest struct {
	CredentialIDs []string `json:"credential_ids"`
}

// CreateBatchResponse reports the created batch and its merkle root.
type CreateBatchResponse struct {
	BatchID    string `json:"batch_id"`
	Status     string `json:"status"`
	MerkleRoot string `json:"merkle_root"`
}

// AnchorProofResponse carries a merkle inclusion path. Proof is ordered from
// the leaf's sibling upward; a verifier recombines it with the leaf hash to
// reproduce Root without trusting the service.
type AnchorProofResponse struct {
	BatchID string      `json:"batch_id"`
	Root    string      `json:"root"`
	Proof   []ProofStep `json:"proof"`
}

// ProofStep is one sibling hash in a merkle inclusion path.
type ProofStep struct {
	Hash string `json:"hash"`
	Left bool   `json:"left"`
}

// VerificationCheck is one pipeline stage outcome.
type VerificationCheck struct {
	Name    string         `json:"name"`
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// VerificationReport is the aggregate trust decision for a credential.
type VerificationReport struct {
	Status    string              `json:"status"`
	Checks    []VerificationCheck `json:"checks"`
	RiskScore int                 `json:"risk_score"`
	RiskFlags []string            `json:"risk_flags"`
	Timestamp string              `json:"timestamp"`
}
