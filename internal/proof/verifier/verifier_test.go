package verifier

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	proofcontract "veritas/contracts/proof"
	"veritas/internal/canonical"
	"veritas/internal/proof/models"
	"veritas/internal/proof/replay"
	"veritas/pkg/platform/audit"
)

type VerifierSuite struct {
	suite.Suite
	guard    *replay.InMemoryGuard
	sink     *audit.InMemorySink
	verifier *Verifier
}

func (s *VerifierSuite) SetupTest() {
	s.guard = replay.NewInMemoryGuard()
	s.sink = audit.NewInMemorySink()
	s.verifier = New(s.guard, 5*time.Minute, WithAuditor(syncPublisher{sink: s.sink}))
}

func (s *VerifierSuite) TearDownTest() {
	s.guard.Close()
}

func TestVerifierSuite(t *testing.T) {
	suite.Run(t, new(VerifierSuite))
}

// merkleProof builds a consistent merkle-membership envelope.
func (s *VerifierSuite) merkleProof(challenge, domain string) map[string]any {
	leaf := map[string]any{
		"credential_id": "cred-1",
		"claims_digest": "abc123",
		"nonce":         "n-1",
	}
	leafHash, err := canonical.Hash(leaf, canonical.AlgorithmSHA256, canonical.ModeStrict)
	s.Require().NoError(err)
	return map[string]any{
		"credential_id": "cred-1",
		"claims_digest": "abc123",
		"nonce":         "n-1",
		"leaf_hash":     leafHash,
		"challenge":     challenge,
		"domain":        domain,
	}
}

func (s *VerifierSuite) TestMerkleMembershipVerifies() {
	result, err := s.verifier.Verify(context.Background(), models.VerifyInput{
		Format:    proofcontract.FormatMerkleMembership,
		Proof:     s.merkleProof("ch-1", "example.org"),
		Challenge: "ch-1",
		Domain:    "example.org",
	})
	s.Require().NoError(err)
	s.True(result.Valid)
	s.Equal(models.ReasonVerified, result.Code)
}

func (s *VerifierSuite) TestMerkleMembershipChallengeMismatch() {
	result, err := s.verifier.Verify(context.Background(), models.VerifyInput{
		Format:    proofcontract.FormatMerkleMembership,
		Proof:     s.merkleProof("ch-1", "example.org"),
		Challenge: "another-challenge",
		Domain:    "example.org",
	})
	s.Require().NoError(err)
	s.False(result.Valid)
	s.Contains(result.ReasonCodes, models.ReasonChallengeMismatch)
}

func (s *VerifierSuite) TestMerkleMembershipTamperedLeaf() {
	proof := s.merkleProof("ch-1", "example.org")
	proof["claims_digest"] = "tampered"

	result, err := s.verifier.Verify(context.Background(), models.VerifyInput{
		Format:    proofcontract.FormatMerkleMembership,
		Proof:     proof,
		Challenge: "ch-1",
		Domain:    "example.org",
	})
	s.Require().NoError(err)
	s.False(result.Valid)
	s.Contains(result.ReasonCodes, models.ReasonHashMismatch)
}

func (s *VerifierSuite) TestCanonicalHashMatch() {
	proof := map[string]any{"b": "x", "a": map[string]any{"z": float64(1), "y": "v"}}
	expected, err := canonical.Hash(proof, canonical.AlgorithmSHA256, canonical.ModeStrict)
	s.Require().NoError(err)

	result, err := s.verifier.Verify(context.Background(), models.VerifyInput{
		Format:       proofcontract.FormatJWTVP,
		Proof:        proof,
		ExpectedHash: expected,
	})
	s.Require().NoError(err)
	s.True(result.Valid)
}

func (s *VerifierSuite) TestLegacyHashFallback() {
	// The legacy and strict encodings differ for payloads containing
	// HTML-escaped characters.
	proof := map[string]any{"note": "a<b"}
	legacy, err := canonical.Hash(proof, canonical.AlgorithmSHA256, canonical.ModeLegacy)
	s.Require().NoError(err)
	strict, err := canonical.Hash(proof, canonical.AlgorithmSHA256, canonical.ModeStrict)
	s.Require().NoError(err)
	s.Require().NotEqual(strict, legacy)

	result, err := s.verifier.Verify(context.Background(), models.VerifyInput{
		Format:       proofcontract.FormatLDPVC,
		Proof:        proof,
		ExpectedHash: legacy,
	})
	s.Require().NoError(err)
	s.True(result.Valid, "pre-strict hashes still verify through the fallback")
}

func (s *VerifierSuite) TestHashMismatch() {
	result, err := s.verifier.Verify(context.Background(), models.VerifyInput{
		Format:       proofcontract.FormatLDPVP,
		Proof:        map[string]any{"a": "b"},
		ExpectedHash: strings.Repeat("0", 64),
	})
	s.Require().NoError(err)
	s.False(result.Valid)
	s.Equal(models.ReasonHashMismatch, result.Code)
}

func (s *VerifierSuite) TestKeccakAlgorithmSelection() {
	proof := map[string]any{"a": "b"}
	expected, err := canonical.Hash(proof, canonical.AlgorithmKeccak256, canonical.ModeStrict)
	s.Require().NoError(err)

	result, err := s.verifier.Verify(context.Background(), models.VerifyInput{
		Format:        proofcontract.FormatJWTVP,
		Proof:         proof,
		ExpectedHash:  expected,
		HashAlgorithm: proofcontract.HashKeccak256,
	})
	s.Require().NoError(err)
	s.True(result.Valid)
}

func (s *VerifierSuite) TestInputValidationFailsFast() {
	ctx := context.Background()

	for name, input := range map[string]models.VerifyInput{
		"missing format": {Proof: map[string]any{"a": "b"}},
		"missing proof":  {Format: proofcontract.FormatJWTVP},
		"missing expected hash": {
			Format: proofcontract.FormatJWTVP,
			Proof:  map[string]any{"a": "b"},
		},
		"malformed issuer DID": {
			Format:            proofcontract.FormatJWTVP,
			Proof:             map[string]any{"a": "b"},
			ExpectedHash:      "abc",
			ExpectedIssuerDID: "not-a-did",
		},
		"merkle missing leaf hash": {
			Format: proofcontract.FormatMerkleMembership,
			Proof:  map[string]any{"claims_digest": "x", "nonce": "y"},
		},
	} {
		result, err := s.verifier.Verify(ctx, input)
		s.Require().NoError(err, name)
		s.False(result.Valid, name)
		s.Equal(models.ReasonInputInvalid, result.Code, name)
	}
}

func (s *VerifierSuite) TestOversizedProofRejected() {
	result, err := s.verifier.Verify(context.Background(), models.VerifyInput{
		Format:       proofcontract.FormatJWTVP,
		Proof:        map[string]any{"blob": strings.Repeat("x", maxProofBytes)},
		ExpectedHash: "abc",
	})
	s.Require().NoError(err)
	s.False(result.Valid)
	s.Equal(models.ReasonInputInvalid, result.Code)
}

func (s *VerifierSuite) TestReplayBlockedWithinTTL() {
	ctx := context.Background()
	input := models.VerifyInput{
		Format:    proofcontract.FormatMerkleMembership,
		Proof:     s.merkleProof("ch-1", "example.org"),
		Challenge: "ch-1",
		Domain:    "example.org",
	}

	first, err := s.verifier.Verify(ctx, input)
	s.Require().NoError(err)
	s.True(first.Valid)

	second, err := s.verifier.Verify(ctx, input)
	s.Require().NoError(err)
	s.False(second.Valid)
	s.Equal(models.ReasonReplayDetected, second.Code)
}

func (s *VerifierSuite) TestFailedVerificationDoesNotBlockRetry() {
	ctx := context.Background()
	bad := models.VerifyInput{
		Format:    proofcontract.FormatMerkleMembership,
		Proof:     s.merkleProof("ch-1", "example.org"),
		Challenge: "wrong",
		Domain:    "example.org",
	}
	result, err := s.verifier.Verify(ctx, bad)
	s.Require().NoError(err)
	s.Require().False(result.Valid)

	good := bad
	good.Challenge = "ch-1"
	result, err = s.verifier.Verify(ctx, good)
	s.Require().NoError(err)
	s.True(result.Valid, "a failed attempt must not poison the guard")
}

func (s *VerifierSuite) TestUnsupportedFormat() {
	result, err := s.verifier.Verify(context.Background(), models.VerifyInput{
		Format: proofcontract.Format("x509-chain"),
		Proof:  map[string]any{"a": "b"},
	})
	s.Require().NoError(err)
	s.False(result.Valid)
	s.Equal(models.ReasonUnsupportedFormat, result.Code)
}

func (s *VerifierSuite) TestAuditTrail() {
	ctx := context.Background()
	input := models.VerifyInput{
		Format:    proofcontract.FormatMerkleMembership,
		Proof:     s.merkleProof("ch-1", "example.org"),
		Challenge: "ch-1",
		Domain:    "example.org",
	}
	_, err := s.verifier.Verify(ctx, input)
	s.Require().NoError(err)
	_, err = s.verifier.Verify(ctx, input)
	s.Require().NoError(err)

	events := s.sink.Events()
	s.Require().Len(events, 2)
	s.Equal(audit.ActionProofVerified, events[0].Action)
	s.Equal(audit.ActionProofReplayBlocked, events[1].Action)
}

type syncPublisher struct {
	sink audit.Sink
}

func (p syncPublisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return p.sink.Append(ctx, event)
}
