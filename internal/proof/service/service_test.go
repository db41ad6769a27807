package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"

	proofcontract "veritas/contracts/proof"
	"veritas/internal/canonical"
	credmodels "veritas/internal/credential/models"
	credstore "veritas/internal/credential/store"
	"veritas/internal/proof/models"
	id "veritas/pkg/domain"
	dErrors "veritas/pkg/domain-errors"
)

var testSigningKey = []byte("test-signing-key-32-bytes-long!!")

type ServiceSuite struct {
	suite.Suite
	credentials *credstore.InMemoryStore
	service     *Service
	tenantID    id.TenantID
}

func (s *ServiceSuite) SetupTest() {
	s.credentials = credstore.NewInMemoryStore()
	s.service = NewService(s.credentials, testSigningKey)
	tenantID, err := id.ParseTenantID("7f6c2a70-9f6f-4f3f-8f6d-6f2a70b9f6f4")
	s.Require().NoError(err)
	s.tenantID = tenantID
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) seedCredential(tenantID id.TenantID) credmodels.CredentialRecord {
	record := credmodels.CredentialRecord{
		ID:         id.NewCredentialID(),
		TenantID:   tenantID,
		SubjectDID: "did:example:subject",
		IssuerDID:  "did:example:issuer",
		Claims:     map[string]any{"degree": "BSc", "year": float64(2020)},
		IssuedAt:   time.Now(),
	}
	s.Require().NoError(s.credentials.Save(context.Background(), record))
	return record
}

func (s *ServiceSuite) TestMerkleMembershipLeafHash() {
	result, err := s.service.GenerateProof(context.Background(), s.tenantID, models.GenerateInput{
		Format:       proofcontract.FormatMerkleMembership,
		ClaimsDigest: "abc123",
		Nonce:        "n-1",
		Challenge:    "ch-1",
		Domain:       "example.org",
	})
	s.Require().NoError(err)

	s.Equal(proofcontract.GenerationStatusGenerated, result.Status)
	expected, err := canonical.Hash(map[string]any{
		"credential_id": "",
		"claims_digest": "abc123",
		"nonce":         "n-1",
	}, canonical.AlgorithmSHA256, canonical.ModeStrict)
	s.Require().NoError(err)
	s.Equal(expected, result.LeafHash)
	s.Equal("ch-1", result.Challenge)
	s.Equal("example.org", result.Domain)
	s.Equal(result.LeafHash, result.ProofPayload["leaf_hash"])
}

func (s *ServiceSuite) TestMerkleMembershipRequiresDigestAndNonce() {
	_, err := s.service.GenerateProof(context.Background(), s.tenantID, models.GenerateInput{
		Format: proofcontract.FormatMerkleMembership,
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestJWTFormatSignsCredentialClaims() {
	record := s.seedCredential(s.tenantID)

	result, err := s.service.GenerateProof(context.Background(), s.tenantID, models.GenerateInput{
		Format:       proofcontract.FormatJWTVP,
		CredentialID: record.ID.String(),
		Challenge:    "ch-1",
		Domain:       "example.org",
	})
	s.Require().NoError(err)
	s.Equal(proofcontract.GenerationStatusGenerated, result.Status)
	s.Equal("did:example:issuer", result.IssuerDID)

	tokenString, _ := result.ProofPayload["jwt"].(string)
	s.Require().NotEmpty(tokenString)

	parsed, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		return testSigningKey, nil
	})
	s.Require().NoError(err)
	claims, ok := parsed.Claims.(jwt.MapClaims)
	s.Require().True(ok)
	s.Equal("did:example:issuer", claims["iss"])
	s.Equal("did:example:subject", claims["sub"])
	s.Equal("ch-1", claims["nonce"])
}

func (s *ServiceSuite) TestLinkedDataFormatEmbedsProofBlock() {
	record := s.seedCredential(s.tenantID)

	result, err := s.service.GenerateProof(context.Background(), s.tenantID, models.GenerateInput{
		Format:       proofcontract.FormatLDPVC,
		CredentialID: record.ID.String(),
		Challenge:    "ch-1",
		Domain:       "example.org",
	})
	s.Require().NoError(err)
	s.Equal(proofcontract.GenerationStatusGenerated, result.Status)

	proofBlock, ok := result.ProofPayload["proof"].(map[string]any)
	s.Require().True(ok)
	s.Equal("DataIntegrityProof", proofBlock["type"])
	s.Equal("ch-1", proofBlock["challenge"])
	s.NotEmpty(proofBlock["proofValue"])
}

func (s *ServiceSuite) TestUnsupportedFormatIsAStatusNotAnError() {
	result, err := s.service.GenerateProof(context.Background(), s.tenantID, models.GenerateInput{
		Format: proofcontract.Format("x509-chain"),
	})
	s.Require().NoError(err)
	s.Equal(proofcontract.GenerationStatusUnsupported, result.Status)
	s.Equal(models.ReasonUnsupportedFormat, result.Code)
}

func (s *ServiceSuite) TestCredentialNotFound() {
	_, err := s.service.GenerateProof(context.Background(), s.tenantID, models.GenerateInput{
		Format:       proofcontract.FormatJWTVP,
		CredentialID: id.NewCredentialID().String(),
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestTenantMismatchForbidden() {
	otherTenant, err := id.ParseTenantID("11111111-2222-4333-8444-555555555555")
	s.Require().NoError(err)
	record := s.seedCredential(otherTenant)

	_, err = s.service.GenerateProof(context.Background(), s.tenantID, models.GenerateInput{
		Format:       proofcontract.FormatJWTVP,
		CredentialID: record.ID.String(),
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func TestValidDID(t *testing.T) {
	for did, want := range map[string]bool{
		"did:example:123":   true,
		"did:web:acme.org":  true,
		"did::123":          false,
		"did:example:":      false,
		"notdid:example:12": false,
		"":                  false,
	} {
		if got := ValidDID(did); got != want {
			t.Errorf("ValidDID(%q) = %v, want %v", did, got, want)
		}
	}
}
