package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"veritas/internal/credential/models"
	id "veritas/pkg/domain"
)

// PostgresStore persists credentials in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed credential store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, credential models.CredentialRecord) error {
	claimsBytes, err := json.Marshal(credential.Claims)
	if err != nil {
		return fmt.Errorf("marshal credential claims: %w", err)
	}
	query := `
		INSERT INTO credentials (id, tenant_id, subject_did, issuer_did, claims, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			tenant_id = EXCLUDED.tenant_id,
			subject_did = EXCLUDED.subject_did,
			issuer_did = EXCLUDED.issuer_did,
			claims = EXCLUDED.claims,
			issued_at = EXCLUDED.issued_at,
			expires_at = EXCLUDED.expires_at`
	var expiresAt sql.NullTime
	if !credential.ExpiresAt.IsZero() {
		expiresAt = sql.NullTime{Time: credential.ExpiresAt, Valid: true}
	}
	_, err = s.db.ExecContext(ctx, query,
		credential.ID.String(),
		credential.TenantID.String(),
		credential.SubjectDID,
		credential.IssuerDID,
		claimsBytes,
		credential.IssuedAt,
		expiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, credentialID id.CredentialID) (models.CredentialRecord, error) {
	query := `
		SELECT id, tenant_id, subject_did, issuer_did, claims, issued_at, expires_at
		FROM credentials
		WHERE id = $1`
	row := s.db.QueryRowContext(ctx, query, credentialID.String())

	var (
		rawID       string
		rawTenantID string
		record      models.CredentialRecord
		claimsBytes []byte
		expiresAt   sql.NullTime
	)
	err := row.Scan(&rawID, &rawTenantID, &record.SubjectDID, &record.IssuerDID, &claimsBytes, &record.IssuedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.CredentialRecord{}, ErrNotFound
	}
	if err != nil {
		return models.CredentialRecord{}, fmt.Errorf("query credential: %w", err)
	}

	if record.ID, err = id.ParseCredentialID(rawID); err != nil {
		return models.CredentialRecord{}, fmt.Errorf("parse stored credential id: %w", err)
	}
	if record.TenantID, err = id.ParseTenantID(rawTenantID); err != nil {
		return models.CredentialRecord{}, fmt.Errorf("parse stored tenant id: %w", err)
	}
	if err := json.Unmarshal(claimsBytes, &record.Claims); err != nil {
		return models.CredentialRecord{}, fmt.Errorf("unmarshal credential claims: %w", err)
	}
	if expiresAt.Valid {
		record.ExpiresAt = expiresAt.Time
	}
	return record, nil
}
