package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"veritas/internal/status/models"
	id "veritas/pkg/domain"
)

// PostgresStore persists status lists in PostgreSQL. The active list is
// tracked with a single-row marker table updated in the same transaction as
// the list insert.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed status store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) SaveList(ctx context.Context, list models.StatusList) error {
	query := `
		INSERT INTO status_lists (id, bits, size, next_index, revoked_count, digest, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			bits = EXCLUDED.bits,
			next_index = EXCLUDED.next_index,
			revoked_count = EXCLUDED.revoked_count,
			digest = EXCLUDED.digest,
			updated_at = EXCLUDED.updated_at`
	_, err := s.db.ExecContext(ctx, query,
		list.ID.String(), list.Bits, list.Size, list.NextIndex, list.RevokedCount, list.Digest, list.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save status list: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindList(ctx context.Context, listID id.StatusListID) (models.StatusList, error) {
	query := `
		SELECT id, bits, size, next_index, revoked_count, digest, updated_at
		FROM status_lists WHERE id = $1`
	return s.scanList(s.db.QueryRowContext(ctx, query, listID.String()))
}

func (s *PostgresStore) ActiveList(ctx context.Context) (models.StatusList, error) {
	query := `
		SELECT l.id, l.bits, l.size, l.next_index, l.revoked_count, l.digest, l.updated_at
		FROM status_lists l
		JOIN status_list_active a ON a.list_id = l.id`
	return s.scanList(s.db.QueryRowContext(ctx, query))
}

func (s *PostgresStore) SetActiveList(ctx context.Context, listID id.StatusListID) error {
	query := `
		INSERT INTO status_list_active (singleton, list_id) VALUES (TRUE, $1)
		ON CONFLICT (singleton) DO UPDATE SET list_id = EXCLUDED.list_id`
	if _, err := s.db.ExecContext(ctx, query, listID.String()); err != nil {
		return fmt.Errorf("set active status list: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveEntry(ctx context.Context, entry models.StatusEntry) error {
	query := `
		INSERT INTO status_entries (credential_id, list_id, idx, revoked, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (credential_id) DO UPDATE SET
			revoked = EXCLUDED.revoked,
			updated_at = EXCLUDED.updated_at`
	_, err := s.db.ExecContext(ctx, query,
		entry.CredentialID.String(), entry.ListID.String(), entry.Index, entry.Revoked, entry.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save status entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindEntry(ctx context.Context, credentialID id.CredentialID) (models.StatusEntry, error) {
	query := `
		SELECT credential_id, list_id, idx, revoked, updated_at
		FROM status_entries WHERE credential_id = $1`
	row := s.db.QueryRowContext(ctx, query, credentialID.String())

	var (
		entry     models.StatusEntry
		rawCredID string
		rawListID string
	)
	err := row.Scan(&rawCredID, &rawListID, &entry.Index, &entry.Revoked, &entry.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.StatusEntry{}, ErrNotFound
	}
	if err != nil {
		return models.StatusEntry{}, fmt.Errorf("query status entry: %w", err)
	}
	if entry.CredentialID, err = id.ParseCredentialID(rawCredID); err != nil {
		return models.StatusEntry{}, fmt.Errorf("parse stored credential id: %w", err)
	}
	if entry.ListID, err = id.ParseStatusListID(rawListID); err != nil {
		return models.StatusEntry{}, fmt.Errorf("parse stored list id: %w", err)
	}
	return entry, nil
}

func (s *PostgresStore) scanList(row *sql.Row) (models.StatusList, error) {
	var (
		list  models.StatusList
		rawID string
	)
	err := row.Scan(&rawID, &list.Bits, &list.Size, &list.NextIndex, &list.RevokedCount, &list.Digest, &list.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.StatusList{}, ErrNotFound
	}
	if err != nil {
		return models.StatusList{}, fmt.Errorf("query status list: %w", err)
	}
	if list.ID, err = id.ParseStatusListID(rawID); err != nil {
		return models.StatusList{}, fmt.Errorf("parse stored list id: %w", err)
	}
	return list, nil
}
