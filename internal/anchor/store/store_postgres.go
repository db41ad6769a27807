package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"veritas/internal/anchor/models"
	id "veritas/pkg/domain"
)

// PostgresStore persists anchor batches in PostgreSQL. Batch membership is
// kept in a separate positional table so credential lookups stay indexed.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed anchor store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) SaveBatch(ctx context.Context, batch models.AnchorBatch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save batch: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO anchor_batches (id, merkle_root, status, tx_hash, block_number, attempt_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			tx_hash = EXCLUDED.tx_hash,
			block_number = EXCLUDED.block_number,
			attempt_count = EXCLUDED.attempt_count,
			updated_at = EXCLUDED.updated_at`,
		batch.ID.String(), batch.MerkleRoot, string(batch.Status), batch.TxHash,
		batch.BlockNumber, batch.AttemptCount, batch.CreatedAt, batch.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save anchor batch: %w", err)
	}

	for i, cid := range batch.CredentialIDs {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO anchor_batch_members (batch_id, credential_id, position, leaf_hash)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (batch_id, position) DO NOTHING`,
			batch.ID.String(), cid.String(), i, batch.LeafHashes[i])
		if err != nil {
			return fmt.Errorf("save batch member: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save batch: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindBatch(ctx context.Context, batchID id.BatchID) (models.AnchorBatch, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, merkle_root, status, tx_hash, block_number, attempt_count, created_at, updated_at
		FROM anchor_batches WHERE id = $1`, batchID.String())
	batch, err := scanBatch(row)
	if err != nil {
		return models.AnchorBatch{}, err
	}
	if err := s.loadMembers(ctx, &batch); err != nil {
		return models.AnchorBatch{}, err
	}
	return batch, nil
}

func (s *PostgresStore) FindBatchByCredential(ctx context.Context, credentialID id.CredentialID) (models.AnchorBatch, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT b.id, b.merkle_root, b.status, b.tx_hash, b.block_number, b.attempt_count, b.created_at, b.updated_at
		FROM anchor_batches b
		JOIN anchor_batch_members m ON m.batch_id = b.id
		WHERE m.credential_id = $1
		ORDER BY b.created_at DESC
		LIMIT 1`, credentialID.String())
	batch, err := scanBatch(row)
	if err != nil {
		return models.AnchorBatch{}, err
	}
	if err := s.loadMembers(ctx, &batch); err != nil {
		return models.AnchorBatch{}, err
	}
	return batch, nil
}

func (s *PostgresStore) ListByStatus(ctx context.Context, status models.BatchStatus) ([]models.AnchorBatch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, merkle_root, status, tx_hash, block_number, attempt_count, created_at, updated_at
		FROM anchor_batches WHERE status = $1
		ORDER BY created_at`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var out []models.AnchorBatch
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		if err := s.loadMembers(ctx, &batch); err != nil {
			return nil, err
		}
		out = append(out, batch)
	}
	return out, rows.Err()
}

func (s *PostgresStore) loadMembers(ctx context.Context, batch *models.AnchorBatch) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT credential_id, leaf_hash FROM anchor_batch_members
		WHERE batch_id = $1 ORDER BY position`, batch.ID.String())
	if err != nil {
		return fmt.Errorf("load batch members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var cidRaw, leaf string
		if err := rows.Scan(&cidRaw, &leaf); err != nil {
			return fmt.Errorf("scan batch member: %w", err)
		}
		cid, err := id.ParseCredentialID(cidRaw)
		if err != nil {
			return fmt.Errorf("corrupt batch member id: %w", err)
		}
		batch.CredentialIDs = append(batch.CredentialIDs, cid)
		batch.LeafHashes = append(batch.LeafHashes, leaf)
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatch(row rowScanner) (models.AnchorBatch, error) {
	var (
		batch     models.AnchorBatch
		rawID     string
		rawStatus string
		txHash    sql.NullString
		blockNum  sql.NullInt64
	)
	err := row.Scan(&rawID, &batch.MerkleRoot, &rawStatus, &txHash, &blockNum,
		&batch.AttemptCount, &batch.CreatedAt, &batch.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.AnchorBatch{}, ErrNotFound
	}
	if err != nil {
		return models.AnchorBatch{}, fmt.Errorf("scan anchor batch: %w", err)
	}
	batch.ID, err = id.ParseBatchID(rawID)
	if err != nil {
		return models.AnchorBatch{}, fmt.Errorf("corrupt batch id: %w", err)
	}
	batch.Status = models.BatchStatus(rawStatus)
	batch.TxHash = txHash.String
	batch.BlockNumber = blockNum.Int64
	return batch, nil
}

// PostgresDeadLetter is a PostgreSQL-backed DeadLetterStore.
type PostgresDeadLetter struct {
	db *sql.DB
}

// NewPostgresDeadLetter constructs a PostgreSQL-backed dead-letter queue.
func NewPostgresDeadLetter(db *sql.DB) *PostgresDeadLetter {
	return &PostgresDeadLetter{db: db}
}

func (s *PostgresDeadLetter) Push(ctx context.Context, entry models.DeadLetterEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO anchor_dead_letters (batch_id, reason, attempt_count, failed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (batch_id) DO UPDATE SET
			reason = EXCLUDED.reason,
			attempt_count = EXCLUDED.attempt_count,
			failed_at = EXCLUDED.failed_at`,
		entry.BatchID.String(), entry.Reason, entry.AttemptCount, entry.FailedAt)
	if err != nil {
		return fmt.Errorf("push dead letter: %w", err)
	}
	return nil
}

func (s *PostgresDeadLetter) Find(ctx context.Context, batchID id.BatchID) (models.DeadLetterEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT batch_id, reason, attempt_count, failed_at
		FROM anchor_dead_letters WHERE batch_id = $1`, batchID.String())
	return scanDeadLetter(row)
}

func (s *PostgresDeadLetter) Remove(ctx context.Context, batchID id.BatchID) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM anchor_dead_letters WHERE batch_id = $1`, batchID.String())
	if err != nil {
		return fmt.Errorf("remove dead letter: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresDeadLetter) List(ctx context.Context) ([]models.DeadLetterEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT batch_id, reason, attempt_count, failed_at
		FROM anchor_dead_letters ORDER BY failed_at`)
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	defer rows.Close()

	var out []models.DeadLetterEntry
	for rows.Next() {
		entry, err := scanDeadLetter(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func scanDeadLetter(row rowScanner) (models.DeadLetterEntry, error) {
	var (
		entry models.DeadLetterEntry
		rawID string
	)
	err := row.Scan(&rawID, &entry.Reason, &entry.AttemptCount, &entry.FailedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DeadLetterEntry{}, ErrNotFound
	}
	if err != nil {
		return models.DeadLetterEntry{}, fmt.Errorf("scan dead letter: %w", err)
	}
	entry.BatchID, err = id.ParseBatchID(rawID)
	if err != nil {
		return models.DeadLetterEntry{}, fmt.Errorf("corrupt dead letter id: %w", err)
	}
	return entry, nil
}
