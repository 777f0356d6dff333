package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"payguard/internal/ledger"
	"payguard/internal/registry/models"
	"payguard/pkg/platform/sentinel"
)

// PostgresStore persists staff identities in PostgreSQL. Identity rows are
// append-only apart from the verified/active flags; per-field hashes live in
// a side table so duplicate channels can be queried by index.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed staff store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, identity *models.StaffIdentity) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save staff identity: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO staff_identities (identity_hash, sealed_name, pay_grade, verified, active, registered_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		identity.IdentityHash, identity.SealedName, identity.PayGrade,
		identity.Verified, identity.Active, identity.RegisteredAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("staff identity exists: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("save staff identity: %w", err)
	}

	for channel, fieldHash := range identity.FieldHashes {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO staff_field_hashes (identity_hash, channel, field_hash)
			VALUES ($1, $2, $3)`,
			identity.IdentityHash, string(channel), fieldHash)
		if err != nil {
			return fmt.Errorf("save field hash %s: %w", channel, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save staff identity: commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByIdentityHash(ctx context.Context, hash string) (*models.StaffIdentity, error) {
	identities, err := s.FindManyByIdentityHash(ctx, []string{hash})
	if err != nil {
		return nil, err
	}
	if len(identities) == 0 {
		return nil, fmt.Errorf("staff identity %s: %w", hash, sentinel.ErrNotFound)
	}
	return identities[0], nil
}

func (s *PostgresStore) FindManyByIdentityHash(ctx context.Context, hashes []string) ([]*models.StaffIdentity, error) {
	if len(hashes) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT identity_hash, sealed_name, pay_grade, verified, active, registered_at
		FROM staff_identities
		WHERE identity_hash = ANY($1)`,
		pq.Array(hashes))
	if err != nil {
		return nil, fmt.Errorf("find staff identities: %w", err)
	}
	defer rows.Close()

	byHash := make(map[string]*models.StaffIdentity)
	var out []*models.StaffIdentity
	for rows.Next() {
		identity := &models.StaffIdentity{FieldHashes: make(map[models.FieldChannel]string)}
		if err := rows.Scan(&identity.IdentityHash, &identity.SealedName, &identity.PayGrade,
			&identity.Verified, &identity.Active, &identity.RegisteredAt); err != nil {
			return nil, fmt.Errorf("scan staff identity: %w", err)
		}
		byHash[identity.IdentityHash] = identity
		out = append(out, identity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find staff identities: %w", err)
	}
	if len(out) == 0 {
		return nil, nil
	}

	if err := s.loadFieldHashes(ctx, byHash); err != nil {
		return nil, err
	}
	if err := s.loadReceipts(ctx, byHash); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) FindByFieldHash(ctx context.Context, channel models.FieldChannel, fieldHash string) ([]*models.StaffIdentity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT identity_hash FROM staff_field_hashes
		WHERE channel = $1 AND field_hash = $2`,
		string(channel), fieldHash)
	if err != nil {
		return nil, fmt.Errorf("find by field hash: %w", err)
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("scan field hash row: %w", err)
		}
		hashes = append(hashes, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find by field hash: %w", err)
	}
	return s.FindManyByIdentityHash(ctx, hashes)
}

func (s *PostgresStore) MarkVerified(ctx context.Context, identityHash string) error {
	return s.setFlag(ctx, `UPDATE staff_identities SET verified = TRUE WHERE identity_hash = $1`, identityHash)
}

func (s *PostgresStore) Deactivate(ctx context.Context, identityHash string) error {
	return s.setFlag(ctx, `UPDATE staff_identities SET active = FALSE WHERE identity_hash = $1`, identityHash)
}

func (s *PostgresStore) setFlag(ctx context.Context, query, identityHash string) error {
	result, err := s.db.ExecContext(ctx, query, identityHash)
	if err != nil {
		return fmt.Errorf("update staff identity: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update staff identity: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("staff identity %s: %w", identityHash, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) AttachReceipt(ctx context.Context, identityHash string, receipt ledger.Receipt) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO staff_receipts (tx_hash, identity_hash, ledger_seq, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tx_hash) DO UPDATE SET ledger_seq = EXCLUDED.ledger_seq, status = EXCLUDED.status`,
		receipt.TxHash, identityHash, receipt.LedgerSeq, string(receipt.Status))
	if err != nil {
		return fmt.Errorf("attach receipt: %w", err)
	}
	return nil
}

func (s *PostgresStore) loadFieldHashes(ctx context.Context, byHash map[string]*models.StaffIdentity) error {
	hashes := make([]string, 0, len(byHash))
	for h := range byHash {
		hashes = append(hashes, h)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT identity_hash, channel, field_hash FROM staff_field_hashes
		WHERE identity_hash = ANY($1)`,
		pq.Array(hashes))
	if err != nil {
		return fmt.Errorf("load field hashes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var identityHash, channel, fieldHash string
		if err := rows.Scan(&identityHash, &channel, &fieldHash); err != nil {
			return fmt.Errorf("scan field hash: %w", err)
		}
		if identity, ok := byHash[identityHash]; ok {
			identity.FieldHashes[models.FieldChannel(channel)] = fieldHash
		}
	}
	return rows.Err()
}

func (s *PostgresStore) loadReceipts(ctx context.Context, byHash map[string]*models.StaffIdentity) error {
	hashes := make([]string, 0, len(byHash))
	for h := range byHash {
		hashes = append(hashes, h)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT identity_hash, tx_hash, ledger_seq, status FROM staff_receipts
		WHERE identity_hash = ANY($1)
		ORDER BY tx_hash`,
		pq.Array(hashes))
	if err != nil {
		return fmt.Errorf("load receipts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var identityHash string
		var receipt ledger.Receipt
		var status string
		if err := rows.Scan(&identityHash, &receipt.TxHash, &receipt.LedgerSeq, &status); err != nil {
			return fmt.Errorf("scan receipt: %w", err)
		}
		receipt.Status = ledger.ReceiptStatus(status)
		if identity, ok := byHash[identityHash]; ok {
			identity.Receipts = append(identity.Receipts, receipt)
		}
	}
	return rows.Err()
}
