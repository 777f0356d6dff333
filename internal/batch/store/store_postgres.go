package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"payguard/internal/batch/models"
	"payguard/internal/ledger"
	"payguard/pkg/platform/sentinel"
)

// PostgresStore persists payroll batches in PostgreSQL. Records live in a
// side table keyed by (batch_hash, position) so row order survives reloads.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, batch *models.PayrollBatch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save batch: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO payroll_batches (batch_hash, total_amount, record_count, flagged_count, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		batch.BatchHash, batch.TotalAmount.String(), batch.RecordCount,
		batch.FlaggedCount, string(batch.Status), batch.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("batch exists: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("save batch: %w", err)
	}

	for pos, record := range batch.Records {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO payroll_records (batch_hash, position, identity_hash, amount, status, flag_ids)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			batch.BatchHash, pos, record.IdentityHash, record.Amount.String(),
			string(record.Status), pq.Array(flagIDStrings(record.FlagIDs)))
		if err != nil {
			return fmt.Errorf("save batch record %d: %w", pos, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save batch: commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, batch *models.PayrollBatch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("update batch: begin: %w", err)
	}
	defer tx.Rollback()

	var txHash, receiptStatus sql.NullString
	var ledgerSeq sql.NullInt64
	if batch.Receipt != nil {
		txHash = sql.NullString{String: batch.Receipt.TxHash, Valid: true}
		receiptStatus = sql.NullString{String: string(batch.Receipt.Status), Valid: true}
		ledgerSeq = sql.NullInt64{Int64: int64(batch.Receipt.LedgerSeq), Valid: true}
	}
	result, err := tx.ExecContext(ctx, `
		UPDATE payroll_batches
		SET flagged_count = $2, status = $3, receipt_tx_hash = $4, receipt_ledger_seq = $5, receipt_status = $6
		WHERE batch_hash = $1`,
		batch.BatchHash, batch.FlaggedCount, string(batch.Status), txHash, ledgerSeq, receiptStatus)
	if err != nil {
		return fmt.Errorf("update batch: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update batch: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("batch %s: %w", batch.BatchHash, sentinel.ErrNotFound)
	}

	for pos, record := range batch.Records {
		_, err = tx.ExecContext(ctx, `
			UPDATE payroll_records SET status = $3, flag_ids = $4
			WHERE batch_hash = $1 AND position = $2`,
			batch.BatchHash, pos, string(record.Status), pq.Array(flagIDStrings(record.FlagIDs)))
		if err != nil {
			return fmt.Errorf("update batch record %d: %w", pos, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("update batch: commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByHash(ctx context.Context, batchHash string) (*models.PayrollBatch, error) {
	batch := &models.PayrollBatch{}
	var total, status string
	var txHash, receiptStatus sql.NullString
	var ledgerSeq sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT batch_hash, total_amount, record_count, flagged_count, status,
		       receipt_tx_hash, receipt_ledger_seq, receipt_status, created_at
		FROM payroll_batches WHERE batch_hash = $1`,
		batchHash).Scan(&batch.BatchHash, &total, &batch.RecordCount, &batch.FlaggedCount,
		&status, &txHash, &ledgerSeq, &receiptStatus, &batch.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("batch %s: %w", batchHash, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find batch: %w", err)
	}
	batch.Status = models.BatchStatus(status)
	if batch.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("find batch: total amount: %w", err)
	}
	if txHash.Valid {
		batch.Receipt = &ledger.Receipt{
			TxHash:    txHash.String,
			LedgerSeq: uint32(ledgerSeq.Int64),
			Status:    ledger.ReceiptStatus(receiptStatus.String),
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT identity_hash, amount, status, flag_ids
		FROM payroll_records WHERE batch_hash = $1
		ORDER BY position`,
		batchHash)
	if err != nil {
		return nil, fmt.Errorf("find batch records: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var record models.PayrollRecord
		var amount, recStatus string
		var ids pq.StringArray
		if err := rows.Scan(&record.IdentityHash, &amount, &recStatus, &ids); err != nil {
			return nil, fmt.Errorf("scan batch record: %w", err)
		}
		record.Status = models.RecordStatus(recStatus)
		if record.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("scan batch record: amount: %w", err)
		}
		for _, raw := range ids {
			id, err := uuid.Parse(raw)
			if err != nil {
				return nil, fmt.Errorf("scan batch record: flag id: %w", err)
			}
			record.FlagIDs = append(record.FlagIDs, id)
		}
		batch.Records = append(batch.Records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find batch records: %w", err)
	}
	return batch, nil
}

func flagIDStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
