package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"payguard/internal/detector/models"
	"payguard/pkg/platform/sentinel"
)

// PostgresFlagStore persists detector flags. The flag set for one batch is
// written in a single transaction so readers never observe a partial run.
type PostgresFlagStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresFlagStore {
	return &PostgresFlagStore{db: db}
}

func (s *PostgresFlagStore) SaveAll(ctx context.Context, flags []models.Flag) error {
	if len(flags) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save flags: begin: %w", err)
	}
	defer tx.Rollback()

	for _, f := range flags {
		metadata, err := json.Marshal(f.Metadata)
		if err != nil {
			return fmt.Errorf("encode flag metadata: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO flags (id, batch_id, identity_hash, flag_type, score, reason, metadata, resolution, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			f.ID, f.BatchID, f.IdentityHash, string(f.Type), f.Score, f.Reason, metadata,
			string(models.ResolutionPending), f.CreatedAt)
		if err != nil {
			return fmt.Errorf("save flag: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save flags: commit: %w", err)
	}
	return nil
}

func (s *PostgresFlagStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Flag, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, batch_id, identity_hash, flag_type, score, reason, metadata,
		       reviewed, resolution, reviewer, reviewed_at, notes, created_at
		FROM flags WHERE id = $1`, id)
	f, err := scanFlag(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("flag %s: %w", id, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find flag: %w", err)
	}
	return f, nil
}

func (s *PostgresFlagStore) ListByBatch(ctx context.Context, batchID string) ([]models.Flag, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, batch_id, identity_hash, flag_type, score, reason, metadata,
		       reviewed, resolution, reviewer, reviewed_at, notes, created_at
		FROM flags WHERE batch_id = $1
		ORDER BY created_at, id`, batchID)
	if err != nil {
		return nil, fmt.Errorf("list flags: %w", err)
	}
	defer rows.Close()

	var out []models.Flag
	for rows.Next() {
		f, err := scanFlag(rows)
		if err != nil {
			return nil, fmt.Errorf("list flags: %w", err)
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

func (s *PostgresFlagStore) Review(ctx context.Context, id uuid.UUID, review models.Review) error {
	reviewedAt := review.ReviewedAt
	if reviewedAt == nil {
		now := time.Now().UTC()
		reviewedAt = &now
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE flags
		SET reviewed = TRUE, resolution = $2, reviewer = $3, reviewed_at = $4, notes = $5
		WHERE id = $1`,
		id, string(review.Resolution), review.Reviewer, reviewedAt, review.Notes)
	if err != nil {
		return fmt.Errorf("review flag: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("review flag: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("flag %s: %w", id, sentinel.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFlag(row rowScanner) (*models.Flag, error) {
	var f models.Flag
	var flagType, resolution string
	var metadata []byte
	var reviewer, notes sql.NullString
	var reviewedAt sql.NullTime
	err := row.Scan(&f.ID, &f.BatchID, &f.IdentityHash, &flagType, &f.Score, &f.Reason, &metadata,
		&f.Review.Reviewed, &resolution, &reviewer, &reviewedAt, &notes, &f.CreatedAt)
	if err != nil {
		return nil, err
	}
	f.Type = models.FlagType(flagType)
	f.Review.Resolution = models.Resolution(resolution)
	f.Review.Reviewer = reviewer.String
	f.Review.Notes = notes.String
	if reviewedAt.Valid {
		t := reviewedAt.Time
		f.Review.ReviewedAt = &t
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &f.Metadata); err != nil {
			return nil, fmt.Errorf("decode flag metadata: %w", err)
		}
	}
	return &f, nil
}
