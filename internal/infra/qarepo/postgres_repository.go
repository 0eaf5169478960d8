package qarepo

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yanqian/chat-assistant/internal/domain/qa"
)

// PostgresRepository implements qa.RecordRepository using pgx. Versions
// live in qa_versions ordered by version_no; position 1 is the oldest so
// appends never rewrite existing rows.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository constructs the repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// FindByNormalized fetches a record by its normalized question text.
func (r *PostgresRepository) FindByNormalized(ctx context.Context, normalized string) (qa.Record, bool, error) {
	return r.fetchOne(ctx, `
		SELECT id, question, normalized, current_answer, usage_count, last_used, created_at, updated_at
		FROM qa_records
		WHERE normalized = $1
		LIMIT 1
	`, normalized)
}

// Get fetches a record by id.
func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (qa.Record, bool, error) {
	return r.fetchOne(ctx, `
		SELECT id, question, normalized, current_answer, usage_count, last_used, created_at, updated_at
		FROM qa_records
		WHERE id = $1
		LIMIT 1
	`, id)
}

// List returns every record with its full version history.
func (r *PostgresRepository) List(ctx context.Context) ([]qa.Record, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, question, normalized, current_answer, usage_count, last_used, created_at, updated_at
		FROM qa_records
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []qa.Record
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		index[record.ID] = len(records)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	versionRows, err := r.pool.Query(ctx, `
		SELECT record_id, answer, source, confidence, approved, created_at
		FROM qa_versions
		ORDER BY record_id, version_no DESC
	`)
	if err != nil {
		return nil, err
	}
	defer versionRows.Close()
	for versionRows.Next() {
		var (
			recordID uuid.UUID
			version  qa.Version
		)
		if err := versionRows.Scan(&recordID, &version.Answer, &version.Source, &version.Confidence, &version.Approved, &version.CreatedAt); err != nil {
			return nil, err
		}
		if i, ok := index[recordID]; ok {
			records[i].Versions = append(records[i].Versions, version)
		}
	}
	return records, versionRows.Err()
}

// Save upserts the record row and appends any versions not yet stored.
// Runs in one transaction so readers never observe a partial record.
func (r *PostgresRepository) Save(ctx context.Context, record qa.Record) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO qa_records (id, question, normalized, current_answer, usage_count, last_used, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			current_answer = EXCLUDED.current_answer,
			usage_count = EXCLUDED.usage_count,
			last_used = EXCLUDED.last_used,
			updated_at = EXCLUDED.updated_at
	`, record.ID, record.Question, record.Normalized, record.CurrentAnswer, record.UsageCount, record.LastUsed, record.CreatedAt, record.UpdatedAt)
	if err != nil {
		return err
	}

	var stored int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM qa_versions WHERE record_id = $1`, record.ID).Scan(&stored); err != nil {
		return err
	}

	total := len(record.Versions)
	// versions are newest-first in memory; new entries sit at the front
	for i := total - stored - 1; i >= 0; i-- {
		version := record.Versions[i]
		versionNo := total - i
		_, err = tx.Exec(ctx, `
			INSERT INTO qa_versions (record_id, version_no, answer, source, confidence, approved, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, record.ID, versionNo, version.Answer, version.Source, version.Confidence, version.Approved, version.CreatedAt)
		if err != nil {
			return err
		}
	}

	// approval flips mutate the stored flag of existing rows
	for i := total - 1; i >= total-stored && i >= 0; i-- {
		version := record.Versions[i]
		versionNo := total - i
		_, err = tx.Exec(ctx, `
			UPDATE qa_versions SET approved = $1
			WHERE record_id = $2 AND version_no = $3 AND approved <> $1
		`, version.Approved, record.ID, versionNo)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// Delete removes the record and its versions atomically.
func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM qa_versions WHERE record_id = $1`, id); err != nil {
		return false, err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM qa_records WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRepository) fetchOne(ctx context.Context, query string, arg any) (qa.Record, bool, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return qa.Record{}, false, err
	}
	record, err := pgx.CollectOneRow(rows, func(row pgx.CollectableRow) (qa.Record, error) {
		return scanRecord(row)
	})
	if err != nil {
		if err == pgx.ErrNoRows {
			return qa.Record{}, false, nil
		}
		return qa.Record{}, false, err
	}

	versionRows, err := r.pool.Query(ctx, `
		SELECT answer, source, confidence, approved, created_at
		FROM qa_versions
		WHERE record_id = $1
		ORDER BY version_no DESC
	`, record.ID)
	if err != nil {
		return qa.Record{}, false, err
	}
	defer versionRows.Close()
	for versionRows.Next() {
		var version qa.Version
		if err := versionRows.Scan(&version.Answer, &version.Source, &version.Confidence, &version.Approved, &version.CreatedAt); err != nil {
			return qa.Record{}, false, err
		}
		record.Versions = append(record.Versions, version)
	}
	return record, true, versionRows.Err()
}

func scanRecord(row pgx.Row) (qa.Record, error) {
	var record qa.Record
	err := row.Scan(&record.ID, &record.Question, &record.Normalized, &record.CurrentAnswer,
		&record.UsageCount, &record.LastUsed, &record.CreatedAt, &record.UpdatedAt)
	return record, err
}

var _ qa.RecordRepository = (*PostgresRepository)(nil)
