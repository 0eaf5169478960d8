package vectorindex

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/yanqian/chat-assistant/internal/domain/qa"
)

// PostgresIndex implements qa.VectorIndex on pgvector.
type PostgresIndex struct {
	pool     *pgxpool.Pool
	embedder Embedder
}

// NewPostgresIndex constructs the index.
func NewPostgresIndex(pool *pgxpool.Pool, embedder Embedder) *PostgresIndex {
	return &PostgresIndex{pool: pool, embedder: embedder}
}

// Upsert implements qa.VectorIndex.
func (i *PostgresIndex) Upsert(ctx context.Context, recordID uuid.UUID, question string) error {
	embedding, err := i.embedder.Embed(ctx, question)
	if err != nil {
		return err
	}
	_, err = i.pool.Exec(ctx, `
		INSERT INTO qa_embeddings (record_id, question, embedding)
		VALUES ($1, $2, $3)
		ON CONFLICT (record_id) DO UPDATE SET
			question = EXCLUDED.question,
			embedding = EXCLUDED.embedding
	`, recordID, question, pgvector.NewVector(embedding))
	return err
}

// Search implements qa.VectorIndex. The cosine distance operator returns
// 1 - similarity, so the score is folded back to similarity.
func (i *PostgresIndex) Search(ctx context.Context, question string) (qa.IndexHit, bool, error) {
	embedding, err := i.embedder.Embed(ctx, question)
	if err != nil {
		return qa.IndexHit{}, false, err
	}
	rows, err := i.pool.Query(ctx, `
		SELECT record_id, embedding <=> $1 AS distance
		FROM qa_embeddings
		ORDER BY embedding <=> $1
		LIMIT 1
	`, pgvector.NewVector(embedding))
	if err != nil {
		return qa.IndexHit{}, false, err
	}
	defer rows.Close()
	if !rows.Next() {
		return qa.IndexHit{}, false, rows.Err()
	}
	var (
		recordID uuid.UUID
		distance float64
	)
	if err := rows.Scan(&recordID, &distance); err != nil {
		return qa.IndexHit{}, false, err
	}
	return qa.IndexHit{RecordID: recordID, Score: 1 - distance}, true, rows.Err()
}

// Delete implements qa.VectorIndex.
func (i *PostgresIndex) Delete(ctx context.Context, recordID uuid.UUID) error {
	_, err := i.pool.Exec(ctx, `DELETE FROM qa_embeddings WHERE record_id = $1`, recordID)
	return err
}

var _ qa.VectorIndex = (*PostgresIndex)(nil)
