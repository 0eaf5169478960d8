package qa

import (
	"context"

	"github.com/google/uuid"
)

// RecordRepository encapsulates persistence for question records.
// Implementations must make Save observable atomically: a reader never
// sees a record without its versions.
type RecordRepository interface {
	FindByNormalized(ctx context.Context, normalized string) (Record, bool, error)
	Get(ctx context.Context, id uuid.UUID) (Record, bool, error)
	List(ctx context.Context) ([]Record, error)
	Save(ctx context.Context, record Record) error
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

// AnswerCache is the short-lived answer store consulted before the
// knowledge base. The engine invalidates per key and clears wholesale on
// admin request; population happens in the resolver pipeline.
type AnswerCache interface {
	Get(ctx context.Context, normalized string) (CachedAnswer, bool, error)
	Set(ctx context.Context, normalized string, answer CachedAnswer) error
	Invalidate(ctx context.Context, normalized string) error
	ClearAll(ctx context.Context) error
}

// CachedAnswer is the payload stored per normalized question.
type CachedAnswer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// VectorIndex maintains the similarity-search index over questions.
// Implementations own their embedder so callers never handle raw vectors.
type VectorIndex interface {
	Upsert(ctx context.Context, recordID uuid.UUID, question string) error
	Search(ctx context.Context, question string) (IndexHit, bool, error)
	Delete(ctx context.Context, recordID uuid.UUID) error
}

// IndexHit is the best match for a similarity search.
type IndexHit struct {
	RecordID uuid.UUID
	Score    float64
}
