package vectorindex

import (
	"context"
	"math"
	"sync"

	"github.com/google/uuid"

	"github.com/yanqian/chat-assistant/internal/domain/qa"
)

type memoryEntry struct {
	question  string
	embedding []float32
}

// MemoryIndex is an in-memory qa.VectorIndex using cosine similarity.
type MemoryIndex struct {
	mu       sync.RWMutex
	embedder Embedder
	entries  map[uuid.UUID]memoryEntry
}

// NewMemoryIndex constructs an index backed by process memory.
func NewMemoryIndex(embedder Embedder) *MemoryIndex {
	return &MemoryIndex{
		embedder: embedder,
		entries:  make(map[uuid.UUID]memoryEntry),
	}
}

// Upsert implements qa.VectorIndex.
func (i *MemoryIndex) Upsert(ctx context.Context, recordID uuid.UUID, question string) error {
	embedding, err := i.embedder.Embed(ctx, question)
	if err != nil {
		return err
	}
	i.mu.Lock()
	i.entries[recordID] = memoryEntry{question: question, embedding: embedding}
	i.mu.Unlock()
	return nil
}

// Search implements qa.VectorIndex. The score is cosine similarity.
func (i *MemoryIndex) Search(ctx context.Context, question string) (qa.IndexHit, bool, error) {
	embedding, err := i.embedder.Embed(ctx, question)
	if err != nil {
		return qa.IndexHit{}, false, err
	}

	i.mu.RLock()
	defer i.mu.RUnlock()
	var (
		best   qa.IndexHit
		hasAny bool
	)
	for id, entry := range i.entries {
		score := cosineSimilarity(embedding, entry.embedding)
		if !hasAny || score > best.Score {
			hasAny = true
			best = qa.IndexHit{RecordID: id, Score: score}
		}
	}
	if !hasAny {
		return qa.IndexHit{}, false, nil
	}
	return best, true, nil
}

// Delete implements qa.VectorIndex.
func (i *MemoryIndex) Delete(_ context.Context, recordID uuid.UUID) error {
	i.mu.Lock()
	delete(i.entries, recordID)
	i.mu.Unlock()
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	length := len(a)
	if len(b) < length {
		length = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < length; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

var _ qa.VectorIndex = (*MemoryIndex)(nil)
