package qa

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/yanqian/chat-assistant/pkg/errors"
	"github.com/yanqian/chat-assistant/pkg/util"
)

// Config holds runtime knobs for the versioning engine.
type Config struct {
	// Now supplies the engine clock. Injectable so usage statistics and
	// "today" boundaries are deterministic under test.
	Now func() time.Time
}

// Service is the single source of truth for question->answer mappings,
// their audit trail and the moderation state machine.
type Service interface {
	Resolve(ctx context.Context, question, answer string, source Source, confidence float64) (Record, error)
	ListRecords(ctx context.Context) ([]Record, error)
	GetRecord(ctx context.Context, id uuid.UUID) (Record, error)
	UpdateAnswer(ctx context.Context, id uuid.UUID, answer string) (Record, error)
	Approve(ctx context.Context, id uuid.UUID) (Record, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ClearCache(ctx context.Context) error
	Statistics(ctx context.Context) (Statistics, error)
}

type service struct {
	repo   RecordRepository
	cache  AnswerCache
	index  VectorIndex
	logger *slog.Logger
	now    func() time.Time
	locks  *keyedMutex
}

// NewService wires up the versioning engine.
func NewService(cfg Config, repo RecordRepository, cache AnswerCache, index VectorIndex, logger *slog.Logger) Service {
	now := cfg.Now
	if now == nil {
		now = util.NowUTC
	}
	return &service{
		repo:   repo,
		cache:  cache,
		index:  index,
		logger: logger.With("component", "qa.service"),
		now:    now,
		locks:  newKeyedMutex(),
	}
}

// Resolve records one resolution of a question. Repeats still append a
// version and count as usage; history is never deduplicated.
func (s *service) Resolve(ctx context.Context, question, answer string, source Source, confidence float64) (Record, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Record{}, apperrors.Wrap("invalid_input", "question cannot be empty", nil)
	}
	if strings.TrimSpace(answer) == "" {
		return Record{}, apperrors.Wrap("invalid_input", "answer cannot be empty", nil)
	}
	if !source.Valid() {
		return Record{}, apperrors.Wrap("invalid_input", "unknown answer source", nil)
	}

	normalized := NormalizeQuestion(question)
	s.locks.lock(normalized)
	defer s.locks.unlock(normalized)

	now := s.now()
	version := Version{
		Answer:     answer,
		Source:     source,
		Confidence: confidence,
		Approved:   source.Trusted(),
		CreatedAt:  now,
	}

	record, found, err := s.repo.FindByNormalized(ctx, normalized)
	if err != nil {
		return Record{}, apperrors.Wrap("qa_error", "record lookup failed", err)
	}
	created := !found
	if found {
		record.Versions = append([]Version{version}, record.Versions...)
		record.CurrentAnswer = answer
		record.UpdatedAt = now
	} else {
		record = Record{
			ID:            uuid.New(),
			Question:      question,
			Normalized:    normalized,
			CurrentAnswer: answer,
			Versions:      []Version{version},
			CreatedAt:     now,
			UpdatedAt:     now,
		}
	}
	record.UsageCount++
	record.LastUsed = now

	if err := s.repo.Save(ctx, record); err != nil {
		return Record{}, apperrors.Wrap("qa_error", "record save failed", err)
	}
	if created {
		if err := s.index.Upsert(ctx, record.ID, record.Question); err != nil {
			s.logger.Warn("vector index upsert failed", "recordId", record.ID, "error", err)
		}
	}
	return record.Clone(), nil
}

// ListRecords returns all records, most recently used first.
func (s *service) ListRecords(ctx context.Context) ([]Record, error) {
	records, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperrors.Wrap("qa_error", "record list failed", err)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].LastUsed.Equal(records[j].LastUsed) {
			return records[i].ID.String() < records[j].ID.String()
		}
		return records[i].LastUsed.After(records[j].LastUsed)
	})
	out := make([]Record, 0, len(records))
	for _, record := range records {
		out = append(out, record.Clone())
	}
	return out, nil
}

func (s *service) GetRecord(ctx context.Context, id uuid.UUID) (Record, error) {
	record, found, err := s.repo.Get(ctx, id)
	if err != nil {
		return Record{}, apperrors.Wrap("qa_error", "record lookup failed", err)
	}
	if !found {
		return Record{}, apperrors.Wrap("not_found", "record does not exist", nil)
	}
	return record.Clone(), nil
}

// UpdateAnswer appends an admin version and promotes it to the current
// answer. Edits are not usage events: UsageCount and LastUsed stay put.
func (s *service) UpdateAnswer(ctx context.Context, id uuid.UUID, answer string) (Record, error) {
	if strings.TrimSpace(answer) == "" {
		return Record{}, apperrors.Wrap("invalid_input", "answer cannot be empty", nil)
	}
	return s.mutate(ctx, id, func(record *Record) error {
		now := s.now()
		record.Versions = append([]Version{{
			Answer:     answer,
			Source:     SourceAdmin,
			Confidence: 1.0,
			Approved:   true,
			CreatedAt:  now,
		}}, record.Versions...)
		record.CurrentAnswer = answer
		record.UpdatedAt = now
		return nil
	}, func(record Record) {
		if err := s.cache.Invalidate(ctx, record.Normalized); err != nil {
			s.logger.Warn("answer cache invalidate failed", "recordId", record.ID, "error", err)
		}
		if err := s.index.Upsert(ctx, record.ID, record.Question); err != nil {
			s.logger.Warn("vector index upsert failed", "recordId", record.ID, "error", err)
		}
	})
}

// Approve flips the most recent chatgpt version to approved. The
// transition is terminal and idempotent; it never touches CurrentAnswer.
func (s *service) Approve(ctx context.Context, id uuid.UUID) (Record, error) {
	return s.mutate(ctx, id, func(record *Record) error {
		for i := range record.Versions {
			if record.Versions[i].Source != SourceChatGPT {
				continue
			}
			if !record.Versions[i].Approved {
				record.Versions[i].Approved = true
				record.UpdatedAt = s.now()
			}
			return nil
		}
		return apperrors.Wrap("nothing_to_approve", "record has no chatgpt version", nil)
	}, nil)
}

// Delete removes the record and all versions irrecoverably.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	record, found, err := s.repo.Get(ctx, id)
	if err != nil {
		return apperrors.Wrap("qa_error", "record lookup failed", err)
	}
	if !found {
		return apperrors.Wrap("not_found", "record does not exist", nil)
	}

	s.locks.lock(record.Normalized)
	defer s.locks.unlock(record.Normalized)

	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return apperrors.Wrap("qa_error", "record delete failed", err)
	}
	if !deleted {
		return apperrors.Wrap("not_found", "record does not exist", nil)
	}
	if err := s.cache.Invalidate(ctx, record.Normalized); err != nil {
		s.logger.Warn("answer cache invalidate failed", "recordId", id, "error", err)
	}
	if err := s.index.Delete(ctx, id); err != nil {
		s.logger.Warn("vector index delete failed", "recordId", id, "error", err)
	}
	return nil
}

// ClearCache drops every cached answer. Records and their history are
// untouched; subsequent questions repopulate the cache through resolution.
func (s *service) ClearCache(ctx context.Context) error {
	if err := s.cache.ClearAll(ctx); err != nil {
		return apperrors.Wrap("qa_error", "cache clear failed", err)
	}
	s.logger.Info("answer cache cleared")
	return nil
}

func (s *service) Statistics(ctx context.Context) (Statistics, error) {
	records, err := s.repo.List(ctx)
	if err != nil {
		return Statistics{}, apperrors.Wrap("qa_error", "record list failed", err)
	}

	now := s.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	var stats Statistics
	stats.TotalQA = int64(len(records))
	for _, record := range records {
		for _, version := range record.Versions {
			switch version.Source {
			case SourceChatGPT:
				stats.ChatGPTAnswers++
			case SourceAdmin:
				stats.AdminAnswers++
			}
		}
		if !record.LastUsed.Before(dayStart) && record.LastUsed.Before(dayEnd) {
			stats.TodayQuestions++
		}
	}
	return stats, nil
}

// mutate runs a read-modify-save cycle under the record's key lock. The
// after hook fires once the new state is durable.
func (s *service) mutate(ctx context.Context, id uuid.UUID, apply func(*Record) error, after func(Record)) (Record, error) {
	record, found, err := s.repo.Get(ctx, id)
	if err != nil {
		return Record{}, apperrors.Wrap("qa_error", "record lookup failed", err)
	}
	if !found {
		return Record{}, apperrors.Wrap("not_found", "record does not exist", nil)
	}

	s.locks.lock(record.Normalized)
	defer s.locks.unlock(record.Normalized)

	// re-read under the lock; the record may have changed or vanished
	record, found, err = s.repo.Get(ctx, id)
	if err != nil {
		return Record{}, apperrors.Wrap("qa_error", "record lookup failed", err)
	}
	if !found {
		return Record{}, apperrors.Wrap("not_found", "record does not exist", nil)
	}

	if err := apply(&record); err != nil {
		return Record{}, err
	}
	if err := s.repo.Save(ctx, record); err != nil {
		return Record{}, apperrors.Wrap("qa_error", "record save failed", err)
	}
	if after != nil {
		after(record)
	}
	return record.Clone(), nil
}
