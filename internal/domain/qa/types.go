package qa

import (
	"time"

	"github.com/google/uuid"
)

// Source identifies the provenance of an answer version.
type Source string

const (
	// SourceCache marks answers served from the short-lived answer cache.
	SourceCache Source = "cache"
	// SourceDatabase marks answers matched in the knowledge store.
	SourceDatabase Source = "database"
	// SourceChatGPT marks generatively produced answers pending moderation.
	SourceChatGPT Source = "chatgpt"
	// SourceAdmin marks answers written by an administrator.
	SourceAdmin Source = "admin"
)

// Valid reports whether the source tag is one of the known values.
func (s Source) Valid() bool {
	switch s {
	case SourceCache, SourceDatabase, SourceChatGPT, SourceAdmin:
		return true
	}
	return false
}

// Trusted reports whether a version from this source is implicitly approved.
// Only chatgpt answers require an explicit moderation step.
func (s Source) Trusted() bool {
	return s != SourceChatGPT
}

// Version is one immutable historical answer entry.
type Version struct {
	Answer     string    `json:"answer"`
	Source     Source    `json:"source"`
	Confidence float64   `json:"confidence"`
	Approved   bool      `json:"approved"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Record maps one normalized question to its current answer and history.
// Versions are ordered newest first and are append-only; the record as a
// whole is only ever removed by an administrative delete.
type Record struct {
	ID            uuid.UUID `json:"id"`
	Question      string    `json:"question"`
	Normalized    string    `json:"-"`
	CurrentAnswer string    `json:"currentAnswer"`
	Versions      []Version `json:"versions"`
	UsageCount    int64     `json:"usageCount"`
	LastUsed      time.Time `json:"lastUsed"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (r Record) Clone() Record {
	out := r
	out.Versions = append([]Version(nil), r.Versions...)
	return out
}

// Statistics aggregates counters over the whole store.
type Statistics struct {
	TotalQA        int64 `json:"totalQa"`
	ChatGPTAnswers int64 `json:"chatgptAnswers"`
	AdminAnswers   int64 `json:"adminAnswers"`
	TodayQuestions int64 `json:"todayQuestions"`
}
