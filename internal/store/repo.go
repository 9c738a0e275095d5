package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/abhisek/tutorly/internal/level"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit  int       // max results (0 = unlimited)
	After  int64     // sequence > After
	Before int64     // sequence < Before
	From   time.Time // timestamp >= From
	To     time.Time // timestamp <= To

	// Purpose and SessionID restrict LLM event queries.
	Purpose   string
	SessionID string
}

// Snapshot is one persisted session state. Data is opaque to the store.
type Snapshot struct {
	ID        int
	SessionID string
	Sequence  int64
	Timestamp time.Time
	Data      json.RawMessage
}

// SessionInfo summarizes a stored session for listings.
type SessionInfo struct {
	SessionID string
	Sequence  int64
	UpdatedAt time.Time
	Snapshots int
}

// SnapshotRepo manages session snapshots.
type SnapshotRepo interface {
	// SaveSnapshot stores the state of a session after transition seq.
	SaveSnapshot(ctx context.Context, sessionID string, seq int64, data json.RawMessage) error

	// LoadSnapshot returns the data of the most recent snapshot for a
	// session, or ErrNotFound.
	LoadSnapshot(ctx context.Context, sessionID string) (json.RawMessage, error)

	// Latest returns the most recent snapshot record, or ErrNotFound.
	Latest(ctx context.Context, sessionID string) (*Snapshot, error)

	// Prune deletes all but the N most recent snapshots of a session.
	Prune(ctx context.Context, sessionID string, keep int) error

	// ListSessions returns stored sessions, most recently updated first.
	ListSessions(ctx context.Context, limit int) ([]SessionInfo, error)
}

// LevelRepo records each learner's knowledge level per topic.
type LevelRepo interface {
	// LevelFor returns the learner's level for topic, Beginner if unset.
	LevelFor(ctx context.Context, learnerID, topic string) (level.Level, error)

	// SetLevel records the learner's level for topic.
	SetLevel(ctx context.Context, learnerID, topic string, lvl level.Level) error
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	SessionID    string // empty for calls outside a session
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMRequestRecord is a stored LLM request event.
type LLMRequestRecord struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	LLMRequestEventData
}

// PurposeUsage aggregates LLM usage for one purpose label.
type PurposeUsage struct {
	Purpose      string
	Calls        int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int64
}

// ModelUsage aggregates LLM usage for one model.
type ModelUsage struct {
	Model        string
	Calls        int
	InputTokens  int
	OutputTokens int
}

// TransitionEventData captures one committed session transition.
type TransitionEventData struct {
	SessionID string
	LearnerID string
	Topic     string
	Op        string
	From      string
	To        string
	StepIndex int
	Progress  float64
}

// TransitionRecord is a stored transition event.
type TransitionRecord struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	TransitionEventData
}

// EventRepo provides append and query access to events.
type EventRepo interface {
	// AppendLLMRequest records an LLM API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error

	// QueryLLMEvents returns LLM events, newest first.
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMRequestRecord, error)

	// GetLLMEvent returns one LLM event by ID, or ErrNotFound.
	GetLLMEvent(ctx context.Context, id int) (*LLMRequestRecord, error)

	// LLMUsageByPurpose aggregates token usage per purpose.
	LLMUsageByPurpose(ctx context.Context) ([]PurposeUsage, error)

	// LLMUsageByModel aggregates token usage per model.
	LLMUsageByModel(ctx context.Context) ([]ModelUsage, error)

	// AppendTransition records a session transition.
	AppendTransition(ctx context.Context, data TransitionEventData) error

	// QueryTransitions returns a session's transitions in sequence order.
	QueryTransitions(ctx context.Context, sessionID string, opts QueryOpts) ([]TransitionRecord, error)
}
