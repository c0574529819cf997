package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"tradelens/pkg/errors"
)

// ActivityType classifies a user interaction
type ActivityType string

const (
	ActivitySearch         ActivityType = "search"
	ActivityView           ActivityType = "view"
	ActivitySave           ActivityType = "save"
	ActivityDelete         ActivityType = "delete"
	ActivityQueryGenerated ActivityType = "query_generated"
)

// Valid reports whether t is a known activity type
func (t ActivityType) Valid() bool {
	switch t {
	case ActivitySearch, ActivityView, ActivitySave, ActivityDelete, ActivityQueryGenerated:
		return true
	}
	return false
}

// ActivityEvent is one row of the user activity log. It is published as
// JSON and lands in the ClickHouse user_activity table.
type ActivityEvent struct {
	ID         uuid.UUID      `json:"id"`
	UserID     string         `json:"userId,omitempty"`
	Type       ActivityType   `json:"type"`
	Query      string         `json:"query,omitempty"`
	Source     string         `json:"source,omitempty"`
	DurationMs int64          `json:"durationMs"`
	Timestamp  time.Time      `json:"timestamp"`
	Data       map[string]any `json:"data,omitempty"`
}

// NewActivity creates an event stamped with a fresh id, the current time
// and the user id carried by ctx, if any.
func NewActivity(ctx context.Context, typ ActivityType) ActivityEvent {
	return ActivityEvent{
		ID:        uuid.New(),
		UserID:    errors.UserIDFromContext(ctx),
		Type:      typ,
		Timestamp: time.Now().UTC(),
	}
}

// Validate checks the fields every consumer relies on
func (e ActivityEvent) Validate() error {
	if e.ID == uuid.Nil {
		return errors.NewValidationError("id", "is required", e.ID)
	}
	if !e.Type.Valid() {
		return errors.NewValidationError("type", "unknown activity type", e.Type)
	}
	if e.Timestamp.IsZero() {
		return errors.NewValidationError("timestamp", "is required", e.Timestamp)
	}
	return nil
}

// Key is the partition key; events of one user stay ordered
func (e ActivityEvent) Key() string {
	if e.UserID != "" {
		return e.UserID
	}
	return e.ID.String()
}

// DecodeActivity parses and validates a published event
func DecodeActivity(data []byte) (ActivityEvent, error) {
	var e ActivityEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return ActivityEvent{}, errors.Wrap(err, "decode activity event")
	}
	if err := e.Validate(); err != nil {
		return ActivityEvent{}, err
	}
	return e, nil
}
