// Package store persists the last assessment result and form snapshot for each
// browser session.
package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cardioml-web/internal/domain"
)

// Keys of the two persisted documents. They match the names the intake and
// results pages have always used.
const (
	ResultKey = "assessmentResult"
	FormKey   = "formData"
)

// encoded is the serialized form of a record, one JSON document per key.
type encoded struct {
	result  []byte
	form    []byte
	savedAt time.Time
}

func encode(record *domain.AssessmentRecord) (encoded, error) {
	if record == nil {
		return encoded{}, fmt.Errorf("assessment record is nil")
	}
	result, err := json.Marshal(record.Result)
	if err != nil {
		return encoded{}, fmt.Errorf("failed to marshal %s: %w", ResultKey, err)
	}
	form, err := json.Marshal(record.Input)
	if err != nil {
		return encoded{}, fmt.Errorf("failed to marshal %s: %w", FormKey, err)
	}
	savedAt := record.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now()
	}
	return encoded{result: result, form: form, savedAt: savedAt.UTC()}, nil
}

// decode returns an error when either document is missing or unreadable; callers
// treat that as nothing stored.
func decode(e encoded) (*domain.AssessmentRecord, error) {
	if len(e.result) == 0 || len(e.form) == 0 {
		return nil, fmt.Errorf("incomplete assessment state")
	}
	record := &domain.AssessmentRecord{SavedAt: e.savedAt}
	if err := json.Unmarshal(e.result, &record.Result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", ResultKey, err)
	}
	if err := json.Unmarshal(e.form, &record.Input); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", FormKey, err)
	}
	return record, nil
}

func expired(savedAt time.Time, ttl time.Duration, now time.Time) bool {
	return ttl > 0 && !savedAt.IsZero() && now.Sub(savedAt) > ttl
}
