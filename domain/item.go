package domain

import (
	"strconv"
	"strings"
	"time"
)

const (
	MinImportance     = 1
	MaxImportance     = 5
	DefaultImportance = 3
)

// Item represents a single entry of the task list.
type Item struct {
	ID           string    `json:"id,omitempty"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Importance   int       `json:"importance"`
	DueDate      time.Time `json:"dueDate"`
	Completed    bool      `json:"completed"`
	CreatedDate  time.Time `json:"createdDate"`
	LastEditDate time.Time `json:"lastEditDate"`
}

// Draft carries raw, unvalidated input for a new or edited item, typically
// straight from a form or command line flags.
type Draft struct {
	ID          string
	Name        string
	Description string
	DueDate     string
	Importance  string
	Completed   string
}

// NewItem builds a fully defaulted item from d using the current time.
func NewItem(d Draft) Item {
	return NewItemAt(d, time.Now())
}

// NewItemAt builds a fully defaulted item from d. It never fails: invalid or
// missing values fall back to their defaults and CreatedDate is always now.
func NewItemAt(d Draft, now time.Time) Item {
	return Item{
		ID:          strings.TrimSpace(d.ID),
		Name:        d.Name,
		Description: d.Description,
		Importance:  ParseImportance(d.Importance),
		DueDate:     ParseDueDate(d.DueDate, now),
		Completed:   ParseCompleted(d.Completed),
		CreatedDate: now,
	}
}

// ParseImportance returns the importance encoded in s or DefaultImportance when
// s is not an integer within [MinImportance, MaxImportance].
func ParseImportance(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || !ValidImportance(n) {
		return DefaultImportance
	}
	return n
}

// ValidImportance reports whether n is within the importance range.
func ValidImportance(n int) bool {
	return n >= MinImportance && n <= MaxImportance
}

// ParseDueDate accepts a calendar date (2006-01-02) or an RFC 3339 timestamp.
// Anything else yields now.
func ParseDueDate(s string, now time.Time) time.Time {
	if t, ok := ParseDate(s, now.Location()); ok {
		return t
	}
	return now
}

// ParseDate reads a calendar date (2006-01-02, midnight in loc) or an RFC 3339
// timestamp.
func ParseDate(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, loc); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// ParseCompleted coerces s to a boolean, defaulting to false.
func ParseCompleted(s string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return b
}

// IsNew reports whether the item has not been persisted yet.
func (i Item) IsNew() bool {
	return strings.TrimSpace(i.ID) == ""
}

// Validate checks the fields required for a save.
func (i Item) Validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	if !ValidImportance(i.Importance) {
		return &ValidationError{Field: "importance", Message: "importance must be between 1 and 5"}
	}
	return nil
}

// Equal compares two items field by field, using time.Time.Equal for dates so
// values decoded from different encodings compare as expected.
func (i Item) Equal(o Item) bool {
	return i.ID == o.ID &&
		i.Name == o.Name &&
		i.Description == o.Description &&
		i.Importance == o.Importance &&
		i.Completed == o.Completed &&
		i.DueDate.Equal(o.DueDate) &&
		i.CreatedDate.Equal(o.CreatedDate) &&
		i.LastEditDate.Equal(o.LastEditDate)
}
