package domain

import (
	"fmt"
	"time"

	"github.com/bytedance/sonic"
)

// itemWire mirrors Item with its dates kept as raw strings.
type itemWire struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	Importance   int     `json:"importance"`
	DueDate      *string `json:"dueDate"`
	Completed    bool    `json:"completed"`
	CreatedDate  *string `json:"createdDate"`
	LastEditDate *string `json:"lastEditDate"`
}

// UnmarshalJSON accepts calendar dates ("2024-04-23", read as UTC midnight)
// as well as RFC 3339 timestamps for every date field. Missing or null dates
// stay zero.
func (i *Item) UnmarshalJSON(data []byte) error {
	var w itemWire
	if err := sonic.Unmarshal(data, &w); err != nil {
		return err
	}
	due, err := wireDate("dueDate", w.DueDate)
	if err != nil {
		return err
	}
	created, err := wireDate("createdDate", w.CreatedDate)
	if err != nil {
		return err
	}
	edited, err := wireDate("lastEditDate", w.LastEditDate)
	if err != nil {
		return err
	}
	*i = Item{
		ID:           w.ID,
		Name:         w.Name,
		Description:  w.Description,
		Importance:   w.Importance,
		DueDate:      due,
		Completed:    w.Completed,
		CreatedDate:  created,
		LastEditDate: edited,
	}
	return nil
}

func wireDate(field string, s *string) (time.Time, error) {
	if s == nil || *s == "" {
		return time.Time{}, nil
	}
	t, ok := ParseDate(*s, time.UTC)
	if !ok {
		return time.Time{}, fmt.Errorf("%s: %q is neither a date nor a date-time", field, *s)
	}
	return t, nil
}
