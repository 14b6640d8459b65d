package api

import (
	"errors"
	"testing"
	"time"

	"todo-list/domain"
)

func TestDecodeItem(t *testing.T) {
	item, err := decodeItem([]byte(`{"name":"Pay Taxes","description":"yearly","importance":4,"dueDate":"2024-05-01T00:00:00Z","completed":true}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	if item.Name != "Pay Taxes" || item.Description != "yearly" || item.Importance != 4 || !item.Completed || !item.DueDate.Equal(want) {
		t.Fatalf("unexpected item: %#v", item)
	}
}

func TestDecodeItemErrors(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"array", `[]`, ""},
		{"truncated", `{"name"`, ""},
		{"name wrong type", `{"name":5}`, "name"},
		{"importance low", `{"name":"x","importance":0}`, "importance"},
		{"created not date", `{"name":"x","createdDate":"yesterday"}`, "createdDate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeItem([]byte(tt.body))
			var ve *domain.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if tt.field != "" && ve.Field != tt.field {
				t.Fatalf("expected field %q, got %q (%v)", tt.field, ve.Field, ve)
			}
		})
	}
}
