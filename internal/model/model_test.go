package model

import (
	"errors"
	"testing"
)

func TestDraftValidate(t *testing.T) {
	tests := []struct {
		name      string
		draft     Draft
		wantField string
	}{
		{"valid draft", Draft{Title: "Hi", Content: "World"}, ""},
		{"empty title", Draft{Title: "", Content: "World"}, "title"},
		{"empty content", Draft{Title: "Hi", Content: ""}, "content"},
		{"both empty", Draft{}, "title"},
		{"whitespace title", Draft{Title: "   ", Content: "World"}, "title"},
		{"whitespace content", Draft{Title: "Hi", Content: "\n\t"}, "content"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.draft.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Expected no error, got %v", err)
				}
				return
			}

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("Expected field %q, got %q", tt.wantField, verr.Field)
			}
		})
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Field: "title"}
	if err.Error() != "title must not be empty" {
		t.Errorf("Unexpected error message: %s", err.Error())
	}
}
