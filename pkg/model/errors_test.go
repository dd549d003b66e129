package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestAPIError_Error(t *testing.T) {
	err := &APIError{StatusCode: 404, Message: "Task not found!"}
	want := "HTTP 404: Task not found!"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("Validation Error!",
		FieldError{Field: "channel", Message: "Channel should be either 1 or 2"},
		FieldError{Field: "res", Message: "res must be one of .pkl, .csv"},
	)
	if !err.IsValidation() {
		t.Errorf("IsValidation() = false, want true")
	}
	if len(err.Details) != 2 {
		t.Errorf("Details length = %d, want 2", len(err.Details))
	}
	want := "HTTP 422: Validation Error! (2 field errors)"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestAsValidation(t *testing.T) {
	wrapped := fmt.Errorf("submit job: %w", NewValidationError("bad", FieldError{Field: "files", Message: "required"}))
	apiErr, ok := AsValidation(wrapped)
	if !ok {
		t.Fatal("AsValidation() = false, want true")
	}
	if apiErr.Details[0].Field != "files" {
		t.Errorf("Field = %q, want files", apiErr.Details[0].Field)
	}

	if _, ok := AsValidation(&APIError{StatusCode: 500, Message: "boom"}); ok {
		t.Error("AsValidation() on 500 = true, want false")
	}
	if _, ok := AsValidation(errors.New("plain")); ok {
		t.Error("AsValidation() on plain error = true, want false")
	}
}

func TestFieldError_String(t *testing.T) {
	if got := (FieldError{Field: "email", Message: "required"}).String(); got != "email: required" {
		t.Errorf("String() = %q", got)
	}
	if got := (FieldError{Message: "required"}).String(); got != "required" {
		t.Errorf("String() = %q", got)
	}
}

func TestInvalidTransitionError(t *testing.T) {
	err := &InvalidTransitionError{Key: "a.wav", From: UploadSucceeded, To: UploadPending}
	want := "invalid upload state transition: succeeded → pending (file a.wav)"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
