package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeInvalidDataset, "unknown dataset: %s", "foo")
	if err.Code != ErrCodeInvalidDataset {
		t.Errorf("Code = %q, want %q", err.Code, ErrCodeInvalidDataset)
	}
	if err.Message != "unknown dataset: foo" {
		t.Errorf("Message = %q", err.Message)
	}
	want := "INVALID_DATASET: unknown dataset: foo"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestWrap(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Wrap(ErrCodeNetwork, cause, "failed to fetch %s", "http://example.com")

	if !stderrors.Is(err, cause) {
		t.Error("wrapped error should match cause via errors.Is")
	}
	if err.Unwrap() != cause {
		t.Error("Unwrap should return the cause")
	}
	want := "NETWORK_ERROR: failed to fetch http://example.com: connection refused"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestIs(t *testing.T) {
	err := New(ErrCodeIDNotFound, "no such id")

	if !Is(err, ErrCodeIDNotFound) {
		t.Error("Is should match the error's own code")
	}
	if Is(err, ErrCodeNetwork) {
		t.Error("Is should not match a different code")
	}
	if Is(stderrors.New("plain"), ErrCodeIDNotFound) {
		t.Error("Is should not match plain errors")
	}

	// Code should survive wrapping with fmt.Errorf
	wrapped := fmt.Errorf("context: %w", err)
	if !Is(wrapped, ErrCodeIDNotFound) {
		t.Error("Is should unwrap fmt.Errorf chains")
	}
}

func TestGetCode(t *testing.T) {
	if got := GetCode(New(ErrCodeChecksumMismatch, "boom")); got != ErrCodeChecksumMismatch {
		t.Errorf("GetCode = %q, want %q", got, ErrCodeChecksumMismatch)
	}
	if got := GetCode(stderrors.New("plain")); got != "" {
		t.Errorf("GetCode for plain error = %q, want empty", got)
	}
}

func TestUserMessage(t *testing.T) {
	if got := UserMessage(New(ErrCodeInvalidField, "no such field: spacing")); got != "no such field: spacing" {
		t.Errorf("UserMessage = %q", got)
	}
	if got := UserMessage(stderrors.New("plain message")); got != "plain message" {
		t.Errorf("UserMessage for plain error = %q", got)
	}
}
