package apperr

import (
	"errors"
	"strings"
	"testing"
)

func TestKindsSurviveWrapping(t *testing.T) {
	if !errors.Is(Invalid("x out of range: %v", 2), ErrInvalidInput) {
		t.Error("Invalid should wrap ErrInvalidInput")
	}
	if !errors.Is(NotFoundf("location %d", 4), ErrNotFound) {
		t.Error("NotFoundf should wrap ErrNotFound")
	}
	if !errors.Is(Conflictf("name taken"), ErrConflict) {
		t.Error("Conflictf should wrap ErrConflict")
	}

	cause := errors.New("dial tcp: timeout")
	err := Unavailable("openai", cause)
	if !errors.Is(err, ErrExternalUnavailable) || !errors.Is(err, cause) {
		t.Errorf("Unavailable should wrap both kind and cause: %v", err)
	}
	if !strings.HasPrefix(err.Error(), "openai: ") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestValidation(t *testing.T) {
	if Validation(nil) != nil {
		t.Error("Validation(nil) should be nil")
	}
	cause := errors.New("content: cannot be blank.")
	err := Validation(cause)
	if !errors.Is(err, ErrInvalidInput) || !errors.Is(err, cause) {
		t.Errorf("Validation should wrap kind and cause: %v", err)
	}
}
