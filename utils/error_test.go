package utils

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err      error
		expected int
	}{
		{NewValidationError("bad input"), http.StatusBadRequest},
		{NewNotFoundError("missing"), http.StatusNotFound},
		{NewConflictError("busy", ""), http.StatusConflict},
		{NewBusinessLogicError("not allowed", ""), http.StatusConflict},
		{NewIntegrityError("bom_cycle", "1 -> 2 -> 1"), http.StatusUnprocessableEntity},
		{NewConfigError("node disabled"), http.StatusUnprocessableEntity},
		{NewTemporaryError("plan_in_progress"), http.StatusServiceUnavailable},
		{ErrorRecordNotFound, http.StatusNotFound},
		{errors.New("anything else"), http.StatusBadRequest},
	}
	for _, tc := range cases {
		if got := HTTPStatus(tc.err); got != tc.expected {
			t.Fatalf("HTTPStatus(%v) expected %d, got %d", tc.err, tc.expected, got)
		}
	}
}

func TestHTTPStatusUnwrapsWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("loading plan: %w", NewNotFoundError("plan not found"))
	if got := HTTPStatus(wrapped); got != http.StatusNotFound {
		t.Fatalf("expected 404 for wrapped AppError, got %d", got)
	}
}

func TestAppErrorMessage(t *testing.T) {
	err := NewConflictError("plan holds the demand", "PLAN-001")
	if err.Error() != "plan holds the demand (PLAN-001)" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	plain := NewValidationError("quantity must be positive")
	if plain.Error() != "quantity must be positive" {
		t.Fatalf("unexpected message %q", plain.Error())
	}
}
