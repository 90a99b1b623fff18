// pkg/errors/errors_test.go
// TEST TYPE: Unit Test
// DEPENDENCIES: None
// PURPOSE: Test error creation, wrapping, and utility functions

package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/arthur-debert/appsweep/pkg/errors"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		code    errors.ErrorCode
		message string
		wantStr string
	}{
		{
			name:    "not_found_error",
			code:    errors.ErrNotFound,
			message: "update not found",
			wantStr: "[NOT_FOUND] update not found",
		},
		{
			name:    "metadata_missing_error",
			code:    errors.ErrMetadataMissing,
			message: "protected metadata missing",
			wantStr: "[METADATA_MISSING] protected metadata missing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := errors.New(tt.code, tt.message)

			if err.Code != tt.code {
				t.Errorf("New() code = %v, want %v", err.Code, tt.code)
			}

			if err.Details == nil {
				t.Error("New() details should be initialized")
			}

			if got := err.Error(); got != tt.wantStr {
				t.Errorf("Error() = %q, want %q", got, tt.wantStr)
			}
		})
	}
}

func TestNewf(t *testing.T) {
	err := errors.Newf(errors.ErrInvalidInput, "invalid weekday: %d", 9)
	if err.Message != "invalid weekday: 9" {
		t.Errorf("Newf() message = %q", err.Message)
	}
}

func TestWrap(t *testing.T) {
	baseErr := stderrors.New("exit status 1")

	t.Run("wrap_non_nil_error", func(t *testing.T) {
		err := errors.Wrap(baseErr, errors.ErrCommandFailed, "brew upgrade failed")

		if err.Wrapped != baseErr {
			t.Error("Wrap() should preserve wrapped error")
		}

		wantStr := "[COMMAND_FAILED] brew upgrade failed: exit status 1"
		if got := err.Error(); got != wantStr {
			t.Errorf("Error() = %q, want %q", got, wantStr)
		}
	})

	t.Run("wrap_nil_error_returns_nil", func(t *testing.T) {
		if err := errors.Wrap(nil, errors.ErrInternal, "internal error"); err != nil {
			t.Error("Wrap(nil) should return nil")
		}
		if err := errors.Wrapf(nil, errors.ErrInternal, "internal %s", "error"); err != nil {
			t.Error("Wrapf(nil) should return nil")
		}
	})
}

func TestWithDetail(t *testing.T) {
	err := errors.New(errors.ErrCommandFailed, "privileged command failed").
		WithDetail("output", "mv: permission denied").
		WithDetails(map[string]interface{}{"exit": 1})

	if err.Details["output"] != "mv: permission denied" {
		t.Errorf("WithDetail() output = %v", err.Details["output"])
	}
	if err.Details["exit"] != 1 {
		t.Errorf("WithDetails() exit = %v", err.Details["exit"])
	}
}

func TestIs(t *testing.T) {
	err1 := errors.New(errors.ErrNotFound, "error 1")
	err2 := errors.New(errors.ErrNotFound, "error 2")
	err3 := errors.New(errors.ErrInternal, "error 3")

	if !stderrors.Is(err1, err2) {
		t.Error("errors.Is() should match on code")
	}
	if err1.Is(err3) {
		t.Error("Is() should return false for different codes")
	}
}

func TestIsErrorCode(t *testing.T) {
	swap := errors.New(errors.ErrSwapFailed, "swap failed")
	compound := errors.Wrap(swap, errors.ErrRollbackFailed, "rollback failed")

	tests := []struct {
		name     string
		err      error
		code     errors.ErrorCode
		expected bool
	}{
		{"matching_code", errors.New(errors.ErrNotFound, "x"), errors.ErrNotFound, true},
		{"different_code", errors.New(errors.ErrNotFound, "x"), errors.ErrInternal, false},
		{"outer_code_of_compound", compound, errors.ErrRollbackFailed, true},
		{"inner_code_of_compound", compound, errors.ErrSwapFailed, true},
		{"fmt_wrapped", fmt.Errorf("apply: %w", swap), errors.ErrSwapFailed, true},
		{"standard_error", stderrors.New("standard"), errors.ErrNotFound, false},
		{"nil_error", nil, errors.ErrNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.IsErrorCode(tt.err, tt.code); got != tt.expected {
				t.Errorf("IsErrorCode() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGetErrorCodeAndDetails(t *testing.T) {
	err := errors.New(errors.ErrLookupFailed, "lookup").WithDetail("bundle_id", "com.example")

	if got := errors.GetErrorCode(err); got != errors.ErrLookupFailed {
		t.Errorf("GetErrorCode() = %v", got)
	}
	if got := errors.GetErrorCode(stderrors.New("plain")); got != errors.ErrUnknown {
		t.Errorf("GetErrorCode(plain) = %v", got)
	}
	if got := errors.GetErrorDetails(err); got["bundle_id"] != "com.example" {
		t.Errorf("GetErrorDetails() = %v", got)
	}
	if got := errors.GetErrorDetails(stderrors.New("plain")); got != nil {
		t.Errorf("GetErrorDetails(plain) = %v", got)
	}
}
