package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name: "message only",
			err: &Error{
				Code:    EINVALID,
				Message: "invalid input",
			},
			expected: "invalid input",
		},
		{
			name: "with operation",
			err: &Error{
				Code:    EINVALID,
				Op:      "cart.add",
				Message: "invalid input",
			},
			expected: "cart.add: invalid input",
		},
		{
			name: "with wrapped error",
			err: &Error{
				Code:    EINTERNAL,
				Op:      "cart.save",
				Message: "failed to save",
				Err:     errors.New("disk full"),
			},
			expected: "cart.save: failed to save: disk full",
		},
		{
			name: "wrapped error without op",
			err: &Error{
				Code:    EINTERNAL,
				Message: "failed to save",
				Err:     errors.New("disk full"),
			},
			expected: "failed to save: disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error.Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying error")
	err := &Error{
		Code:    EINTERNAL,
		Message: "wrapped",
		Err:     underlying,
	}

	if unwrapped := err.Unwrap(); unwrapped != underlying {
		t.Errorf("Error.Unwrap() = %v, want %v", unwrapped, underlying)
	}
	if !errors.Is(err, underlying) {
		t.Error("errors.Is should find underlying error")
	}
}

type codedErr struct{ code string }

func (e codedErr) Error() string     { return "coded: " + e.code }
func (e codedErr) ErrorCode() string { return e.code }

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"nil error", nil, ""},
		{"domain error", &Error{Code: ENOTFOUND}, ENOTFOUND},
		{"wrapped domain error", fmt.Errorf("context: %w", &Error{Code: ECONFLICT}), ECONFLICT},
		{"validation error", NewValidationError("op", "email", "bad"), EINVALID},
		{"coded error", codedErr{code: EINVALID}, EINVALID},
		{"standard error", errors.New("boom"), EINTERNAL},
		{"storage corrupt", WrapError(errors.New("bad json"), ECORRUPT, "cart.load", "corrupt"), ECORRUPT},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorCode(tt.err); got != tt.expected {
				t.Errorf("ErrorCode() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"nil error", nil, ""},
		{"domain error", &Error{Code: ENOTFOUND, Message: "Order not found"}, "Order not found"},
		{"internal error hides details", &Error{Code: EINTERNAL, Message: "db exploded"}, "An internal error occurred. Please try again later."},
		{"standard error hides details", errors.New("secret"), "An internal error occurred. Please try again later."},
		{"validation error", NewValidationError("op", "email", "bad"), "Please correct the highlighted fields."},
		{"coded error shows message", codedErr{code: EINVALID}, "coded: invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorMessage(tt.err); got != tt.expected {
				t.Errorf("ErrorMessage() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestErrorOp(t *testing.T) {
	if got := ErrorOp(nil); got != "" {
		t.Errorf("ErrorOp(nil) = %q, want empty", got)
	}
	if got := ErrorOp(&Error{Op: "checkout.pay"}); got != "checkout.pay" {
		t.Errorf("ErrorOp() = %q, want %q", got, "checkout.pay")
	}
	if got := ErrorOp(errors.New("x")); got != "" {
		t.Errorf("ErrorOp(std) = %q, want empty", got)
	}
}

func TestErrorf(t *testing.T) {
	err := Errorf(EINVALID, "cart.add", "invalid quantity: %d", -1)

	var e *Error
	if !errors.As(err, &e) {
		t.Fatal("Errorf should return *Error")
	}
	if e.Code != EINVALID {
		t.Errorf("Code = %q, want %q", e.Code, EINVALID)
	}
	if e.Op != "cart.add" {
		t.Errorf("Op = %q, want %q", e.Op, "cart.add")
	}
	if e.Message != "invalid quantity: -1" {
		t.Errorf("Message = %q, want %q", e.Message, "invalid quantity: -1")
	}
}

func TestWrapError(t *testing.T) {
	if WrapError(nil, EINTERNAL, "op", "msg") != nil {
		t.Error("WrapError(nil) should return nil")
	}

	underlying := errors.New("underlying")
	err := WrapError(underlying, EINTERNAL, "kv.set", "write failed")
	if !errors.Is(err, underlying) {
		t.Error("wrapped error should unwrap to underlying")
	}
	if ErrorCode(err) != EINTERNAL {
		t.Errorf("ErrorCode = %q, want %q", ErrorCode(err), EINTERNAL)
	}
}

func TestErrStorageCorrupt(t *testing.T) {
	err := fmt.Errorf("cart.load: %w", ErrStorageCorrupt)
	if !errors.Is(err, ErrStorageCorrupt) {
		t.Error("errors.Is should find ErrStorageCorrupt")
	}
	if !IsCode(err, ECORRUPT) {
		t.Errorf("IsCode(ECORRUPT) = false, code = %q", ErrorCode(err))
	}
}

func TestValidationError(t *testing.T) {
	t.Run("single field", func(t *testing.T) {
		err := NewValidationError("checkout.advance", "email", "Please enter a valid email address")
		want := "checkout.advance: email: Please enter a valid email address"
		if got := err.Error(); got != want {
			t.Errorf("Error() = %q, want %q", got, want)
		}
	})

	t.Run("multiple fields are listed sorted", func(t *testing.T) {
		err := &ValidationError{
			Op: "checkout.advance",
			Fields: map[string]string{
				"phone":     "bad",
				"email":     "bad",
				"firstName": "required",
			},
		}
		want := "checkout.advance: validation failed for 3 fields (email, firstName, phone)"
		if got := err.Error(); got != want {
			t.Errorf("Error() = %q, want %q", got, want)
		}
		if !err.Has("phone") || err.Has("gender") {
			t.Error("Has() reported wrong membership")
		}
	})

	t.Run("AddFieldError accumulates", func(t *testing.T) {
		var err error
		err = AddFieldError(err, "firstName", "required")
		err = AddFieldError(err, "lastName", "required")

		fields := GetValidationFields(err)
		if len(fields) != 2 {
			t.Fatalf("expected 2 fields, got %d", len(fields))
		}
	})
}

func TestIsValidationError(t *testing.T) {
	if !IsValidationError(NewValidationError("", "f", "m")) {
		t.Error("expected true for ValidationError")
	}
	if !IsValidationError(fmt.Errorf("wrap: %w", NewValidationError("", "f", "m"))) {
		t.Error("expected true for wrapped ValidationError")
	}
	if IsValidationError(errors.New("plain")) {
		t.Error("expected false for plain error")
	}
}

func TestGetValidationFields(t *testing.T) {
	if GetValidationFields(errors.New("plain")) != nil {
		t.Error("expected nil for non-validation error")
	}
	fields := GetValidationFields(NewValidationError("", "phone", "bad"))
	if fields["phone"] != "bad" {
		t.Errorf("fields[phone] = %q, want %q", fields["phone"], "bad")
	}
}

func TestConvenienceFunctions(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"NotFound", NotFound("order.get", "order", "AG-1"), ENOTFOUND},
		{"Invalid", Invalid("cart.add", "bad"), EINVALID},
		{"Conflict", Conflict("checkout.pay", "busy"), ECONFLICT},
		{"Internal", Internal(errors.New("x"), "op", "msg"), EINTERNAL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !IsCode(tt.err, tt.code) {
				t.Errorf("IsCode(%s) = false, got code %q", tt.code, ErrorCode(tt.err))
			}
		})
	}
}
