package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "error without cause",
			err: &AppError{
				Code:    ErrCodeNotFound,
				Message: "resource not found",
			},
			want: "resource not found",
		},
		{
			name: "error with cause",
			err: &AppError{
				Code:    ErrCodeInternal,
				Message: "failed to process",
				Cause:   errors.New("underlying error"),
			},
			want: "failed to process: underlying error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("AppError.Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := &AppError{
		Code:    ErrCodeInternal,
		Message: "wrapped error",
		Cause:   cause,
	}

	if unwrapped := err.Unwrap(); !errors.Is(unwrapped, cause) {
		t.Errorf("AppError.Unwrap() = %v, want %v", unwrapped, cause)
	}
}

func TestValidationField(t *testing.T) {
	err := ValidationField("email", "Invalid email address")
	if err.Code != ErrCodeValidation {
		t.Errorf("ValidationField().Code = %v, want %v", err.Code, ErrCodeValidation)
	}
	if err.Field != "email" {
		t.Errorf("ValidationField().Field = %v, want %v", err.Field, "email")
	}
}

func TestMissingCredential(t *testing.T) {
	err := MissingCredential("GEMINI_API_KEY")
	if err.Error() != "Missing GEMINI_API_KEY" {
		t.Errorf("MissingCredential().Error() = %q, want %q", err.Error(), "Missing GEMINI_API_KEY")
	}
	if !IsConfiguration(err) {
		t.Errorf("expected configuration error")
	}
}

func TestEmptyResult(t *testing.T) {
	err := EmptyResult("No videos found for this channel")
	if err.Error() != "No videos found for this channel" {
		t.Errorf("EmptyResult().Error() = %q", err.Error())
	}
	if !IsEmptyResult(fmt.Errorf("stage: %w", err)) {
		t.Errorf("expected wrapped empty result to be detected")
	}
}

func TestUpstreamf(t *testing.T) {
	err := Upstreamf("Gemini API Error: %s", "quota exceeded")
	if err.Code != ErrCodeUpstream {
		t.Errorf("Upstreamf().Code = %v, want %v", err.Code, ErrCodeUpstream)
	}
	if err.Error() != "Gemini API Error: quota exceeded" {
		t.Errorf("Upstreamf().Error() = %q", err.Error())
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := Wrap(cause, ErrCodeInternal, "wrapped error")

	if err.Code != ErrCodeInternal {
		t.Errorf("Wrap().Code = %v, want %v", err.Code, ErrCodeInternal)
	}
	if !errors.Is(err, cause) {
		t.Errorf("Wrap() should preserve cause")
	}
}

func TestHasCode_OutermostWins(t *testing.T) {
	inner := EmptyResult("Channel not found")
	outer := Wrap(inner, ErrCodeTimeout, "stage timed out")

	if !HasCode(outer, ErrCodeTimeout) {
		t.Errorf("HasCode(outer, timeout) = false, want true")
	}
	if got := GetCode(outer); got != ErrCodeTimeout {
		t.Errorf("GetCode() = %v, want %v", got, ErrCodeTimeout)
	}
}

func TestWrap_NilError(t *testing.T) {
	err := Wrap(nil, ErrCodeInternal, "wrapped error")
	if err != nil {
		t.Errorf("Wrap(nil) = %v, want nil", err)
	}
}

func TestIsHelpers(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
		want  bool
	}{
		{"not found", NotFound("x"), IsNotFound, true},
		{"wrapped not found", fmt.Errorf("get: %w", NotFound("x")), IsNotFound, true},
		{"conflict", Conflict("x"), IsConflict, true},
		{"validation", Validation("x"), IsValidation, true},
		{"configuration", MissingCredential("YOUTUBE_API_KEY"), IsConfiguration, true},
		{"plain error", errors.New("x"), IsNotFound, false},
		{"nil", nil, IsValidation, false},
		{"different code", EmptyResult("x"), IsConflict, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.check(tt.err); got != tt.want {
				t.Errorf("check(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestGetCodeAndField(t *testing.T) {
	if got := GetCode(ValidationField("channel", "required")); got != ErrCodeValidation {
		t.Errorf("GetCode() = %v, want %v", got, ErrCodeValidation)
	}
	if got := GetCode(errors.New("plain")); got != "" {
		t.Errorf("GetCode(plain) = %v, want empty", got)
	}
	if got := GetField(ValidationField("channel", "required")); got != "channel" {
		t.Errorf("GetField() = %v, want channel", got)
	}
	if got := GetField(Upstreamf("YouTube API Error: %d", 500)); got != "" {
		t.Errorf("GetField() = %v, want empty", got)
	}
}
