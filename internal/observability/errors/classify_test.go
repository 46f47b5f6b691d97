package errors

import (
	"context"
	goerrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/target/title-doctor/internal/errors"
)

type customErr struct{}

func (customErr) Error() string { return "custom" }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "app error code", err: apperrors.MissingCredential("GEMINI_API_KEY"), want: "configuration"},
		{name: "wrapped app error", err: fmt.Errorf("stage: %w", apperrors.EmptyResult("Channel not found")), want: "empty_result"},
		{name: "deadline", err: fmt.Errorf("call: %w", context.DeadlineExceeded), want: "timeout"},
		{name: "canceled", err: context.Canceled, want: "canceled"},
		{name: "plain", err: goerrors.New("boom"), want: "errors_errorstring"},
		{name: "custom type", err: fmt.Errorf("wrap: %w", customErr{}), want: "errors_customerr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}
