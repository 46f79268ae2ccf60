package model

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func noBackoff(o *RetryOptions) { o.Backoff = time.Millisecond }

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited", &APIError{Provider: "openai", StatusCode: 429, Err: errors.New("slow down")}, true},
		{"server error", fmt.Errorf("wrap: %w", &APIError{StatusCode: 503}), true},
		{"bad request", &APIError{StatusCode: 400}, false},
		{"net timeout", timeoutErr{}, true},
		{"canceled", context.Canceled, false},
		{"empty", ErrEmptyResponse, false},
		{"plain", errors.New("x"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestWithRetry_RecoversFromTransientFailure(t *testing.T) {
	mock := NewMockModel("m").
		AddError(&APIError{StatusCode: 502}).
		AddError(timeoutErr{}).
		AddText("ok")

	resp, err := Complete(context.Background(), WithRetry(mock, noBackoff), Request{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text())
	assert.Equal(t, 3, mock.Calls())
}

func TestWithRetry_IsBounded(t *testing.T) {
	mock := NewMockModel("m")
	for i := 0; i < 10; i++ {
		mock.AddError(&APIError{StatusCode: 500})
	}

	_, err := Complete(context.Background(), WithRetry(mock, noBackoff, func(o *RetryOptions) { o.MaxAttempts = 2 }), Request{})
	require.Error(t, err)
	assert.Equal(t, 2, mock.Calls())
}

func TestWithRetry_DoesNotRetrySemanticFailures(t *testing.T) {
	mock := NewMockModel("m").AddText("").AddText("never")

	_, err := Complete(context.Background(), WithRetry(mock, noBackoff), Request{})
	assert.ErrorIs(t, err, ErrEmptyResponse)
	assert.Equal(t, 1, mock.Calls())
}

func TestWithRetry_StopsOnCancellation(t *testing.T) {
	mock := NewMockModel("m").AddError(&APIError{StatusCode: 500}).AddText("late")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Complete(ctx, WithRetry(mock, noBackoff), Request{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWithRetry_Info(t *testing.T) {
	assert.Equal(t, "m", WithRetry(NewMockModel("m")).Info().Name)
}
