package logger

import (
	"context"
	"testing"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()

	if got := GetTraceID(ctx); got != "" {
		t.Errorf("expected empty trace id, got %q", got)
	}

	ctx = WithTraceID(ctx, "trace-123")
	if got := GetTraceID(ctx); got != "trace-123" {
		t.Errorf("expected trace-123, got %q", got)
	}

	ctx = WithCaller(ctx, "0xabc", "manufacturer")
	if got := GetCallerID(ctx); got != "0xabc" {
		t.Errorf("expected 0xabc, got %q", got)
	}
	if got := GetRole(ctx); got != "manufacturer" {
		t.Errorf("expected manufacturer, got %q", got)
	}
}

func TestWithCallerEmptyRole(t *testing.T) {
	ctx := WithCaller(context.Background(), "0xabc", "")
	if got := GetRole(ctx); got != "" {
		t.Errorf("expected empty role, got %q", got)
	}
}

func TestNewTraceIDUnique(t *testing.T) {
	a, b := NewTraceID(), NewTraceID()
	if a == b {
		t.Error("trace ids should be unique")
	}
	if a == "" {
		t.Error("trace id should not be empty")
	}
}

func TestNewFallsBackToInfo(t *testing.T) {
	log := New("test", "not-a-level")
	if log == nil {
		t.Fatal("expected logger")
	}
	// Annotation helpers must not mutate the receiver.
	derived := log.WithField("k", "v").WithError(nil).WithContext(context.Background())
	if derived == log {
		t.Error("expected derived logger instance")
	}
}
