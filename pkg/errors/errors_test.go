package errors

import (
	"errors"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeUnsupportedFeature, "unsupported feature(s): %s", "foo, bar")

	if err.Code != ErrCodeUnsupportedFeature {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeUnsupportedFeature)
	}

	if err.Message != "unsupported feature(s): foo, bar" {
		t.Errorf("Message = %v, want %v", err.Message, "unsupported feature(s): foo, bar")
	}

	expected := "UNSUPPORTED_FEATURE: unsupported feature(s): foo, bar"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(ErrCodeSpecFetch, cause, "fetch gadget spec")

	if err.Code != ErrCodeSpecFetch {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeSpecFetch)
	}
	if err.Cause != cause {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if unwrapped := errors.Unwrap(err); unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
	if got := err.Error(); got != "SPEC_FETCH_FAILED: fetch gadget spec: connection refused" {
		t.Errorf("Error() = %q", got)
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     Code
		expected bool
	}{
		{"matching code", New(ErrCodeDependencyCycle, "test"), ErrCodeDependencyCycle, true},
		{"non-matching code", New(ErrCodeDependencyCycle, "test"), ErrCodeBlacklisted, false},
		{"wrapped error", Wrap(ErrCodeSpecFetch, New(ErrCodeInvalidURL, "inner"), "outer"), ErrCodeSpecFetch, true},
		{"non-Error type", errors.New("plain error"), ErrCodeInvalidInput, false},
		{"nil error", nil, ErrCodeInvalidInput, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.expected {
				t.Errorf("Is() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Code
	}{
		{"Error type", New(ErrCodeMissingScriptFile, "test"), ErrCodeMissingScriptFile},
		{"plain error", errors.New("plain"), ""},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.expected {
				t.Errorf("GetCode() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"Error type", New(ErrCodeInvalidInput, "friendly message"), "friendly message"},
		{"plain error", errors.New("plain error"), "plain error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.expected {
				t.Errorf("UserMessage() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestIsStartup(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{New(ErrCodeDependencyCycle, "cycle"), true},
		{New(ErrCodeInvalidDescriptor, "no name"), true},
		{New(ErrCodeInvalidManifest, "unreadable"), true},
		{New(ErrCodeUnsupportedFeature, "foo"), false},
		{errors.New("plain"), false},
	}
	for _, tt := range tests {
		if got := IsStartup(tt.err); got != tt.want {
			t.Errorf("IsStartup(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
