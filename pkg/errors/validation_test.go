package errors

import (
	"strings"
	"testing"
)

func TestValidateFeatureName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "dynamic-height", false},
		{"dotted", "core.io", false},
		{"mixed case", "opensocial-0.8", false},

		{"empty", "", true},
		{"too long", strings.Repeat("a", 129), true},
		{"slash", "core/io", true},
		{"backslash", "core\\io", true},
		{"space", "core io", true},
		{"newline", "core\nio", true},
		{"null byte", "core\x00io", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFeatureName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFeatureName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateGadgetURL(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"http", "http://example.com/gadget.xml", false},
		{"https with query", "https://example.com/g.xml?v=1", false},

		{"empty", "", true},
		{"relative", "/gadget.xml", true},
		{"ftp", "ftp://example.com/gadget.xml", true},
		{"file", "file:///etc/passwd", true},
		{"no host", "http:///gadget.xml", true},
		{"too long", "http://example.com/" + strings.Repeat("a", 2048), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := ValidateGadgetURL(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateGadgetURL(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidURL) {
				t.Errorf("error code = %v, want %v", GetCode(err), ErrCodeInvalidURL)
			}
			if err == nil && u == nil {
				t.Error("ValidateGadgetURL returned nil URL without error")
			}
		})
	}
}
