package errors

import (
	"net/url"
	"strings"
	"unicode"
)

// ValidateFeatureName validates a feature name taken from a request path or
// a gadget spec before it is used as a registry lookup key.
//
// The rules are conservative:
//   - No empty names
//   - No control characters or whitespace
//   - No path separators (names are joined with ':' in JS bundle URLs)
//   - Maximum length of 128 characters
func ValidateFeatureName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidInput, "feature name cannot be empty")
	}
	if len(name) > 128 {
		return New(ErrCodeInvalidInput, "feature name too long (max 128 characters)")
	}
	for _, r := range name {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return New(ErrCodeInvalidInput, "feature name contains invalid characters")
		}
	}
	if strings.ContainsAny(name, "/\\") {
		return New(ErrCodeInvalidInput, "feature name cannot contain path separators")
	}
	return nil
}

// ValidateGadgetURL checks that raw is an absolute http(s) URL suitable for
// fetching a gadget spec or message bundle.
func ValidateGadgetURL(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, New(ErrCodeInvalidURL, "gadget url cannot be empty")
	}
	if len(raw) > 2048 {
		return nil, New(ErrCodeInvalidURL, "gadget url too long (max 2048 characters)")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, Wrap(ErrCodeInvalidURL, err, "malformed gadget url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, New(ErrCodeInvalidURL, "unsupported url scheme: %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, New(ErrCodeInvalidURL, "gadget url must have a host")
	}
	return u, nil
}
