// Package minify compresses feature JavaScript before it is cached.
package minify

import (
	"fmt"

	tdminify "github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/js"
)

const mediaType = "application/javascript"

// Minifier compresses a script body.
type Minifier interface {
	Minify(src []byte) ([]byte, error)
}

// JS minifies JavaScript using tdewolff/minify. It is safe for concurrent use.
type JS struct {
	m *tdminify.M
}

// NewJS returns a JavaScript minifier.
func NewJS() *JS {
	m := tdminify.New()
	m.AddFunc(mediaType, js.Minify)
	return &JS{m: m}
}

// Minify returns the minified form of src. Empty input yields empty output.
func (j *JS) Minify(src []byte) ([]byte, error) {
	if len(src) == 0 {
		return []byte{}, nil
	}
	out, err := j.m.Bytes(mediaType, src)
	if err != nil {
		return nil, fmt.Errorf("minify javascript: %w", err)
	}
	return out, nil
}

// Identity returns its input unchanged. Used when compression is disabled in
// tests or debugging.
type Identity struct{}

// Minify returns src.
func (Identity) Minify(src []byte) ([]byte, error) { return src, nil }

var (
	_ Minifier = (*JS)(nil)
	_ Minifier = Identity{}
)
