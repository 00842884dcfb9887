// Package substitute replaces the __TYPE_name__ placeholders of gadget specs.
//
// Four placeholder types exist:
//
//	__MSG_greeting__       message bundle entry
//	__BIDI_START_EDGE__    bidi helpers: START_EDGE, END_EDGE, DIR, REVERSE_DIR
//	__UP_color__           user preference value
//	__MODULE_ID__          module id of the rendered gadget
//
// Unknown placeholders are left untouched.
package substitute

import (
	"regexp"
	"strings"
)

// Type is a placeholder namespace.
type Type string

const (
	Message  Type = "MSG"
	Bidi     Type = "BIDI"
	UserPref Type = "UP"
	Module   Type = "MODULE"
)

// Bidi placeholder names.
const (
	BidiStartEdge  = "START_EDGE"
	BidiEndEdge    = "END_EDGE"
	BidiDir        = "DIR"
	BidiReverseDir = "REVERSE_DIR"
)

// ModuleID is the only placeholder name of the Module type.
const ModuleID = "ID"

var types = []Type{Message, Bidi, UserPref, Module}

var placeholder = regexp.MustCompile(`__(MSG|BIDI|UP|MODULE)_([A-Za-z0-9_.\-]+?)__`)

// Substitutions holds placeholder values for one render. It is not safe for
// concurrent mutation; each request owns its own instance.
type Substitutions struct {
	values map[Type]map[string]string
}

// New returns an empty set of substitutions.
func New() *Substitutions {
	s := &Substitutions{values: make(map[Type]map[string]string, len(types))}
	for _, t := range types {
		s.values[t] = make(map[string]string)
	}
	return s
}

// AddSubstitution sets one value.
func (s *Substitutions) AddSubstitution(t Type, name, value string) {
	m, ok := s.values[t]
	if !ok {
		m = make(map[string]string)
		s.values[t] = m
	}
	m[name] = value
}

// AddSubstitutions sets every value of m.
func (s *Substitutions) AddSubstitutions(t Type, m map[string]string) {
	for k, v := range m {
		s.AddSubstitution(t, k, v)
	}
}

// GetSubstitution returns a value and whether it is set.
func (s *Substitutions) GetSubstitution(t Type, name string) (string, bool) {
	v, ok := s.values[t][name]
	return v, ok
}

// Substitute replaces every known placeholder in in. Message values are
// themselves substituted once, so a message may reference bidi, user pref and
// module placeholders. A message referencing another message is not expanded.
func (s *Substitutions) Substitute(in string) string {
	if !strings.Contains(in, "__") {
		return in
	}
	return placeholder.ReplaceAllStringFunc(in, func(tok string) string {
		m := placeholder.FindStringSubmatch(tok)
		t, name := Type(m[1]), m[2]
		v, ok := s.GetSubstitution(t, name)
		if !ok {
			return tok
		}
		if t == Message {
			return s.substituteNonMessage(v)
		}
		return v
	})
}

func (s *Substitutions) substituteNonMessage(in string) string {
	if !strings.Contains(in, "__") {
		return in
	}
	return placeholder.ReplaceAllStringFunc(in, func(tok string) string {
		m := placeholder.FindStringSubmatch(tok)
		t, name := Type(m[1]), m[2]
		if t == Message {
			return tok
		}
		if v, ok := s.GetSubstitution(t, name); ok {
			return v
		}
		return tok
	})
}

// SetBidi registers the bidi placeholders for a text direction.
func (s *Substitutions) SetBidi(rtl bool) {
	if rtl {
		s.AddSubstitution(Bidi, BidiStartEdge, "right")
		s.AddSubstitution(Bidi, BidiEndEdge, "left")
		s.AddSubstitution(Bidi, BidiDir, "rtl")
		s.AddSubstitution(Bidi, BidiReverseDir, "ltr")
		return
	}
	s.AddSubstitution(Bidi, BidiStartEdge, "left")
	s.AddSubstitution(Bidi, BidiEndEdge, "right")
	s.AddSubstitution(Bidi, BidiDir, "ltr")
	s.AddSubstitution(Bidi, BidiReverseDir, "rtl")
}
