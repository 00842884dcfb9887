package substitute

import "testing"

func TestSubstitute(t *testing.T) {
	s := New()
	s.AddSubstitution(Module, ModuleID, "7")
	s.AddSubstitutions(UserPref, map[string]string{"color": "red", "my_pref": "x"})
	s.AddSubstitutions(Message, map[string]string{
		"hello": "Hello __UP_color__ on the __BIDI_START_EDGE__",
		"loop":  "see __MSG_hello__",
	})
	s.SetBidi(false)

	tests := []struct {
		in, want string
	}{
		{"plain text", "plain text"},
		{"id=__MODULE_ID__", "id=7"},
		{"__UP_color__/__UP_my_pref__", "red/x"},
		{"__MSG_hello__!", "Hello red on the left!"},
		{"__MSG_loop__", "see __MSG_hello__"},
		{"__UP_unknown__ __FOO_bar__", "__UP_unknown__ __FOO_bar__"},
		{"dir=__BIDI_DIR__ rev=__BIDI_REVERSE_DIR__ end=__BIDI_END_EDGE__", "dir=ltr rev=rtl end=right"},
		{"a____UP_color__", "a__red"},
	}
	for _, tt := range tests {
		if got := s.Substitute(tt.in); got != tt.want {
			t.Errorf("Substitute(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSetBidiRTL(t *testing.T) {
	s := New()
	s.SetBidi(true)
	want := map[string]string{
		BidiStartEdge:  "right",
		BidiEndEdge:    "left",
		BidiDir:        "rtl",
		BidiReverseDir: "ltr",
	}
	for name, v := range want {
		if got, ok := s.GetSubstitution(Bidi, name); !ok || got != v {
			t.Errorf("%s = %q, %v; want %q", name, got, ok, v)
		}
	}
}

func TestGetSubstitutionMissing(t *testing.T) {
	s := New()
	if _, ok := s.GetSubstitution(UserPref, "nope"); ok {
		t.Error("expected missing value")
	}
	s.AddSubstitution(Type("CUSTOM"), "k", "v")
	if v, ok := s.GetSubstitution(Type("CUSTOM"), "k"); !ok || v != "v" {
		t.Errorf("custom type = %q, %v", v, ok)
	}
}
