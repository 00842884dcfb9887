package gadget

import (
	"testing"
)

func TestNewLocale(t *testing.T) {
	tests := []struct {
		lang, country string
		want          Locale
	}{
		{"en", "us", Locale{"en", "US"}},
		{"", "", Locale{All, All}},
		{"all", "all", Locale{All, All}},
		{" DE ", "", Locale{"de", All}},
	}
	for _, tt := range tests {
		if got := NewLocale(tt.lang, tt.country); got != tt.want {
			t.Errorf("NewLocale(%q, %q) = %v, want %v", tt.lang, tt.country, got, tt.want)
		}
	}
	if s := NewLocale("en", "US").String(); s != "en_US" {
		t.Errorf("String() = %q", s)
	}
}

func TestMatchLocales(t *testing.T) {
	all := &LocaleSpec{Locale: NewLocale("", "")}
	en := &LocaleSpec{Locale: NewLocale("en", "")}
	enUS := &LocaleSpec{Locale: NewLocale("en", "US")}
	fr := &LocaleSpec{Locale: NewLocale("fr", "")}
	g := &Gadget{Locales: []*LocaleSpec{all, fr, en, enUS}}

	tests := []struct {
		loc  Locale
		want []*LocaleSpec
	}{
		{NewLocale("en", "US"), []*LocaleSpec{enUS, en, all}},
		{NewLocale("en", "GB"), []*LocaleSpec{en, all}},
		{NewLocale("de", "DE"), []*LocaleSpec{all}},
		{NewLocale("", ""), []*LocaleSpec{all}},
	}
	for _, tt := range tests {
		got := g.MatchLocales(tt.loc)
		if len(got) != len(tt.want) {
			t.Errorf("MatchLocales(%v) = %d specs, want %d", tt.loc, len(got), len(tt.want))
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("MatchLocales(%v)[%d] = %v, want %v", tt.loc, i, got[i].Locale, tt.want[i].Locale)
			}
		}
	}
}

func TestAddRequirementMergesParams(t *testing.T) {
	g := &Gadget{}
	g.AddRequirement(&Requirement{Name: "views", Optional: true, Params: map[string][]string{"a": {"1"}}})
	g.AddRequirement(&Requirement{Name: "views", Optional: true, Params: map[string][]string{"a": {"2"}}})
	r := g.Requires["views"]
	if !r.Optional || len(r.Params["a"]) != 2 {
		t.Errorf("merged requirement = %+v", r)
	}
	if len(g.RequiredFeatures()) != 1 {
		t.Errorf("RequiredFeatures() = %v", g.RequiredFeatures())
	}
}

func TestRequirementIgnoresCase(t *testing.T) {
	g := &Gadget{}
	g.AddRequirement(&Requirement{Name: "Dynamic-Height", Params: map[string][]string{"max": {"400"}}})

	for _, name := range []string{"Dynamic-Height", "dynamic-height", "DYNAMIC-HEIGHT"} {
		r, ok := g.Requirement(name)
		if !ok || r.Param("max") != "400" {
			t.Errorf("Requirement(%q) = %+v, %v", name, r, ok)
		}
	}
	if _, ok := g.Requirement("tabs"); ok {
		t.Error("undeclared feature should not be found")
	}
}
