// Package gadget models a gadget being rendered: the request context, the
// parsed gadget spec and the outputs of the rendering pipeline.
//
// A [Gadget] is owned by exactly one request and discarded afterwards.
package gadget

import (
	"strings"

	"github.com/matzehuels/gadgethost/pkg/feature"
	"github.com/matzehuels/gadgethost/pkg/httpfetch"
	"github.com/matzehuels/gadgethost/pkg/substitute"
)

// DefaultView is used when a request names no view or an unknown one.
const DefaultView = "default"

// All is the wildcard language or country of a locale.
const All = "ALL"

// Locale identifies the viewer's language and country.
type Locale struct {
	Language string
	Country  string
}

// NewLocale normalizes language and country. Empty parts become All.
func NewLocale(language, country string) Locale {
	l := Locale{Language: strings.ToLower(strings.TrimSpace(language)), Country: strings.ToUpper(strings.TrimSpace(country))}
	if l.Language == "" || strings.EqualFold(l.Language, All) {
		l.Language = All
	}
	if l.Country == "" {
		l.Country = All
	}
	return l
}

func (l Locale) String() string { return l.Language + "_" + l.Country }

// Context carries the request parameters of one render.
type Context struct {
	URL           string
	Locale        Locale
	ModuleID      string
	View          string
	IgnoreCache   bool
	UserPrefs     map[string]string
	RenderContext feature.RenderContext
}

// Requirement is a Require or Optional declaration of a gadget spec.
type Requirement struct {
	Name     string
	Optional bool
	Params   map[string][]string
}

// Param returns the first value of a parameter.
func (r *Requirement) Param(name string) string {
	if v := r.Params[name]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// EnumValue is one choice of an enum user preference.
type EnumValue struct {
	Value        string
	DisplayValue string
}

// UserPref is a declared user preference. Value is filled by the pipeline.
type UserPref struct {
	Name         string
	DisplayName  string
	DefaultValue string
	DataType     string
	Required     bool
	EnumValues   []EnumValue
	Value        string
}

// Preload is a data fetch declared by a gadget spec.
type Preload struct {
	Href       string
	AuthType   httpfetch.AuthType
	SignOwner  bool
	SignViewer bool
	Views      []string
}

// AppliesTo reports whether the preload is wanted for view. A preload without
// views applies to all of them.
func (p *Preload) AppliesTo(view string) bool {
	if len(p.Views) == 0 {
		return true
	}
	for _, v := range p.Views {
		if v == view {
			return true
		}
	}
	return false
}

// ViewType distinguishes inline html content from url content.
type ViewType string

const (
	ViewHTML ViewType = "html"
	ViewURL  ViewType = "url"
)

// View is the content of one named view.
type View struct {
	Name string
	Type ViewType
	Href string
	Body string
}

// LocaleSpec is a Locale declaration of a gadget spec.
type LocaleSpec struct {
	Locale      Locale
	MessagesURL string
	RTL         bool
	Messages    map[string]string // inline <msg> children
}

// PreloadResult is the outcome of one preload fetch.
type PreloadResult struct {
	Href       string
	StatusCode int
	Body       []byte
	Err        string
}

// Gadget is a parsed spec plus the outputs of a render.
type Gadget struct {
	ID          string
	ModuleID    string
	Title       string
	TitleURL    string
	Author      string
	AuthorEmail string
	Description string
	Screenshot  string
	Thumbnail   string
	Height      int
	Width       int
	Scrolling   bool

	Requires  map[string]*Requirement
	UserPrefs []*UserPref
	Preloads  []*Preload
	Views     map[string]*View
	Locales   []*LocaleSpec

	requireOrder []string

	// Render outputs.
	MessageBundle   map[string]string
	Substitutions   *substitute.Substitutions
	Features        []string
	MissingOptional []string
	FeatureContent  []byte
	PreloadResults  []PreloadResult
}

// RequiredFeatures returns declared feature names, in declaration order.
func (g *Gadget) RequiredFeatures() []string {
	return append([]string(nil), g.requireOrder...)
}

// AddRequirement records a Require or Optional declaration. A feature declared
// twice is required if either declaration is.
func (g *Gadget) AddRequirement(r *Requirement) {
	if g.Requires == nil {
		g.Requires = make(map[string]*Requirement)
	}
	if prev, ok := g.Requires[r.Name]; ok {
		prev.Optional = prev.Optional && r.Optional
		for k, v := range r.Params {
			if prev.Params == nil {
				prev.Params = make(map[string][]string)
			}
			prev.Params[k] = append(prev.Params[k], v...)
		}
		return
	}
	g.Requires[r.Name] = r
	g.requireOrder = append(g.requireOrder, r.Name)
}

// Requirement returns the declaration of a feature. Feature names match
// without regard to case, so a registry name finds the declaration however
// the spec spelled it.
func (g *Gadget) Requirement(name string) (*Requirement, bool) {
	if r, ok := g.Requires[name]; ok {
		return r, true
	}
	for _, declared := range g.requireOrder {
		if strings.EqualFold(declared, name) {
			return g.Requires[declared], true
		}
	}
	return nil, false
}

// View returns the named view, falling back to the default view.
func (g *Gadget) View(name string) (*View, bool) {
	if name == "" {
		name = DefaultView
	}
	if v, ok := g.Views[name]; ok {
		return v, true
	}
	v, ok := g.Views[DefaultView]
	return v, ok
}

// MatchLocales returns the locale specs that apply to loc, most specific
// first: exact match, language with any country, then any language.
func (g *Gadget) MatchLocales(loc Locale) []*LocaleSpec {
	candidates := []Locale{
		loc,
		{Language: loc.Language, Country: All},
		{Language: All, Country: All},
	}
	var out []*LocaleSpec
	seen := make(map[Locale]bool)
	for _, c := range candidates {
		if seen[c] {
			continue
		}
		seen[c] = true
		for _, ls := range g.Locales {
			if ls.Locale == c {
				out = append(out, ls)
				break
			}
		}
	}
	return out
}

// UserPref returns a declared preference by name.
func (g *Gadget) UserPref(name string) (*UserPref, bool) {
	for _, p := range g.UserPrefs {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}
