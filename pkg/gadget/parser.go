package gadget

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	gerrors "github.com/matzehuels/gadgethost/pkg/errors"
	"github.com/matzehuels/gadgethost/pkg/httpfetch"
)

// SpecParser turns gadget spec XML into a Gadget.
type SpecParser interface {
	Parse(data []byte, ctx *Context) (*Gadget, error)
}

// XMLParser parses the OpenSocial gadget spec format.
type XMLParser struct{}

type xmlModule struct {
	XMLName   xml.Name        `xml:"Module"`
	Prefs     *xmlModulePrefs `xml:"ModulePrefs"`
	UserPrefs []xmlUserPref   `xml:"UserPref"`
	Content   []xmlContent    `xml:"Content"`
}

type xmlModulePrefs struct {
	Title       string       `xml:"title,attr"`
	TitleURL    string       `xml:"title_url,attr"`
	Author      string       `xml:"author,attr"`
	AuthorEmail string       `xml:"author_email,attr"`
	Description string       `xml:"description,attr"`
	Screenshot  string       `xml:"screenshot,attr"`
	Thumbnail   string       `xml:"thumbnail,attr"`
	Height      string       `xml:"height,attr"`
	Width       string       `xml:"width,attr"`
	Scrolling   string       `xml:"scrolling,attr"`
	Require     []xmlRequire `xml:"Require"`
	Optional    []xmlRequire `xml:"Optional"`
	Preload     []xmlPreload `xml:"Preload"`
	Locale      []xmlLocale  `xml:"Locale"`
}

type xmlRequire struct {
	Feature string     `xml:"feature,attr"`
	Params  []xmlParam `xml:"Param"`
}

type xmlParam struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

type xmlPreload struct {
	Href       string  `xml:"href,attr"`
	Authz      string  `xml:"authz,attr"`
	SignOwner  *string `xml:"sign_owner,attr"`
	SignViewer *string `xml:"sign_viewer,attr"`
	Views      string  `xml:"views,attr"`
}

type xmlLocale struct {
	Lang      string   `xml:"lang,attr"`
	Country   string   `xml:"country,attr"`
	Messages  string   `xml:"messages,attr"`
	Direction string   `xml:"language_direction,attr"`
	Msgs      []xmlMsg `xml:"msg"`
}

type xmlMsg struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

type xmlUserPref struct {
	Name         string         `xml:"name,attr"`
	DisplayName  string         `xml:"display_name,attr"`
	DefaultValue string         `xml:"default_value,attr"`
	DataType     string         `xml:"datatype,attr"`
	Required     string         `xml:"required,attr"`
	EnumValues   []xmlEnumValue `xml:"EnumValue"`
}

type xmlEnumValue struct {
	Value        string `xml:"value,attr"`
	DisplayValue string `xml:"display_value,attr"`
}

type xmlContent struct {
	Type string `xml:"type,attr"`
	View string `xml:"view,attr"`
	Href string `xml:"href,attr"`
	Body string `xml:",chardata"`
}

// Parse implements SpecParser. Structural problems are INVALID_SPEC errors.
func (XMLParser) Parse(data []byte, ctx *Context) (*Gadget, error) {
	var m xmlModule
	if err := xml.Unmarshal(data, &m); err != nil {
		return nil, gerrors.Wrap(gerrors.ErrCodeInvalidSpec, err, "parse gadget spec")
	}
	if m.Prefs == nil {
		return nil, gerrors.New(gerrors.ErrCodeInvalidSpec, "missing ModulePrefs")
	}
	if len(m.Content) == 0 {
		return nil, gerrors.New(gerrors.ErrCodeInvalidSpec, "missing Content")
	}

	p := m.Prefs
	g := &Gadget{
		Title:       p.Title,
		TitleURL:    p.TitleURL,
		Author:      p.Author,
		AuthorEmail: p.AuthorEmail,
		Description: p.Description,
		Screenshot:  p.Screenshot,
		Thumbnail:   p.Thumbnail,
		Height:      atoi(p.Height),
		Width:       atoi(p.Width),
		Scrolling:   parseBool(p.Scrolling, false),
		Views:       make(map[string]*View),
	}
	if ctx != nil {
		g.ID = ctx.URL
		g.ModuleID = ctx.ModuleID
	}

	for _, r := range p.Require {
		if err := addRequirement(g, r, false); err != nil {
			return nil, err
		}
	}
	for _, r := range p.Optional {
		if err := addRequirement(g, r, true); err != nil {
			return nil, err
		}
	}

	for _, pl := range p.Preload {
		if strings.TrimSpace(pl.Href) == "" {
			return nil, gerrors.New(gerrors.ErrCodeInvalidSpec, "Preload without href")
		}
		g.Preloads = append(g.Preloads, &Preload{
			Href:       strings.TrimSpace(pl.Href),
			AuthType:   httpfetch.ParseAuthType(pl.Authz),
			SignOwner:  parseBoolPtr(pl.SignOwner, true),
			SignViewer: parseBoolPtr(pl.SignViewer, true),
			Views:      splitList(pl.Views),
		})
	}

	for _, l := range p.Locale {
		ls := &LocaleSpec{
			Locale:      NewLocale(l.Lang, l.Country),
			MessagesURL: strings.TrimSpace(l.Messages),
			RTL:         strings.EqualFold(strings.TrimSpace(l.Direction), "rtl"),
		}
		if len(l.Msgs) > 0 {
			ls.Messages = make(map[string]string, len(l.Msgs))
			for _, msg := range l.Msgs {
				ls.Messages[msg.Name] = strings.TrimSpace(msg.Value)
			}
		}
		g.Locales = append(g.Locales, ls)
	}

	for _, up := range m.UserPrefs {
		if up.Name == "" {
			return nil, gerrors.New(gerrors.ErrCodeInvalidSpec, "UserPref without name")
		}
		pref := &UserPref{
			Name:         up.Name,
			DisplayName:  up.DisplayName,
			DefaultValue: up.DefaultValue,
			DataType:     strings.ToLower(up.DataType),
			Required:     parseBool(up.Required, false),
		}
		if pref.DataType == "" {
			pref.DataType = "string"
		}
		for _, ev := range up.EnumValues {
			display := ev.DisplayValue
			if display == "" {
				display = ev.Value
			}
			pref.EnumValues = append(pref.EnumValues, EnumValue{Value: ev.Value, DisplayValue: display})
		}
		g.UserPrefs = append(g.UserPrefs, pref)
	}

	for _, c := range m.Content {
		if err := addContent(g, c); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func addRequirement(g *Gadget, r xmlRequire, optional bool) error {
	name := strings.TrimSpace(r.Feature)
	if name == "" {
		return gerrors.New(gerrors.ErrCodeInvalidSpec, "feature declaration without a name")
	}
	req := &Requirement{Name: name, Optional: optional}
	if len(r.Params) > 0 {
		req.Params = make(map[string][]string)
		for _, p := range r.Params {
			req.Params[p.Name] = append(req.Params[p.Name], strings.TrimSpace(p.Value))
		}
	}
	g.AddRequirement(req)
	return nil
}

// addContent merges a Content section into the views it names. Sections that
// share a view are concatenated.
func addContent(g *Gadget, c xmlContent) error {
	typ := ViewType(strings.ToLower(strings.TrimSpace(c.Type)))
	if typ == "" {
		typ = ViewHTML
	}
	if typ != ViewHTML && typ != ViewURL {
		return gerrors.New(gerrors.ErrCodeInvalidSpec, "unsupported Content type %q", c.Type)
	}
	href := strings.TrimSpace(c.Href)
	if typ == ViewURL && href == "" {
		return gerrors.New(gerrors.ErrCodeInvalidSpec, "url Content without href")
	}

	names := splitList(c.View)
	if len(names) == 0 {
		names = []string{DefaultView}
	}
	for _, name := range names {
		v, ok := g.Views[name]
		if !ok {
			g.Views[name] = &View{Name: name, Type: typ, Href: href, Body: c.Body}
			continue
		}
		if v.Type != typ {
			return gerrors.New(gerrors.ErrCodeInvalidSpec, "view %q mixes %s and %s content", name, v.Type, typ)
		}
		v.Body += c.Body
		if href != "" {
			v.Href = href
		}
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func parseBool(s string, def bool) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return b
}

func parseBoolPtr(s *string, def bool) bool {
	if s == nil {
		return def
	}
	return parseBool(*s, def)
}

// ParseMessageBundle parses a <messagebundle> document into a name to text
// map.
func ParseMessageBundle(data []byte) (map[string]string, error) {
	var b struct {
		XMLName xml.Name `xml:"messagebundle"`
		Msgs    []xmlMsg `xml:"msg"`
	}
	if err := xml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse message bundle: %w", err)
	}
	out := make(map[string]string, len(b.Msgs))
	for _, m := range b.Msgs {
		if m.Name != "" {
			out[m.Name] = strings.TrimSpace(m.Value)
		}
	}
	return out, nil
}

var _ SpecParser = XMLParser{}
