package feature

import (
	"fmt"
	"strings"
)

// ScriptKind tags a ScriptEntry.
type ScriptKind int

const (
	// Inline entries carry literal script source.
	Inline ScriptKind = iota
	// File entries carry a path relative to the descriptor's BasePath.
	File
	// URL entries carry an absolute http(s) URL fetched at assembly time.
	URL
)

var scriptKindNames = [...]string{Inline: "inline", File: "file", URL: "url"}

func (k ScriptKind) String() string {
	if int(k) < len(scriptKindNames) {
		return scriptKindNames[k]
	}
	return fmt.Sprintf("ScriptKind(%d)", int(k))
}

// MarshalText encodes the kind by name for registry snapshots.
func (k ScriptKind) MarshalText() ([]byte, error) {
	if int(k) >= len(scriptKindNames) || k < 0 {
		return nil, fmt.Errorf("unknown script kind %d", int(k))
	}
	return []byte(scriptKindNames[k]), nil
}

// UnmarshalText decodes a kind name.
func (k *ScriptKind) UnmarshalText(b []byte) error {
	for i, name := range scriptKindNames {
		if string(b) == name {
			*k = ScriptKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown script kind %q", b)
}

// ScriptEntry is one script of a feature: inline source, a local file or a
// remote URL.
type ScriptEntry struct {
	Kind    ScriptKind `json:"kind"`
	Content string     `json:"content"`
}

// InlineScript returns an Inline entry.
func InlineScript(src string) ScriptEntry { return ScriptEntry{Kind: Inline, Content: src} }

// FileScript returns a File entry.
func FileScript(path string) ScriptEntry { return ScriptEntry{Kind: File, Content: path} }

// URLScript returns a URL entry.
func URLScript(u string) ScriptEntry { return ScriptEntry{Kind: URL, Content: u} }

// RenderContext selects which of a feature's script lists applies.
type RenderContext int

const (
	// GadgetContext is the sandboxed gadget iframe.
	GadgetContext RenderContext = iota
	// ContainerContext is the hosting container page.
	ContainerContext
)

func (c RenderContext) String() string {
	if c == ContainerContext {
		return "container"
	}
	return "gadget"
}

// ParseRenderContext maps "gadget" or "container" (any case) to a context.
func ParseRenderContext(s string) (RenderContext, error) {
	switch strings.ToLower(s) {
	case "gadget", "":
		return GadgetContext, nil
	case "container":
		return ContainerContext, nil
	}
	return GadgetContext, fmt.Errorf("unknown render context %q", s)
}

// Descriptor is the parsed form of one feature.xml. It is not modified after
// the registry is built.
type Descriptor struct {
	Name             string        `json:"name"`
	Dependencies     []string      `json:"dependencies,omitempty"`
	GadgetScripts    []ScriptEntry `json:"gadget_scripts,omitempty"`
	ContainerScripts []ScriptEntry `json:"container_scripts,omitempty"`
	BasePath         string        `json:"base_path"`
}

// Scripts returns the script list for ctx. It may be empty.
func (d *Descriptor) Scripts(ctx RenderContext) []ScriptEntry {
	if ctx == ContainerContext {
		return d.ContainerScripts
	}
	return d.GadgetScripts
}

// IsCore reports whether the feature belongs to the core baseline.
func (d *Descriptor) IsCore() bool { return IsCoreName(d.Name) }

// IsCoreName reports whether name is a core feature name.
func IsCoreName(name string) bool {
	return strings.HasPrefix(strings.ToLower(name), "core")
}

// exemptFromCore reports whether a feature is excluded from core injection.
func exemptFromCore(name string) bool {
	return IsCoreName(name) || name == "glob" || name == "shindig.auth"
}

// DependsOn reports whether dep is a declared dependency, ignoring case.
func (d *Descriptor) DependsOn(dep string) bool {
	for _, existing := range d.Dependencies {
		if strings.EqualFold(existing, dep) {
			return true
		}
	}
	return false
}

func (d *Descriptor) clone() *Descriptor {
	c := *d
	c.Dependencies = append([]string(nil), d.Dependencies...)
	return &c
}
