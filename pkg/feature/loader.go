package feature

import (
	"bufio"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/gadgethost/pkg/cache"
	gerrors "github.com/matzehuels/gadgethost/pkg/errors"
	"github.com/matzehuels/gadgethost/pkg/observability"
)

// ManifestName is the manifest looked up when a feature root is a directory.
const ManifestName = "features.txt"

// Loader reads feature manifests and descriptors from disk.
type Loader struct {
	// ResourceHost is the host[:port] that serves /gadgets/resources/ and is
	// the target of res:// script rewriting.
	ResourceHost string
	// Secure selects https for rewritten res:// URLs.
	Secure bool
	// Cache, when set, stores parsed descriptors keyed by the root set.
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewLoader returns a Loader with a discarding logger and no snapshot cache.
func NewLoader(resourceHost string, secure bool) *Loader {
	return &Loader{
		ResourceHost: resourceHost,
		Secure:       secure,
		Cache:        cache.NewNullCache(),
		Keyer:        cache.NewDefaultKeyer(),
		Logger:       log.New(io.Discard),
	}
}

// Load parses every root and builds the registry. A cached snapshot of the
// descriptors is used when available; sorting and cycle detection always run.
func (l *Loader) Load(ctx context.Context, roots []string) (*Registry, error) {
	start := time.Now()
	descriptors, err := l.snapshot(ctx, roots)
	if err != nil {
		observability.Pipeline().OnRegistryBuilt(ctx, 0, time.Since(start), err)
		return nil, err
	}
	reg, err := Build(descriptors)
	if err != nil {
		observability.Pipeline().OnRegistryBuilt(ctx, 0, time.Since(start), err)
		return nil, err
	}
	l.logger().Info("feature registry built", "features", reg.Len(), "core", len(reg.core), "duration", time.Since(start).Round(time.Millisecond))
	observability.Pipeline().OnRegistryBuilt(ctx, reg.Len(), time.Since(start), nil)
	return reg, nil
}

func (l *Loader) snapshot(ctx context.Context, roots []string) ([]*Descriptor, error) {
	c, keyer := l.Cache, l.Keyer
	if c == nil {
		return l.LoadAll(roots)
	}
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	key := keyer.RegistryKey(absRoots(roots), l.resourceBase())

	if data, hit, err := c.Get(ctx, key); err == nil && hit {
		var descriptors []*Descriptor
		if err := json.Unmarshal(data, &descriptors); err == nil {
			observability.Cache().OnCacheHit(ctx, "registry")
			l.logger().Debug("registry snapshot restored", "features", len(descriptors))
			return descriptors, nil
		}
		l.logger().Warn("discarding unreadable registry snapshot", "key", key)
	} else if err != nil {
		l.logger().Warn("registry snapshot lookup failed", "error", err)
	}
	observability.Cache().OnCacheMiss(ctx, "registry")

	descriptors, err := l.LoadAll(roots)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(descriptors); err == nil {
		if err := c.Set(ctx, key, data, 0); err != nil {
			l.logger().Warn("registry snapshot not stored", "error", err)
		} else {
			observability.Cache().OnCacheSet(ctx, "registry", len(data))
		}
	}
	return descriptors, nil
}

// LoadAll parses the descriptors of every root, in root order. Within a root,
// manifest entries are ordered by [SortManifestPaths]. When two descriptors
// share a name the first one wins and the later one is skipped with a warning.
func (l *Loader) LoadAll(roots []string) ([]*Descriptor, error) {
	var out []*Descriptor
	seen := make(map[string]string)
	for _, root := range roots {
		paths, err := manifestPaths(root)
		if err != nil {
			return nil, err
		}
		for _, p := range paths {
			d, err := l.ParseDescriptorFile(p)
			if err != nil {
				return nil, err
			}
			key := strings.ToLower(d.Name)
			if prev, dup := seen[key]; dup {
				l.logger().Warn("duplicate feature skipped", "feature", d.Name, "path", p, "kept", prev)
				continue
			}
			seen[key] = p
			out = append(out, d)
		}
	}
	return out, nil
}

// manifestPaths resolves root to a manifest and returns its sorted absolute
// descriptor paths.
func manifestPaths(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, gerrors.Wrap(gerrors.ErrCodeInvalidManifest, err, "feature root %s", root)
	}
	manifest := root
	if info.IsDir() {
		manifest = filepath.Join(root, ManifestName)
	}
	f, err := os.Open(manifest)
	if err != nil {
		return nil, gerrors.Wrap(gerrors.ErrCodeInvalidManifest, err, "open manifest %s", manifest)
	}
	defer f.Close()

	entries, err := ParseManifest(f)
	if err != nil {
		return nil, gerrors.Wrap(gerrors.ErrCodeInvalidManifest, err, "read manifest %s", manifest)
	}
	dir := filepath.Dir(manifest)
	paths := make([]string, len(entries))
	for i, e := range entries {
		if filepath.IsAbs(e) {
			paths[i] = filepath.Clean(e)
		} else {
			paths[i] = filepath.Join(dir, filepath.FromSlash(e))
		}
	}
	SortManifestPaths(paths)
	return paths, nil
}

// ParseManifest returns the descriptor references listed in a manifest, in
// file order. Blank lines, lines starting with "#" or "//", and lines that do
// not end in ".xml" are skipped.
func ParseManifest(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(line), ".xml") {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}

// SortManifestPaths stably sorts descriptor paths by the lowercase name of
// their immediate parent directory. The rest of the path is ignored, so
// entries in equally named directories keep their manifest order.
func SortManifestPaths(paths []string) {
	slices.SortStableFunc(paths, func(a, b string) int {
		return strings.Compare(parentKey(a), parentKey(b))
	})
}

func parentKey(p string) string {
	return strings.ToLower(filepath.Base(filepath.Dir(p)))
}

// ParseDescriptorFile reads and parses one feature.xml. The file's directory
// becomes the descriptor's BasePath.
func (l *Loader) ParseDescriptorFile(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, gerrors.Wrap(gerrors.ErrCodeInvalidDescriptor, err, "read descriptor %s", path)
	}
	d, err := l.ParseDescriptor(data, filepath.Dir(path))
	if err != nil {
		return nil, gerrors.Wrap(gerrors.ErrCodeInvalidDescriptor, err, "descriptor %s", path)
	}
	return d, nil
}

type xmlFeature struct {
	XMLName      xml.Name     `xml:"feature"`
	Name         string       `xml:"name"`
	Dependencies []string     `xml:"dependency"`
	Gadget       []xmlScripts `xml:"gadget"`
	Container    []xmlScripts `xml:"container"`
}

type xmlScripts struct {
	Scripts []xmlScript `xml:"script"`
}

type xmlScript struct {
	Src  *string `xml:"src,attr"`
	Body string  `xml:",chardata"`
}

// ParseDescriptor parses feature.xml content. A missing or empty name element
// is an error.
func (l *Loader) ParseDescriptor(data []byte, basePath string) (*Descriptor, error) {
	var x xmlFeature
	if err := xml.Unmarshal(data, &x); err != nil {
		return nil, fmt.Errorf("parse xml: %w", err)
	}
	name := strings.TrimSpace(x.Name)
	if name == "" {
		return nil, fmt.Errorf("missing required <name> element")
	}

	d := &Descriptor{Name: name, BasePath: basePath}
	for _, dep := range x.Dependencies {
		if dep = strings.TrimSpace(dep); dep != "" && !d.DependsOn(dep) {
			d.Dependencies = append(d.Dependencies, dep)
		}
	}
	for _, block := range x.Gadget {
		d.GadgetScripts = append(d.GadgetScripts, l.classify(block.Scripts)...)
	}
	for _, block := range x.Container {
		d.ContainerScripts = append(d.ContainerScripts, l.classify(block.Scripts)...)
	}
	return d, nil
}

func (l *Loader) classify(scripts []xmlScript) []ScriptEntry {
	out := make([]ScriptEntry, 0, len(scripts))
	for _, s := range scripts {
		if s.Src == nil || strings.TrimSpace(*s.Src) == "" {
			out = append(out, InlineScript(strings.TrimSpace(s.Body)))
			continue
		}
		out = append(out, l.ClassifySource(strings.TrimSpace(*s.Src)))
	}
	return out
}

// ClassifySource maps a script src attribute to an entry. http and https
// sources are URLs, res://host/path is rewritten to the resource host and
// anything else is a file path relative to the descriptor.
func (l *Loader) ClassifySource(src string) ScriptEntry {
	u, err := url.Parse(src)
	if err != nil {
		return FileScript(src)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return URLScript(src)
	case "res":
		return URLScript(fmt.Sprintf("%s/gadgets/resources/%s%s", l.resourceBase(), u.Host, u.Path))
	default:
		return FileScript(src)
	}
}

// resourceBase is the scheme and host res:// sources are rewritten against.
// Snapshots embed the rewritten URLs, so it is part of the snapshot key.
func (l *Loader) resourceBase() string {
	if l.Secure {
		return "https://" + l.ResourceHost
	}
	return "http://" + l.ResourceHost
}

func (l *Loader) logger() *log.Logger {
	if l.Logger == nil {
		return log.New(io.Discard)
	}
	return l.Logger
}

func absRoots(roots []string) []string {
	out := make([]string, len(roots))
	for i, r := range roots {
		if abs, err := filepath.Abs(r); err == nil {
			out[i] = abs
		} else {
			out[i] = r
		}
	}
	return out
}
