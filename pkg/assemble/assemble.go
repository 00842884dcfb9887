// Package assemble turns resolved features into the script payload embedded
// in a rendered gadget.
//
// For one feature and one render context the [Assembler] walks the declared
// script entries in order: inline source is used as is, files are read from
// the descriptor's base path and URLs are fetched. Entries are joined with a
// newline. An unreadable file fails the request; a URL that cannot be fetched
// contributes empty content and the payload is served degraded.
//
// Assembled content is stored in a [cache.Cache] under the feature, the
// context and a fingerprint of the script sources. The fingerprint covers the
// declared entries and the size and modification time of every file, so a
// persistent cache never serves content built from files that have since
// changed. Entries never expire; they are dropped by [Assembler.Clear].
// Concurrent requests for the same key collapse into one load that outlives
// the cancellation of any single caller.
package assemble

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/gadgethost/pkg/cache"
	gerrors "github.com/matzehuels/gadgethost/pkg/errors"
	"github.com/matzehuels/gadgethost/pkg/feature"
	"github.com/matzehuels/gadgethost/pkg/httpfetch"
	"github.com/matzehuels/gadgethost/pkg/minify"
	"github.com/matzehuels/gadgethost/pkg/observability"
)

// Options configure an Assembler. Nil fields select the defaults.
type Options struct {
	Fetcher httpfetch.Fetcher
	// Minifier compresses assembled content. Nil disables compression.
	Minifier minify.Minifier
	Cache    cache.Cache
	Keyer    cache.Keyer
	Logger   *log.Logger
	// ReadFile reads File entries; defaults to os.ReadFile.
	ReadFile func(path string) ([]byte, error)
	// Stat describes File entries for the content fingerprint; defaults to
	// os.Stat.
	Stat func(path string) (os.FileInfo, error)
}

// Assembler builds feature script payloads. It is safe for concurrent use.
type Assembler struct {
	reg      *feature.Registry
	fetcher  httpfetch.Fetcher
	minifier minify.Minifier
	cache    cache.Cache
	keyer    cache.Keyer
	logger   *log.Logger
	readFile func(string) ([]byte, error)
	stat     func(string) (os.FileInfo, error)

	group   singleflight.Group
	written sync.Map // keys stored by this assembler
	prints  sync.Map // feature and context to source fingerprint
}

// New creates an Assembler over reg.
func New(reg *feature.Registry, opts Options) *Assembler {
	a := &Assembler{
		reg:      reg,
		fetcher:  opts.Fetcher,
		minifier: opts.Minifier,
		cache:    opts.Cache,
		keyer:    opts.Keyer,
		logger:   opts.Logger,
		readFile: opts.ReadFile,
		stat:     opts.Stat,
	}
	if a.cache == nil {
		a.cache = cache.NewMemoryCache()
	}
	if a.keyer == nil {
		a.keyer = cache.NewDefaultKeyer()
	}
	if a.logger == nil {
		a.logger = log.New(io.Discard)
	}
	if a.readFile == nil {
		a.readFile = os.ReadFile
	}
	if a.stat == nil {
		a.stat = os.Stat
	}
	return a
}

// Compressed reports whether content is minified.
func (a *Assembler) Compressed() bool { return a.minifier != nil }

// Content returns the payload of one feature for rc. An unknown feature or a
// feature without scripts for rc yields empty content and no error.
//
// Callers waiting on the same key share one load. Cancelling ctx returns
// ctx.Err() to this caller only; the load keeps running for the others.
func (a *Assembler) Content(ctx context.Context, name string, rc feature.RenderContext) ([]byte, error) {
	d, ok := a.reg.Feature(name)
	if !ok {
		return []byte{}, nil
	}
	scripts := d.Scripts(rc)
	if len(scripts) == 0 {
		return []byte{}, nil
	}

	key := a.keyer.FeatureKey(d.Name, rc.String(), a.fingerprint(d, rc, scripts), a.Compressed())
	if data, hit := a.lookup(ctx, key); hit {
		return data, nil
	}
	observability.Cache().OnCacheMiss(ctx, "feature")

	loadCtx := context.WithoutCancel(ctx)
	ch := a.group.DoChan(key, func() (any, error) {
		if data, hit := a.lookup(loadCtx, key); hit {
			return data, nil
		}
		return a.load(loadCtx, d, scripts, key, rc)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

// ContentForMany concatenates the content of names in the given order. The
// caller supplies a dependency-safe order; nothing is reordered here.
//
// The result is not the plain concatenation of [Assembler.Content] results:
// a newline is appended after every non-empty payload that does not already
// end in one, so the last statement of a feature cannot run into the first
// statement of the next. Empty payloads add nothing. On error no partial
// payload is returned.
func (a *Assembler) ContentForMany(ctx context.Context, names []string, rc feature.RenderContext) ([]byte, error) {
	var buf bytes.Buffer
	for _, name := range names {
		data, err := a.Content(ctx, name, rc)
		if err != nil {
			return nil, err
		}
		if len(data) == 0 {
			continue
		}
		buf.Write(data)
		if data[len(data)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes(), nil
}

// Clear drops every entry this assembler stored and forgets the source
// fingerprints, so file changes are picked up by the next request.
func (a *Assembler) Clear(ctx context.Context) error {
	a.prints.Clear()
	var firstErr error
	a.written.Range(func(k, _ any) bool {
		if err := a.cache.Delete(ctx, k.(string)); err != nil && firstErr == nil {
			firstErr = err
		}
		a.written.Delete(k)
		return true
	})
	return firstErr
}

// fingerprint identifies the sources of one script list. It is computed once
// per feature and context until the next Clear.
func (a *Assembler) fingerprint(d *feature.Descriptor, rc feature.RenderContext, scripts []feature.ScriptEntry) string {
	memo := strings.ToLower(d.Name) + "\x00" + rc.String()
	if fp, ok := a.prints.Load(memo); ok {
		return fp.(string)
	}
	var buf bytes.Buffer
	for _, s := range scripts {
		fmt.Fprintf(&buf, "%d\x00%s\x00", s.Kind, s.Content)
		if s.Kind != feature.File {
			continue
		}
		path := scriptPath(d, s)
		buf.WriteString(path)
		if info, err := a.stat(path); err == nil {
			fmt.Fprintf(&buf, "\x00%d\x00%d", info.Size(), info.ModTime().UnixNano())
		}
		buf.WriteByte(0)
	}
	fp := cache.Hash(buf.Bytes())[:16]
	a.prints.Store(memo, fp)
	return fp
}

func scriptPath(d *feature.Descriptor, s feature.ScriptEntry) string {
	if filepath.IsAbs(s.Content) {
		return s.Content
	}
	return filepath.Join(d.BasePath, s.Content)
}

func (a *Assembler) lookup(ctx context.Context, key string) ([]byte, bool) {
	data, hit, err := a.cache.Get(ctx, key)
	if err != nil {
		a.logger.Warn("feature cache read failed", "key", key, "error", err)
		return nil, false
	}
	if hit {
		observability.Cache().OnCacheHit(ctx, "feature")
	}
	return data, hit
}

func (a *Assembler) load(ctx context.Context, d *feature.Descriptor, scripts []feature.ScriptEntry, key string, rc feature.RenderContext) ([]byte, error) {
	data, degraded, err := a.assemble(ctx, d, scripts)
	if err != nil {
		return nil, err
	}

	if a.minifier != nil {
		minified, err := a.minifier.Minify(data)
		if err != nil {
			a.logger.Warn("serving unminified feature", "feature", d.Name, "error", err)
			observability.Pipeline().OnDegraded(ctx, "feature_content", fmt.Sprintf("minify %s: %v", d.Name, err))
			return data, nil
		}
		data = minified
	}

	// Degraded content is served but not kept, so a later request can pick
	// up the remote script once it is reachable again.
	if degraded {
		return data, nil
	}
	if err := a.cache.Set(ctx, key, data, 0); err != nil {
		a.logger.Warn("feature cache write failed", "key", key, "error", err)
		return data, nil
	}
	a.written.Store(key, struct{}{})
	observability.Cache().OnCacheSet(ctx, "feature", len(data))
	a.logger.Debug("feature assembled", "feature", d.Name, "context", rc, "bytes", len(data))
	return data, nil
}

// assemble joins the entries of one script list in declared order. URL
// entries are fetched concurrently.
func (a *Assembler) assemble(ctx context.Context, d *feature.Descriptor, scripts []feature.ScriptEntry) ([]byte, bool, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	parts := make([][]byte, len(scripts))
	var degraded atomic.Bool
	g, gctx := errgroup.WithContext(ctx)

	var fileErr error
	for i, s := range scripts {
		switch s.Kind {
		case feature.Inline:
			parts[i] = []byte(s.Content)
		case feature.File:
			if fileErr != nil {
				continue
			}
			b, err := a.readFile(scriptPath(d, s))
			if err != nil {
				fileErr = gerrors.Wrap(gerrors.ErrCodeMissingScriptFile, err, "feature %s: script %s", d.Name, s.Content)
				cancel()
				continue
			}
			parts[i] = b
		case feature.URL:
			g.Go(func() error {
				b, ok := a.fetch(gctx, d.Name, s.Content)
				if !ok {
					degraded.Store(true)
				}
				parts[i] = b
				return nil
			})
		}
	}
	_ = g.Wait()

	if fileErr != nil {
		return nil, false, fileErr
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	return bytes.Join(parts, []byte("\n")), degraded.Load(), nil
}

func (a *Assembler) fetch(ctx context.Context, featureName, u string) ([]byte, bool) {
	if a.fetcher == nil {
		a.logger.Warn("no fetcher for remote script", "feature", featureName, "url", u)
		observability.Pipeline().OnDegraded(ctx, "feature_content", "no fetcher for "+u)
		return nil, false
	}
	resp, err := a.fetcher.Fetch(ctx, &httpfetch.Request{URL: u})
	if err != nil {
		a.logger.Warn("remote script unavailable", "feature", featureName, "url", u, "error", err)
		observability.Pipeline().OnDegraded(ctx, "feature_content", fmt.Sprintf("fetch %s: %v", u, err))
		return nil, false
	}
	if !resp.OK() {
		a.logger.Warn("remote script unavailable", "feature", featureName, "url", u, "status", resp.StatusCode)
		observability.Pipeline().OnDegraded(ctx, "feature_content", fmt.Sprintf("fetch %s: status %d", u, resp.StatusCode))
		return nil, false
	}
	return resp.Body, true
}
