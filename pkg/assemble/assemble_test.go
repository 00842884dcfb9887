package assemble

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matzehuels/gadgethost/pkg/cache"
	gerrors "github.com/matzehuels/gadgethost/pkg/errors"
	"github.com/matzehuels/gadgethost/pkg/feature"
	"github.com/matzehuels/gadgethost/pkg/httpfetch"
)

// stubFetcher serves fixed bodies and counts calls.
type stubFetcher struct {
	bodies map[string]string
	delay  map[string]time.Duration
	calls  atomic.Int32
}

func (s *stubFetcher) Fetch(ctx context.Context, req *httpfetch.Request) (*httpfetch.Response, error) {
	s.calls.Add(1)
	if d := s.delay[req.URL]; d > 0 {
		time.Sleep(d)
	}
	body, ok := s.bodies[req.URL]
	if !ok {
		return &httpfetch.Response{StatusCode: http.StatusNotFound}, nil
	}
	if body == "!error" {
		return nil, errors.New("connection refused")
	}
	return &httpfetch.Response{StatusCode: http.StatusOK, Body: []byte(body)}, nil
}

// gatedFetcher holds every fetch until release is closed or the request
// context ends.
type gatedFetcher struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedFetcher() *gatedFetcher {
	return &gatedFetcher{started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedFetcher) Fetch(ctx context.Context, req *httpfetch.Request) (*httpfetch.Response, error) {
	g.once.Do(func() { close(g.started) })
	select {
	case <-g.release:
		return &httpfetch.Response{StatusCode: http.StatusOK, Body: []byte("remote();")}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// stubFiles serves an in-memory file system and counts reads.
type stubFiles struct {
	files map[string]string
	reads atomic.Int32
}

func (s *stubFiles) ReadFile(path string) ([]byte, error) {
	s.reads.Add(1)
	content, ok := s.files[filepath.ToSlash(path)]
	if !ok {
		return nil, os.ErrNotExist
	}
	return []byte(content), nil
}

// stubMinifier wraps its input and counts calls.
type stubMinifier struct{ calls atomic.Int32 }

func (m *stubMinifier) Minify(src []byte) ([]byte, error) {
	m.calls.Add(1)
	return []byte(fmt.Sprintf("min(%s)", src)), nil
}

type fixture struct {
	reg     *feature.Registry
	fetcher *stubFetcher
	files   *stubFiles
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg, err := feature.Build([]*feature.Descriptor{
		{
			Name:          "core",
			BasePath:      "/f/core",
			GadgetScripts: []feature.ScriptEntry{feature.FileScript("core.js"), feature.InlineScript("core.init();")},
		},
		{
			Name:     "rpc",
			BasePath: "/f/rpc",
			GadgetScripts: []feature.ScriptEntry{
				feature.URLScript("http://cdn/slow.js"),
				feature.InlineScript("rpc.mid();"),
				feature.URLScript("http://cdn/fast.js"),
			},
			ContainerScripts: []feature.ScriptEntry{feature.FileScript("/abs/rpc-container.js")},
		},
		{
			Name:          "flaky",
			GadgetScripts: []feature.ScriptEntry{feature.InlineScript("a"), feature.URLScript("http://cdn/missing.js"), feature.URLScript("http://cdn/down.js")},
		},
		{
			Name:          "broken",
			BasePath:      "/f/broken",
			GadgetScripts: []feature.ScriptEntry{feature.URLScript("http://cdn/fast.js"), feature.FileScript("nope.js")},
		},
		{Name: "gadget-only", GadgetScripts: []feature.ScriptEntry{feature.InlineScript("g();")}},
	})
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{
		reg: reg,
		fetcher: &stubFetcher{
			bodies: map[string]string{
				"http://cdn/slow.js": "slow();",
				"http://cdn/fast.js": "fast();",
				"http://cdn/down.js": "!error",
			},
			delay: map[string]time.Duration{"http://cdn/slow.js": 20 * time.Millisecond},
		},
		files: &stubFiles{files: map[string]string{
			"/f/core/core.js":       "var core = {};",
			"/abs/rpc-container.js": "container.rpc();",
		}},
	}
}

func (f *fixture) assembler(opts Options) *Assembler {
	opts.Fetcher = f.fetcher
	opts.ReadFile = f.files.ReadFile
	return New(f.reg, opts)
}

func TestContentJoinsEntriesInDeclaredOrder(t *testing.T) {
	f := newFixture(t)
	a := f.assembler(Options{})
	ctx := context.Background()

	tests := []struct {
		name string
		rc   feature.RenderContext
		want string
	}{
		{"core", feature.GadgetContext, "var core = {};\ncore.init();"},
		{"rpc", feature.GadgetContext, "slow();\nrpc.mid();\nfast();"},
		{"rpc", feature.ContainerContext, "container.rpc();"},
		{"core", feature.ContainerContext, ""},
		{"gadget-only", feature.ContainerContext, ""},
		{"unknown", feature.GadgetContext, ""},
	}
	for _, tt := range tests {
		got, err := a.Content(ctx, tt.name, tt.rc)
		if err != nil {
			t.Fatalf("Content(%s, %s): %v", tt.name, tt.rc, err)
		}
		if string(got) != tt.want {
			t.Errorf("Content(%s, %s) = %q, want %q", tt.name, tt.rc, got, tt.want)
		}
	}
}

func TestContentMissingFileIsFatal(t *testing.T) {
	f := newFixture(t)
	a := f.assembler(Options{})

	_, err := a.Content(context.Background(), "broken", feature.GadgetContext)
	if !gerrors.Is(err, gerrors.ErrCodeMissingScriptFile) {
		t.Fatalf("err = %v, want MISSING_SCRIPT_FILE", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err should wrap the read error: %v", err)
	}
}

func TestContentFailedURLIsDegraded(t *testing.T) {
	f := newFixture(t)
	a := f.assembler(Options{})
	ctx := context.Background()

	got, err := a.Content(ctx, "flaky", feature.GadgetContext)
	if err != nil {
		t.Fatalf("degraded fetch should not fail: %v", err)
	}
	if string(got) != "a\n\n" {
		t.Errorf("Content = %q, want %q", got, "a\n\n")
	}

	before := f.fetcher.calls.Load()
	_, _ = a.Content(ctx, "flaky", feature.GadgetContext)
	if f.fetcher.calls.Load() == before {
		t.Error("degraded content should not be cached")
	}
}

func TestContentCacheIdempotent(t *testing.T) {
	f := newFixture(t)
	m := &stubMinifier{}
	a := f.assembler(Options{Minifier: m})
	ctx := context.Background()

	first, err := a.Content(ctx, "core", feature.GadgetContext)
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != "min(var core = {};\ncore.init();)" {
		t.Errorf("Content = %q", first)
	}
	reads, mins := f.files.reads.Load(), m.calls.Load()

	second, err := a.Content(ctx, "core", feature.GadgetContext)
	if err != nil {
		t.Fatal(err)
	}
	if string(second) != string(first) {
		t.Errorf("second call = %q, want %q", second, first)
	}
	if f.files.reads.Load() != reads {
		t.Error("second call should not read files")
	}
	if m.calls.Load() != mins {
		t.Error("second call should not minify again")
	}

	fetches := f.fetcher.calls.Load()
	_, _ = a.Content(ctx, "rpc", feature.GadgetContext)
	_, _ = a.Content(ctx, "rpc", feature.GadgetContext)
	if got := f.fetcher.calls.Load() - fetches; got != 2 {
		t.Errorf("fetches = %d, want 2 (one per URL entry)", got)
	}
}

func TestContentForManyColdWarm(t *testing.T) {
	f := newFixture(t)
	a := f.assembler(Options{})
	ctx := context.Background()
	order := []string{"core", "rpc", "gadget-only"}

	cold, err := a.ContentForMany(ctx, order, feature.GadgetContext)
	if err != nil {
		t.Fatal(err)
	}
	want := "var core = {};\ncore.init();\n" + "slow();\nrpc.mid();\nfast();\n" + "g();\n"
	if string(cold) != want {
		t.Errorf("ContentForMany = %q, want %q", cold, want)
	}

	reads := f.files.reads.Load()
	warm, err := a.ContentForMany(ctx, order, feature.GadgetContext)
	if err != nil {
		t.Fatal(err)
	}
	if string(warm) != string(cold) {
		t.Errorf("warm %q != cold %q", warm, cold)
	}
	if f.files.reads.Load() != reads {
		t.Error("warm call should be served from cache")
	}

	// The given order is kept even when it is not a dependency order.
	reversed, _ := a.ContentForMany(ctx, []string{"gadget-only", "core"}, feature.GadgetContext)
	if string(reversed) != "g();\nvar core = {};\ncore.init();\n" {
		t.Errorf("reversed = %q", reversed)
	}
}

func TestContentForManyNoPartialPayload(t *testing.T) {
	f := newFixture(t)
	a := f.assembler(Options{})

	got, err := a.ContentForMany(context.Background(), []string{"core", "broken", "rpc"}, feature.GadgetContext)
	if err == nil {
		t.Fatal("expected error")
	}
	if got != nil {
		t.Errorf("partial payload returned: %q", got)
	}
}

func TestContentConcurrentSameKey(t *testing.T) {
	f := newFixture(t)
	a := f.assembler(Options{Minifier: &stubMinifier{}})
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]string, 20)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b, err := a.Content(ctx, "core", feature.GadgetContext)
			if err != nil {
				t.Error(err)
			}
			results[i] = string(b)
		}(i)
	}
	wg.Wait()

	if n := f.files.reads.Load(); n != 1 {
		t.Errorf("file reads = %d, want 1", n)
	}
	for _, r := range results {
		if r != results[0] {
			t.Fatalf("results differ: %q vs %q", r, results[0])
		}
	}
}

func TestClear(t *testing.T) {
	f := newFixture(t)
	store := cache.NewMemoryCache()
	a := f.assembler(Options{Cache: store})
	ctx := context.Background()

	_ = store.Set(ctx, "unrelated", []byte("x"), 0)
	_, _ = a.Content(ctx, "core", feature.GadgetContext)
	if store.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", store.Len())
	}

	if err := a.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if store.Len() != 1 {
		t.Errorf("Clear should only drop assembler entries, Len() = %d", store.Len())
	}

	reads := f.files.reads.Load()
	_, _ = a.Content(ctx, "core", feature.GadgetContext)
	if f.files.reads.Load() == reads {
		t.Error("content should be reloaded after Clear")
	}
}

func TestCompressedKeysAreSeparate(t *testing.T) {
	f := newFixture(t)
	store := cache.NewMemoryCache()
	ctx := context.Background()

	plain := f.assembler(Options{Cache: store})
	compressed := f.assembler(Options{Cache: store, Minifier: &stubMinifier{}})

	p, _ := plain.Content(ctx, "core", feature.GadgetContext)
	c, _ := compressed.Content(ctx, "core", feature.GadgetContext)
	if string(p) == string(c) {
		t.Error("compressed and plain content should be cached under different keys")
	}
}

func TestContentCancelledCallerDoesNotFailSharedLoad(t *testing.T) {
	reg, err := feature.Build([]*feature.Descriptor{
		{Name: "remote", GadgetScripts: []feature.ScriptEntry{feature.URLScript("http://cdn/remote.js")}},
	})
	if err != nil {
		t.Fatal(err)
	}
	fetcher := newGatedFetcher()
	a := New(reg, Options{Fetcher: fetcher})

	type result struct {
		data []byte
		err  error
	}
	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()
	first := make(chan result, 1)
	go func() {
		b, err := a.Content(ctxA, "remote", feature.GadgetContext)
		first <- result{b, err}
	}()
	<-fetcher.started

	second := make(chan result, 1)
	go func() {
		b, err := a.Content(context.Background(), "remote", feature.GadgetContext)
		second <- result{b, err}
	}()
	// Give the second caller time to join the in-flight load.
	time.Sleep(20 * time.Millisecond)

	cancelA()
	if r := <-first; !errors.Is(r.err, context.Canceled) {
		t.Fatalf("cancelled caller: data=%q err=%v, want context.Canceled", r.data, r.err)
	}

	close(fetcher.release)
	r := <-second
	if r.err != nil || string(r.data) != "remote();" {
		t.Fatalf("waiting caller: data=%q err=%v, want %q", r.data, r.err, "remote();")
	}

	got, err := a.Content(context.Background(), "remote", feature.GadgetContext)
	if err != nil || string(got) != "remote();" {
		t.Errorf("after shared load: data=%q err=%v", got, err)
	}
}

func TestContentKeyFollowsFileChanges(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "lib.js")
	if err := os.WriteFile(script, []byte("var v = 1;"), 0o644); err != nil {
		t.Fatal(err)
	}
	reg, err := feature.Build([]*feature.Descriptor{
		{Name: "lib", BasePath: dir, GadgetScripts: []feature.ScriptEntry{feature.FileScript("lib.js")}},
	})
	if err != nil {
		t.Fatal(err)
	}
	store, err := cache.NewFileCache(filepath.Join(dir, "cache"))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	got, err := New(reg, Options{Cache: store}).Content(ctx, "lib", feature.GadgetContext)
	if err != nil || string(got) != "var v = 1;" {
		t.Fatalf("first build: data=%q err=%v", got, err)
	}

	// An unchanged file is served from the persistent cache by a new assembler.
	cached := New(reg, Options{Cache: store, ReadFile: func(string) ([]byte, error) {
		t.Error("unchanged file should not be read again")
		return nil, os.ErrNotExist
	}})
	if got, err := cached.Content(ctx, "lib", feature.GadgetContext); err != nil || string(got) != "var v = 1;" {
		t.Fatalf("cached build: data=%q err=%v", got, err)
	}

	if err := os.WriteFile(script, []byte("var v = 2; // edited"), 0o644); err != nil {
		t.Fatal(err)
	}
	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(script, later, later); err != nil {
		t.Fatal(err)
	}

	got, err = New(reg, Options{Cache: store}).Content(ctx, "lib", feature.GadgetContext)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "var v = 2; // edited" {
		t.Errorf("after edit: %q, want the new file content", got)
	}
}

func TestContentForManyTerminatesPayloads(t *testing.T) {
	reg, err := feature.Build([]*feature.Descriptor{
		{Name: "open", GadgetScripts: []feature.ScriptEntry{feature.InlineScript("a()")}},
		{Name: "closed", GadgetScripts: []feature.ScriptEntry{feature.InlineScript("b();\n")}},
		{Name: "empty"},
	})
	if err != nil {
		t.Fatal(err)
	}
	a := New(reg, Options{})

	got, err := a.ContentForMany(context.Background(), []string{"open", "empty", "closed", "open"}, feature.GadgetContext)
	if err != nil {
		t.Fatal(err)
	}
	if want := "a()\nb();\na()\n"; string(got) != want {
		t.Errorf("ContentForMany = %q, want %q", got, want)
	}
}
