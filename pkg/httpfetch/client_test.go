package httpfetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestFetcher(t *testing.T, opts Options) *HTTPFetcher {
	t.Helper()
	if opts.RetryDelay == 0 {
		opts.RetryDelay = time.Millisecond
	}
	f, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return f
}

func TestFetchCachesOK(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if ua := r.Header.Get("User-Agent"); ua == "" {
			t.Error("missing User-Agent")
		}
		w.Header().Set("Content-Type", "text/xml")
		_, _ = w.Write([]byte("<Module/>"))
	}))
	defer srv.Close()

	f := newTestFetcher(t, Options{})
	ctx := context.Background()

	for range 2 {
		resp, err := f.Fetch(ctx, &Request{URL: srv.URL})
		if err != nil {
			t.Fatalf("Fetch: %v", err)
		}
		if !resp.OK() || string(resp.Body) != "<Module/>" {
			t.Fatalf("resp = %d %q", resp.StatusCode, resp.Body)
		}
		if resp.Header.Get("Content-Type") != "text/xml" {
			t.Errorf("Content-Type = %q", resp.Header.Get("Content-Type"))
		}
	}
	if hits.Load() != 1 {
		t.Errorf("server hits = %d, want 1", hits.Load())
	}

	if _, err := f.Fetch(ctx, &Request{URL: srv.URL, IgnoreCache: true}); err != nil {
		t.Fatal(err)
	}
	if hits.Load() != 2 {
		t.Errorf("IgnoreCache should bypass cache, hits = %d", hits.Load())
	}

	f.Purge()
	_, _ = f.Fetch(ctx, &Request{URL: srv.URL})
	if hits.Load() != 3 {
		t.Errorf("Purge should empty cache, hits = %d", hits.Load())
	}
}

func TestFetchNotFoundIsNotRetriedOrCached(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := newTestFetcher(t, Options{})
	for range 2 {
		resp, err := f.Fetch(context.Background(), &Request{URL: srv.URL})
		if err != nil {
			t.Fatalf("Fetch: %v", err)
		}
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("StatusCode = %d", resp.StatusCode)
		}
	}
	if hits.Load() != 2 {
		t.Errorf("hits = %d, want 2 (one per call, no retry, no cache)", hits.Load())
	}
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := newTestFetcher(t, Options{Attempts: 3})
	resp, err := f.Fetch(context.Background(), &Request{URL: srv.URL})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !resp.OK() || hits.Load() != 3 {
		t.Errorf("status=%d hits=%d", resp.StatusCode, hits.Load())
	}
}

func TestFetchExhaustedServerErrorReturnsResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := newTestFetcher(t, Options{Attempts: 2})
	resp, err := f.Fetch(context.Background(), &Request{URL: srv.URL})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d", resp.StatusCode)
	}
}

func TestFetchTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	f := newTestFetcher(t, Options{Attempts: 2})
	if _, err := f.Fetch(context.Background(), &Request{URL: url}); err == nil {
		t.Error("expected error for closed server")
	}
}

func TestFetchSigned(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(r.Header.Get("X-Signed")))
	}))
	defer srv.Close()

	t.Run("without signer", func(t *testing.T) {
		f := newTestFetcher(t, Options{})
		_, err := f.Fetch(context.Background(), &Request{URL: srv.URL, AuthType: AuthSigned})
		if !errors.Is(err, ErrNoSigner) {
			t.Errorf("err = %v, want ErrNoSigner", err)
		}
	})

	t.Run("with signer", func(t *testing.T) {
		signer := SignerFunc(func(_ context.Context, r *http.Request, req *Request) error {
			if req.SignOwner {
				r.Header.Set("X-Signed", "owner")
			}
			return nil
		})
		f := newTestFetcher(t, Options{Signer: signer})
		before := hits.Load()
		for range 2 {
			resp, err := f.Fetch(context.Background(), &Request{URL: srv.URL, AuthType: AuthOAuth, SignOwner: true})
			if err != nil {
				t.Fatal(err)
			}
			if string(resp.Body) != "owner" {
				t.Errorf("body = %q", resp.Body)
			}
		}
		if hits.Load()-before != 2 {
			t.Error("signed responses must not be cached")
		}
	})
}

func TestFetchEmptyURL(t *testing.T) {
	f := newTestFetcher(t, Options{})
	if _, err := f.Fetch(context.Background(), &Request{}); err == nil {
		t.Error("expected error for empty url")
	}
}

func TestParseAuthType(t *testing.T) {
	tests := []struct {
		in   string
		want AuthType
	}{
		{"", AuthNone},
		{"none", AuthNone},
		{"SIGNED", AuthSigned},
		{" oauth ", AuthOAuth},
		{"bogus", AuthNone},
	}
	for _, tt := range tests {
		if got := ParseAuthType(tt.in); got != tt.want {
			t.Errorf("ParseAuthType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
