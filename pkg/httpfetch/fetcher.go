package httpfetch

import (
	"context"
	"net/http"
	"strings"
)

// AuthType selects how an outbound request is authenticated.
type AuthType string

const (
	AuthNone   AuthType = "none"
	AuthSigned AuthType = "signed"
	AuthOAuth  AuthType = "oauth"
)

// ParseAuthType maps a gadget spec authz attribute to an AuthType. Unknown
// values fall back to AuthNone.
func ParseAuthType(s string) AuthType {
	switch AuthType(strings.ToLower(strings.TrimSpace(s))) {
	case AuthSigned:
		return AuthSigned
	case AuthOAuth:
		return AuthOAuth
	default:
		return AuthNone
	}
}

// Request describes one outbound fetch.
type Request struct {
	URL         string
	IgnoreCache bool
	AuthType    AuthType
	SignOwner   bool
	SignViewer  bool
}

// Response is a fetched HTTP response with its body fully read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the response has status 200.
func (r *Response) OK() bool { return r != nil && r.StatusCode == http.StatusOK }

// Fetcher retrieves remote documents.
type Fetcher interface {
	Fetch(ctx context.Context, req *Request) (*Response, error)
}

// Signer attaches credentials to requests whose AuthType is signed or oauth.
// Token cryptography lives outside this module; implementations are injected.
type Signer interface {
	Sign(ctx context.Context, httpReq *http.Request, req *Request) error
}

// SignerFunc adapts a function to the Signer interface.
type SignerFunc func(ctx context.Context, httpReq *http.Request, req *Request) error

// Sign calls f.
func (f SignerFunc) Sign(ctx context.Context, httpReq *http.Request, req *Request) error {
	return f(ctx, httpReq, req)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, req *Request) (*Response, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}
