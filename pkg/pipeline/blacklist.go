package pipeline

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
)

// Blacklist rejects gadget spec URLs.
type Blacklist interface {
	IsBlacklisted(rawURL string) bool
}

// NoBlacklist accepts every URL.
type NoBlacklist struct{}

// IsBlacklisted always returns false.
func (NoBlacklist) IsBlacklisted(string) bool { return false }

// PatternBlacklist matches URLs against host globs and regular expressions.
//
// A pattern prefixed with "re:" is a regular expression matched against the
// full URL. Any other pattern is a glob (path.Match syntax) matched against
// the lowercase host, for example "*.example.com".
type PatternBlacklist struct {
	hosts []string
	exprs []*regexp.Regexp
}

// NewPatternBlacklist compiles patterns.
func NewPatternBlacklist(patterns []string) (*PatternBlacklist, error) {
	b := &PatternBlacklist{}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		switch {
		case p == "":
			continue
		case strings.HasPrefix(p, "re:"):
			re, err := regexp.Compile(strings.TrimPrefix(p, "re:"))
			if err != nil {
				return nil, fmt.Errorf("blacklist pattern %q: %w", p, err)
			}
			b.exprs = append(b.exprs, re)
		default:
			if _, err := path.Match(p, ""); err != nil {
				return nil, fmt.Errorf("blacklist pattern %q: %w", p, err)
			}
			b.hosts = append(b.hosts, strings.ToLower(p))
		}
	}
	return b, nil
}

// IsBlacklisted reports whether rawURL matches any pattern. Unparseable URLs
// are only checked against the regular expressions.
func (b *PatternBlacklist) IsBlacklisted(rawURL string) bool {
	for _, re := range b.exprs {
		if re.MatchString(rawURL) {
			return true
		}
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, glob := range b.hosts {
		if ok, _ := path.Match(glob, host); ok {
			return true
		}
	}
	return false
}

var (
	_ Blacklist = NoBlacklist{}
	_ Blacklist = (*PatternBlacklist)(nil)
)
