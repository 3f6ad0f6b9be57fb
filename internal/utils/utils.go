package utils

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"path"
	"sort"
	"strings"

	"golang.org/x/net/idna"
)

var (
	ErrEmptyURL       = errors.New("empty url")
	ErrMissingHost    = errors.New("missing host")
	ErrUnsupportedURL = errors.New("unsupported url scheme")
)

// CanonicalizeOptions controls optional canonicalization policies.
type CanonicalizeOptions struct {
	DropTrackingParams bool   // remove common tracking params (utm_*, gclid, fbclid, ...)
	StripTrailingSlash bool   // treat /a and /a/ the same (root "/" is kept)
	DefaultScheme      string // assumed for schemeless input; empty means the scheme is required
}

// DedupeOptions is the canonical form the crawl source uses to recognise
// pages and links it has already seen.
var DedupeOptions = CanonicalizeOptions{StripTrailingSlash: true}

var trackingParams = map[string]struct{}{
	"utm_source": {}, "utm_medium": {}, "utm_campaign": {}, "utm_term": {}, "utm_content": {},
	"gclid": {}, "fbclid": {}, "mc_cid": {}, "mc_eid": {},
}

// Canonicalize returns a deterministic form of raw: lower-cased scheme and
// punycoded host, default port and credentials and fragment dropped, cleaned
// path, sorted query.
func Canonicalize(raw string, opts CanonicalizeOptions) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", &url.Error{Op: "canonicalize", URL: raw, Err: ErrEmptyURL}
	}
	if opts.DefaultScheme != "" && !strings.Contains(raw, "://") {
		raw = opts.DefaultScheme + "://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", &url.Error{Op: "canonicalize", URL: raw, Err: ErrMissingHost}
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = canonicalHost(u.Scheme, u.Hostname(), u.Port())
	u.User = nil
	u.Fragment = ""
	u.Path = canonicalPath(u.Path, opts.StripTrailingSlash)
	u.RawPath = ""
	u.RawQuery = canonicalQuery(u.Query(), opts.DropTrackingParams)

	return u.String(), nil
}

func canonicalHost(scheme, host, port string) string {
	host = strings.ToLower(host)
	if puny, err := idna.Lookup.ToASCII(host); err == nil {
		host = puny
	}
	if port == "" || (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		if strings.Contains(host, ":") {
			return "[" + host + "]"
		}
		return host
	}
	return net.JoinHostPort(host, port)
}

func canonicalPath(p string, stripSlash bool) string {
	if p == "" {
		return "/"
	}
	trailing := strings.HasSuffix(p, "/")
	clean := path.Clean(p)
	if clean == "." {
		clean = "/"
	}
	if trailing && !stripSlash && clean != "/" {
		clean += "/"
	}
	return clean
}

func canonicalQuery(q url.Values, dropTracking bool) string {
	keys := make([]string, 0, len(q))
	for k := range q {
		if dropTracking {
			if _, ok := trackingParams[strings.ToLower(k)]; ok {
				continue
			}
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		values := append([]string(nil), q[k]...)
		sort.Strings(values)
		for _, v := range values {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

// ValidateScanURL accepts only absolute http(s) URLs with a host.
func ValidateScanURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return ErrEmptyURL
	}
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", raw, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return fmt.Errorf("invalid url %q: %w", raw, ErrUnsupportedURL)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("invalid url %q: %w", raw, ErrMissingHost)
	}
	return nil
}

// DedupeURLs trims entries and keeps the first occurrence of every value.
// Values are compared verbatim after trimming; URLs that differ only in
// form (trailing slash, query order) are distinct inputs. Empty entries are
// all kept so the scanner can record them.
func DedupeURLs(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, raw := range urls {
		raw = strings.TrimSpace(raw)
		if raw != "" {
			if _, dup := seen[raw]; dup {
				continue
			}
			seen[raw] = struct{}{}
		}
		out = append(out, raw)
	}
	return out
}
