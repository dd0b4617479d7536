package urlutil

import (
	"net"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// trackingParamPrefixes lists query parameter prefixes that carry no
// addressing information and must not affect page identity.
var trackingParamPrefixes = []string{"utm_"}

// trackingParamNames lists exact tracking query parameter names to drop.
var trackingParamNames = map[string]struct{}{
	"gclid": {},
	"fbclid": {},
	"msclkid": {},
	"ref": {},
}

// Normalize produces the canonical form of a URL used for dedup keys and
// idempotency checks: lowercase scheme/host, cleaned path, no fragment,
// default ports stripped, tracking query parameters removed, and the
// remaining query keys sorted so that equivalent URLs with differently
// ordered query strings collapse to the same value.
//
// Unlike Canonicalize, Normalize keeps non-tracking query parameters because
// they can change which page is served.
func Normalize(sourceUrl url.URL) url.URL {
	normalized := Canonicalize(sourceUrl)
	normalized.RawQuery = sourceUrl.RawQuery

	values := normalized.Query()
	for key := range values {
		lowerKey := strings.ToLower(key)
		if _, tracked := trackingParamNames[lowerKey]; tracked {
			values.Del(key)
			continue
		}
		for _, prefix := range trackingParamPrefixes {
			if strings.HasPrefix(lowerKey, prefix) {
				values.Del(key)
				break
			}
		}
	}

	if len(values) == 0 {
		normalized.RawQuery = ""
		return normalized
	}

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, key := range keys {
		for j, v := range values[key] {
			if i > 0 || j > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(key))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	normalized.RawQuery = b.String()
	return normalized
}

// SameRegistrableDomain reports whether hostA and hostB share the same
// registrable domain (eTLD+1), e.g. "docs.example.com" and "www.example.com"
// both resolve to "example.com". Hosts that fail public-suffix lookup (IP
// literals, single-label hosts like "localhost") fall back to an exact,
// case-insensitive host comparison so local/dev crawls still scope
// correctly.
func SameRegistrableDomain(hostA, hostB string) bool {
	a, errA := publicsuffix.EffectiveTLDPlusOne(stripPort(lowerASCII(hostA)))
	b, errB := publicsuffix.EffectiveTLDPlusOne(stripPort(lowerASCII(hostB)))
	if errA != nil || errB != nil {
		return lowerASCII(stripPort(hostA)) == lowerASCII(stripPort(hostB))
	}
	return a == b
}

func stripPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

// Resolve resolves a possibly-relative URL reference against the given
// scheme and host, producing an absolute URL.
func Resolve(ref url.URL, scheme string, host string) url.URL {
	if ref.Scheme != "" && ref.Host != "" {
		return ref
	}
	base := url.URL{Scheme: scheme, Host: host, Path: "/"}
	resolved := base.ResolveReference(&ref)
	return *resolved
}

// FilterByHost returns the subset of urls whose host matches host exactly
// (case-insensitively).
func FilterByHost(host string, urls []url.URL) []url.URL {
	wantHost := lowerASCII(host)
	filtered := make([]url.URL, 0, len(urls))
	for _, u := range urls {
		if lowerASCII(u.Host) == wantHost {
			filtered = append(filtered, u)
		}
	}
	return filtered
}

// Canonicalize applies a deterministic normalization to a URL, producing a canonical form.
// It maps equivalent URL spellings to a single canonical representation.
//
// The normalization follows these rules:
//   - Scheme and host are lowercased
//   - Path is cleaned (trailing slashes removed, except for root "/")
//   - Fragments are removed
//   - Query parameters are removed
//   - Default ports are omitted (e.g., :80 for http, :443 for https)
//
// Properties:
//   - Pure: no state, no memory
//   - Deterministic: same input always produces same output
//   - Idempotent: Canonicalize(Canonicalize(url)) == Canonicalize(url)
//   - Context-free: does not depend on crawl history
func Canonicalize(sourceUrl url.URL) url.URL {
	// Create a copy to avoid mutating the original
	canonical := sourceUrl

	// Lowercase scheme and host
	canonical.Scheme = lowerASCII(canonical.Scheme)
	canonical.Host = lowerASCII(canonical.Host)

	// Remove default port if present
	if host, port := canonical.Hostname(), canonical.Port(); port != "" {
		if (canonical.Scheme == "http" && port == "80") ||
			(canonical.Scheme == "https" && port == "443") {
			canonical.Host = host
		}
	}

	// Clean the path: remove trailing slashes (except root)
	if len(canonical.Path) > 1 {
		canonical.Path = stripTrailingSlash(canonical.Path)
	}

	// Remove fragment (anchor)
	canonical.Fragment = ""
	canonical.RawFragment = ""

	// Remove query parameters
	canonical.RawQuery = ""
	canonical.ForceQuery = false

	return canonical
}

// lowerASCII converts ASCII characters to lowercase without allocating.
// This is faster than strings.ToLower for ASCII-only strings.
func lowerASCII(s string) string {
	var needsLower bool
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			needsLower = true
			break
		}
	}
	if !needsLower {
		return s
	}
	b := make([]byte, len(s))
	copy(b, s)
	for i := 0; i < len(b); i++ {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}

// stripTrailingSlash removes trailing slashes from a path.
func stripTrailingSlash(path string) string {
	for len(path) > 1 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}
	return path
}
