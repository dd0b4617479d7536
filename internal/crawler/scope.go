package crawler

import (
	"net/url"
	"strings"

	"github.com/llmstxt-forge/forge/pkg/urlutil"
)

// binaryExtensions lists path extensions the crawler never fetches: assets
// with no extractable documentation content, per spec.md §4.2.
var binaryExtensions = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".svg": {}, ".webp": {}, ".ico": {},
	".pdf": {}, ".zip": {}, ".tar": {}, ".gz": {}, ".tgz": {},
	".mp4": {}, ".mp3": {}, ".mov": {}, ".webm": {},
	".woff": {}, ".woff2": {}, ".ttf": {}, ".eot": {},
	".css": {}, ".js": {}, ".json": {}, ".xml": {}, ".map": {},
}

// inScope reports whether candidate may be enqueued for this crawl: it must
// be http(s), share the seed's registrable domain, not be a binary asset by
// extension, and match one of the site's allowed path prefixes (an empty
// prefix list allows everything).
func inScope(candidate url.URL, seedHost string, allowedPathPrefixes []string) bool {
	if candidate.Scheme != "http" && candidate.Scheme != "https" {
		return false
	}
	if !urlutil.SameRegistrableDomain(candidate.Host, seedHost) {
		return false
	}
	if hasBinaryExtension(candidate.Path) {
		return false
	}
	return matchesAllowedPrefix(candidate.Path, allowedPathPrefixes)
}

func hasBinaryExtension(path string) bool {
	lower := strings.ToLower(path)
	for ext := range binaryExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func matchesAllowedPrefix(path string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, prefix := range prefixes {
		if prefix == "" || prefix == "/" {
			return true
		}
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
