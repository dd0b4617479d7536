// Package changetracker computes a Page's content_hash and classifies it
// against the prior successful crawl of the same Site, the way the teacher's
// internal/normalize canonicalizes before internal/storage hashes and
// writes a markdown artifact.
package changetracker

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/llmstxt-forge/forge/internal/domain"
	"github.com/llmstxt-forge/forge/pkg/hashutil"
)

// PreviousPageLookup is the read side of store.PageStore this package
// depends on, narrowed to the one query it needs.
type PreviousPageLookup interface {
	PreviousPage(ctx context.Context, siteID uuid.UUID, url string) (domain.Page, bool, error)
}

// Tuple is the canonicalized extraction tuple content_hash is computed over:
// (title, description, headings joined by \n) — not the raw HTML, so
// boilerplate drift in markup never changes the hash.
type Tuple struct {
	Title       string
	Description string
	Headings    []string
}

// Hash returns the SHA-256 hex digest of the canonicalized tuple.
func (t Tuple) Hash() (string, error) {
	canonical := strings.TrimSpace(t.Title) + "\n" +
		strings.TrimSpace(t.Description) + "\n" +
		strings.Join(t.Headings, "\n")
	return hashutil.HashBytes([]byte(canonical), hashutil.HashAlgoSHA256)
}

// Tracker classifies pages against a Site's prior successful crawl.
type Tracker struct {
	pages PreviousPageLookup
}

// New builds a Tracker backed by the given previous-page lookup.
func New(pages PreviousPageLookup) Tracker {
	return Tracker{pages: pages}
}

// Classify computes contentHash for tuple and compares it against the most
// recent previously-seen Page at (siteID, url), returning the content hash,
// the spec's added/updated/unchanged classification, and the previous Page
// (zero value, ok=false if this is the first time (siteID, url) is seen) so
// the caller can carry first_seen_at forward across crawls. removed is
// determined separately, at crawl-completion time, by diffing the full set
// of URLs seen this run against the prior crawl (see ClassifyRemoved).
func (t Tracker) Classify(ctx context.Context, siteID uuid.UUID, url string, tuple Tuple) (string, domain.ChangeKind, domain.Page, bool, error) {
	contentHash, err := tuple.Hash()
	if err != nil {
		return "", "", domain.Page{}, false, err
	}

	previous, found, err := t.pages.PreviousPage(ctx, siteID, url)
	if err != nil {
		return "", "", domain.Page{}, false, err
	}
	if !found {
		return contentHash, domain.ChangeAdded, domain.Page{}, false, nil
	}
	if previous.ContentHash == contentHash {
		return contentHash, domain.ChangeUnchanged, previous, true, nil
	}
	return contentHash, domain.ChangeUpdated, previous, true, nil
}

// ClassifyRemoved returns the subset of priorURLs not present in
// seenURLs this run: the URLs to record as domain.ChangeRemoved. Called once after a
// crawl job finishes, with priorURLs drawn from the site's prior successful
// crawl job's pages and seenURLs from the current job's pages.
func ClassifyRemoved(priorURLs, seenURLs []string) []string {
	seen := make(map[string]struct{}, len(seenURLs))
	for _, u := range seenURLs {
		seen[u] = struct{}{}
	}

	var removed []string
	for _, u := range priorURLs {
		if _, ok := seen[u]; !ok {
			removed = append(removed, u)
		}
	}
	return removed
}
