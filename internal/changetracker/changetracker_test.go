package changetracker_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/llmstxt-forge/forge/internal/changetracker"
	"github.com/llmstxt-forge/forge/internal/domain"
)

type fakeLookup struct {
	page  domain.Page
	found bool
	err   error
}

func (f fakeLookup) PreviousPage(ctx context.Context, siteID uuid.UUID, url string) (domain.Page, bool, error) {
	return f.page, f.found, f.err
}

func TestTuple_Hash_Deterministic(t *testing.T) {
	tuple := changetracker.Tuple{
		Title:       "Getting Started",
		Description: "An intro page.",
		Headings:    []string{"Install", "Configure"},
	}

	h1, err := tuple.Hash()
	require.NoError(t, err)
	h2, err := tuple.Hash()
	require.NoError(t, err)
	require.Equal(t, h1, h2)
	require.Len(t, h1, 64) // hex-encoded SHA-256
}

func TestTuple_Hash_ChangesWithContent(t *testing.T) {
	base := changetracker.Tuple{Title: "A", Description: "B", Headings: []string{"C"}}
	changed := changetracker.Tuple{Title: "A", Description: "B", Headings: []string{"D"}}

	baseHash, err := base.Hash()
	require.NoError(t, err)
	changedHash, err := changed.Hash()
	require.NoError(t, err)
	require.NotEqual(t, baseHash, changedHash)
}

func TestTuple_Hash_IgnoresSurroundingWhitespace(t *testing.T) {
	padded := changetracker.Tuple{Title: "  A  ", Description: " B ", Headings: []string{"C"}}
	trimmed := changetracker.Tuple{Title: "A", Description: "B", Headings: []string{"C"}}

	paddedHash, err := padded.Hash()
	require.NoError(t, err)
	trimmedHash, err := trimmed.Hash()
	require.NoError(t, err)
	require.Equal(t, trimmedHash, paddedHash)
}

func TestClassify_NoPriorPage_IsAdded(t *testing.T) {
	tracker := changetracker.New(fakeLookup{found: false})
	_, kind, _, found, err := tracker.Classify(context.Background(), uuid.New(), "https://example.com/docs", changetracker.Tuple{Title: "T"})
	require.NoError(t, err)
	require.Equal(t, domain.ChangeAdded, kind)
	require.False(t, found)
}

func TestClassify_SameHash_IsUnchanged(t *testing.T) {
	tuple := changetracker.Tuple{Title: "T", Description: "D", Headings: []string{"H1"}}
	hash, err := tuple.Hash()
	require.NoError(t, err)

	tracker := changetracker.New(fakeLookup{found: true, page: domain.Page{ContentHash: hash}})
	gotHash, kind, _, found, err := tracker.Classify(context.Background(), uuid.New(), "https://example.com/docs", tuple)
	require.NoError(t, err)
	require.Equal(t, domain.ChangeUnchanged, kind)
	require.Equal(t, hash, gotHash)
	require.True(t, found)
}

func TestClassify_DifferentHash_IsUpdated(t *testing.T) {
	tracker := changetracker.New(fakeLookup{found: true, page: domain.Page{ContentHash: "stale-hash"}})
	_, kind, _, found, err := tracker.Classify(context.Background(), uuid.New(), "https://example.com/docs", changetracker.Tuple{Title: "New Title"})
	require.NoError(t, err)
	require.Equal(t, domain.ChangeUpdated, kind)
	require.True(t, found)
}

func TestClassify_PriorPage_ReturnsItForFirstSeenCarryForward(t *testing.T) {
	prior := domain.Page{ContentHash: "stale-hash", FirstSeenAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	tracker := changetracker.New(fakeLookup{found: true, page: prior})
	_, _, got, found, err := tracker.Classify(context.Background(), uuid.New(), "https://example.com/docs", changetracker.Tuple{Title: "New Title"})
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, prior.FirstSeenAt, got.FirstSeenAt)
}

func TestClassifyRemoved(t *testing.T) {
	prior := []string{"https://example.com/a", "https://example.com/b", "https://example.com/c"}
	seen := []string{"https://example.com/a", "https://example.com/c"}

	removed := changetracker.ClassifyRemoved(prior, seen)
	require.Equal(t, []string{"https://example.com/b"}, removed)
}

func TestClassifyRemoved_NothingRemoved(t *testing.T) {
	prior := []string{"https://example.com/a"}
	seen := []string{"https://example.com/a"}

	removed := changetracker.ClassifyRemoved(prior, seen)
	require.Empty(t, removed)
}
