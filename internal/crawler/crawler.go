// Package crawler runs one level-synchronized breadth-first crawl of a
// Site: fetch, extract, categorize, change-track, and persist each
// in-scope page, honoring per-host politeness (rate limit + robots.txt)
// and the site's depth/page/concurrency bounds.
package crawler

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/llmstxt-forge/forge/internal/categorizer"
	"github.com/llmstxt-forge/forge/internal/changetracker"
	"github.com/llmstxt-forge/forge/internal/crawler/ratelimit"
	"github.com/llmstxt-forge/forge/internal/domain"
	"github.com/llmstxt-forge/forge/internal/extractor"
	"github.com/llmstxt-forge/forge/internal/fetcher"
	"github.com/llmstxt-forge/forge/internal/frontier"
	"github.com/llmstxt-forge/forge/internal/metadata"
	"github.com/llmstxt-forge/forge/internal/robots"
	"github.com/llmstxt-forge/forge/internal/robots/cache"
	"github.com/llmstxt-forge/forge/pkg/retry"
	"github.com/llmstxt-forge/forge/pkg/timeutil"
	"github.com/llmstxt-forge/forge/pkg/urlutil"
)

const defaultConcurrency = 10

// defaultFetchTimeout bounds a single page fetch (including retries),
// independent of the overall Run's soft timeout, so one unresponsive host
// never stalls the whole level.
const defaultFetchTimeout = 20 * time.Second

// PageSink persists one extracted, categorized, change-tracked page.
type PageSink interface {
	UpsertPage(ctx context.Context, page domain.Page) (domain.Page, error)
}

// CounterSink receives a running progress snapshot after every page
// completes or is skipped, independent of the job's lifecycle status.
type CounterSink interface {
	UpdateCrawlJobCounters(ctx context.Context, id uuid.UUID, counters domain.CrawlJobCounters) error
}

// Result is what one Run produces: the final counters, plus every URL this
// run actually persisted a page for. internal/worker diffs SeenURLs against
// the site's prior successful job to classify removed pages, since that
// comparison spans two jobs and doesn't belong inside a single Run.
type Result struct {
	Counters domain.CrawlJobCounters
	SeenURLs []string
}

// Crawler wires the pipeline stages (fetch, extract, categorize,
// change-track) together into a bounded-concurrency BFS.
type Crawler struct {
	fetch        fetcher.Fetcher
	metadataEx   extractor.MetadataExtractor
	pages        PageSink
	counters     CounterSink
	tracker      changetracker.Tracker
	limiter      *ratelimit.HostLimiter
	robotsCache  cache.Cache
	metadataSink metadata.MetadataSink
	sitemapHTTP  *http.Client
	retryParam   retry.RetryParam
}

// New builds a Crawler. robotsCache is shared across crawl runs — robots.txt
// rules for a host don't need per-run isolation the way the visited-set
// does — but Run still constructs a fresh robots.CachedRobot per call so no
// crawl shares in-flight fetch state with another.
func New(
	fetch fetcher.Fetcher,
	metadataEx extractor.MetadataExtractor,
	pages PageSink,
	counters CounterSink,
	tracker changetracker.Tracker,
	limiter *ratelimit.HostLimiter,
	robotsCache cache.Cache,
	metadataSink metadata.MetadataSink,
) *Crawler {
	return &Crawler{
		fetch:        fetch,
		metadataEx:   metadataEx,
		pages:        pages,
		counters:     counters,
		tracker:      tracker,
		limiter:      limiter,
		robotsCache:  robotsCache,
		metadataSink: metadataSink,
		sitemapHTTP:  newSitemapHTTPClient(),
		retryParam: retry.NewRetryParam(
			time.Second,
			250*time.Millisecond,
			time.Now().UnixNano(),
			3,
			timeutil.NewBackoffParam(time.Second, 2.0, 4*time.Second),
		),
	}
}

// Run crawls site starting at its RootURL and returns once every reachable,
// in-scope page within MaxDepth/MaxPages has been visited, ctx is
// cancelled, or a fatal setup error occurs. events may be nil; sends on it
// are non-blocking so a slow or absent consumer never stalls the crawl.
func (c *Crawler) Run(ctx context.Context, site domain.Site, jobID uuid.UUID, events chan<- Event) (Result, error) {
	robotUA := site.UserAgent
	if site.RobotsUserAgent != "" {
		robotUA = site.RobotsUserAgent
	}
	robot := robots.NewCachedRobot(c.metadataSink, c.robotsCache)
	robot.Init(robotUA)

	sitemapPresence, _ := fetchSitemap(ctx, c.sitemapHTTP, site.RootURL, site.UserAgent)
	if sitemapPresence == nil {
		sitemapPresence = map[string]struct{}{}
	}

	concurrency := site.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	visited := frontier.NewSet[string]()
	seed := urlutil.Normalize(site.RootURL)
	visited.Add(seed.String())

	var mu sync.Mutex
	counters := domain.CrawlJobCounters{PagesFound: 1}
	var seenURLs []string
	// reserved counts tokens already handed to a goroutine this run, whether
	// or not that goroutine has finished. Checking it (instead of the
	// completed counters) before spawning closes the gap where up to
	// concurrency-1 in-flight fetches haven't yet incremented
	// PagesCrawled/PagesSkipped: reserving the slot synchronously, at spawn
	// time, bounds the number of fetches ever started to MaxPages exactly.
	reserved := 0

	currentLevel := []frontier.CrawlToken{frontier.NewCrawlToken(seed, 0)}

	for len(currentLevel) > 0 {
		if ctx.Err() != nil {
			return Result{Counters: counters, SeenURLs: seenURLs}, ctx.Err()
		}
		mu.Lock()
		budgetSpent := site.MaxPages > 0 && reserved >= site.MaxPages
		mu.Unlock()
		if budgetSpent {
			break
		}

		var nextLevel []frontier.CrawlToken
		sem := make(chan struct{}, concurrency)
		var wg sync.WaitGroup

		for _, token := range currentLevel {
			mu.Lock()
			budgetSpent := site.MaxPages > 0 && reserved >= site.MaxPages
			if !budgetSpent {
				reserved++
			}
			mu.Unlock()
			if budgetSpent {
				break
			}

			token := token
			sem <- struct{}{}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() { <-sem }()

				links, page, ok := c.visitToken(ctx, site, jobID, &robot, token, sitemapPresence)

				mu.Lock()
				defer mu.Unlock()

				if !ok {
					counters.PagesSkipped++
				} else {
					counters.PagesCrawled++
					if page.Change != domain.ChangeUnchanged {
						counters.PagesChanged++
					}
					seenURLs = append(seenURLs, page.URL)

					if token.Depth() < site.MaxDepth {
						for _, link := range links {
							key := link.String()
							if visited.Contains(key) {
								continue
							}
							if site.MaxPages > 0 && visited.Size() >= site.MaxPages {
								continue
							}
							visited.Add(key)
							counters.PagesFound++
							nextLevel = append(nextLevel, frontier.NewCrawlToken(link, token.Depth()+1))
						}
					}
				}

				if err := c.counters.UpdateCrawlJobCounters(ctx, jobID, counters); err != nil {
					c.metadataSink.RecordError(time.Now(), "crawler", "Run", metadata.CauseStorageFailure, err.Error(), nil)
				}
				if ok {
					sendEvent(events, Event{Type: EventPageCrawled, Page: page, Counters: counters, EmittedAt: time.Now()})
				} else {
					sendEvent(events, Event{Type: EventProgress, Counters: counters, EmittedAt: time.Now()})
				}
			}()
		}

		wg.Wait()
		currentLevel = nextLevel
	}

	sendEvent(events, Event{Type: EventCompleted, Counters: counters, EmittedAt: time.Now()})
	return Result{Counters: counters, SeenURLs: seenURLs}, nil
}

// visitToken runs the single-page pipeline: rate limit, robots check,
// fetch-with-retry, extract, categorize, change-track, persist, discover
// links. ok is false whenever the page was skipped rather than crawled —
// robots denial, fetch failure, extraction failure, or persistence failure
// — none of which are fatal to the overall Run.
func (c *Crawler) visitToken(
	ctx context.Context,
	site domain.Site,
	jobID uuid.UUID,
	robot robots.Robot,
	token frontier.CrawlToken,
	sitemapPresence map[string]struct{},
) ([]url.URL, domain.Page, bool) {
	target := token.URL()

	if err := c.limiter.Wait(ctx, target.Host); err != nil {
		return nil, domain.Page{}, false
	}

	decision, robotsErr := robot.Decide(ctx, target)
	if robotsErr != nil {
		c.recordSkip(target, metadata.CauseNetworkFailure, robotsErr.Error())
		return nil, domain.Page{}, false
	}
	if !decision.Allowed {
		c.recordSkip(target, metadata.CausePolicyDisallow, "disallowed by robots.txt")
		return nil, domain.Page{}, false
	}
	if decision.CrawlDelay != nil {
		c.limiter.SetCrawlDelay(target.Host, *decision.CrawlDelay)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, defaultFetchTimeout)
	defer cancel()

	fetchParam := fetcher.NewFetchParam(target, site.UserAgent)
	result, fetchErr := c.fetch.Fetch(fetchCtx, token.Depth(), fetchParam, c.retryParam)
	if fetchErr != nil {
		c.recordSkip(target, metadata.CauseNetworkFailure, fetchErr.Error())
		return nil, domain.Page{}, false
	}

	meta, extractErr := c.metadataEx.Extract(target, result.Body())
	if extractErr != nil {
		c.recordSkip(target, metadata.CauseContentInvalid, extractErr.Error())
		return nil, domain.Page{}, false
	}

	normalized := urlutil.Normalize(target)
	_, onSitemap := sitemapPresence[normalized.String()]

	catResult := categorizer.Categorize(categorizer.Input{
		URL:             target,
		Depth:           token.Depth(),
		IsSeed:          token.Depth() == 0,
		SitemapPresence: onSitemap,
	})

	tuple := changetracker.Tuple{Title: meta.Title, Description: meta.Description, Headings: meta.Headings}
	contentHash, changeKind, previous, hadPrevious, trackErr := c.tracker.Classify(ctx, site.ID, normalized.String(), tuple)
	if trackErr != nil {
		c.recordSkip(target, metadata.CauseStorageFailure, trackErr.Error())
		return nil, domain.Page{}, false
	}

	fetchedAt := result.FetchedAt()
	firstSeenAt := fetchedAt
	if hadPrevious {
		firstSeenAt = previous.FirstSeenAt
	}

	page := domain.Page{
		ID:              uuid.New(),
		CrawlJobID:      jobID,
		SiteID:          site.ID,
		URL:             normalized.String(),
		CanonicalURL:    meta.Canonical,
		Title:           meta.Title,
		Description:     meta.Description,
		Headings:        meta.Headings,
		Content:         meta.Content,
		Category:        string(catResult.Category),
		RelevanceScore:  catResult.Relevance,
		ContentHash:     contentHash,
		Change:          changeKind,
		HTTPStatus:      result.Code(),
		SitemapPresence: onSitemap,
		Depth:           token.Depth(),
		FirstSeenAt:     firstSeenAt,
		LastSeenAt:      fetchedAt,
		FetchedAt:       fetchedAt,
	}

	saved, err := c.pages.UpsertPage(ctx, page)
	if err != nil {
		c.recordSkip(target, metadata.CauseStorageFailure, err.Error())
		return nil, domain.Page{}, false
	}

	var links []url.URL
	if token.Depth() < site.MaxDepth {
		discovered, linkErr := extractLinks(target, result.Body())
		if linkErr == nil {
			for _, l := range discovered {
				if inScope(l, site.RootURL.Host, site.AllowedPathPrefix) {
					links = append(links, l)
				}
			}
		}
	}

	return links, saved, true
}

func (c *Crawler) recordSkip(target url.URL, cause metadata.ErrorCause, msg string) {
	c.metadataSink.RecordError(time.Now(), "crawler", "visitToken", cause, msg,
		[]metadata.Attribute{metadata.NewAttr(metadata.AttrURL, target.String())})
}

func sendEvent(events chan<- Event, ev Event) {
	if events == nil {
		return
	}
	select {
	case events <- ev:
	default:
	}
}
