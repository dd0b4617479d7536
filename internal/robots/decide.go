package robots

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/llmstxt-forge/forge/internal/metadata"
	"github.com/llmstxt-forge/forge/internal/robots/cache"
)

// CachedRobot is the production Robot implementation. It fetches robots.txt
// once per host for the lifetime of the cache, maps the response to a
// ruleSet, and evaluates allow/disallow precedence per request.
//
// The cache is keyed per-host so concurrent workers crawling the same site
// share one robots.txt fetch instead of refetching per task.
type CachedRobot struct {
	mu        sync.Mutex
	fetcher   *RobotsFetcher
	userAgent string
	rules     map[string]ruleSet
}

// NewCachedRobot creates a CachedRobot backed by the given cache adapter.
// metadataSink receives observational fetch/decision events only; it must
// never influence the decision returned by Decide.
func NewCachedRobot(metadataSink metadata.MetadataSink, robotsCache cache.Cache) CachedRobot {
	return CachedRobot{
		fetcher: NewRobotsFetcher(metadataSink, "", robotsCache),
		rules:   make(map[string]ruleSet),
	}
}

// Init sets the user agent this robot evaluates rules against. It must be
// called before the first Decide.
func (c *CachedRobot) Init(userAgent string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userAgent = userAgent
	c.fetcher.userAgent = userAgent
}

// Decide fetches (or reuses the cached) robots.txt for u.Host and returns
// whether u may be crawled by the configured user agent.
func (c *CachedRobot) Decide(ctx context.Context, u url.URL) (Decision, *RobotsError) {
	rs, err := c.rulesFor(ctx, u)
	if err != nil {
		return Decision{}, err
	}

	if !rs.hasGroups {
		return Decision{Url: u, Allowed: true, Reason: EmptyRuleSet}, nil
	}
	if !rs.matchedGroup {
		return Decision{Url: u, Allowed: true, Reason: UserAgentNotMatched}, nil
	}

	allowed, reason := evaluatePrecedence(rs, u.Path)
	return Decision{
		Url:        u,
		Allowed:    allowed,
		Reason:     reason,
		CrawlDelay: rs.CrawlDelay(),
	}, nil
}

func (c *CachedRobot) rulesFor(ctx context.Context, u url.URL) (ruleSet, *RobotsError) {
	c.mu.Lock()
	if rs, ok := c.rules[u.Host]; ok {
		c.mu.Unlock()
		return rs, nil
	}
	userAgent := c.userAgent
	c.mu.Unlock()

	result, err := c.fetcher.Fetch(ctx, schemeOrDefault(u.Scheme), u.Host)
	if err != nil {
		return ruleSet{}, err
	}

	rs := MapResponseToRuleSet(result.Response, userAgent, time.Now())

	c.mu.Lock()
	c.rules[u.Host] = rs
	c.mu.Unlock()

	return rs, nil
}

func schemeOrDefault(scheme string) string {
	if scheme == "" {
		return "https"
	}
	return scheme
}

// evaluatePrecedence applies the standard robots.txt precedence rule: the
// rule with the longest matching path prefix wins; ties favor Allow.
func evaluatePrecedence(rs ruleSet, path string) (bool, DecisionReason) {
	if path == "" {
		path = "/"
	}

	longestAllow := -1
	for _, rule := range rs.AllowRules() {
		if strings.HasPrefix(path, rule.Prefix()) && len(rule.Prefix()) > longestAllow {
			longestAllow = len(rule.Prefix())
		}
	}

	longestDisallow := -1
	for _, rule := range rs.DisallowRules() {
		if strings.HasPrefix(path, rule.Prefix()) && len(rule.Prefix()) > longestDisallow {
			longestDisallow = len(rule.Prefix())
		}
	}

	if longestDisallow < 0 {
		return true, NoMatchingRules
	}
	if longestAllow >= longestDisallow {
		return true, AllowedByRobots
	}
	return false, DisallowedByRobots
}
