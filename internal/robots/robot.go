package robots

import (
	"context"
	"net/url"
)

/*
Responsibilities

- Fetch robots.txt per host
- Cache rules for crawl duration
- Enforce allow/disallow rules before enqueue

Robots checks occur before a URL enters the frontier.
*/

// Robot is the port the crawler uses to obtain admission decisions.
// CachedRobot is the only production implementation.
type Robot interface {
	Init(userAgent string)
	Decide(ctx context.Context, u url.URL) (Decision, *RobotsError)
}
