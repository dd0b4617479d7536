package httpapi

import (
	"time"

	"github.com/llmstxt-forge/forge/internal/domain"
)

type createSiteRequest struct {
	RootURL           string   `json:"root_url"`
	AllowedPathPrefix []string `json:"allowed_path_prefix,omitempty"`
	MaxDepth          int      `json:"max_depth,omitempty"`
	MaxPages          int      `json:"max_pages,omitempty"`
	Concurrency       int      `json:"concurrency,omitempty"`
	UserAgent         string   `json:"user_agent,omitempty"`
	RobotsUserAgent   string   `json:"robots_user_agent,omitempty"`
}

type siteResponse struct {
	ID                string    `json:"id"`
	RootURL           string    `json:"root_url"`
	AllowedPathPrefix []string  `json:"allowed_path_prefix,omitempty"`
	MaxDepth          int       `json:"max_depth"`
	MaxPages          int       `json:"max_pages"`
	Concurrency       int       `json:"concurrency"`
	UserAgent         string    `json:"user_agent,omitempty"`
	RobotsUserAgent   string    `json:"robots_user_agent,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

func toSiteResponse(s domain.Site) siteResponse {
	return siteResponse{
		ID:                s.ID.String(),
		RootURL:           s.RootURL.String(),
		AllowedPathPrefix: s.AllowedPathPrefix,
		MaxDepth:          s.MaxDepth,
		MaxPages:          s.MaxPages,
		Concurrency:       s.Concurrency,
		UserAgent:         s.UserAgent,
		RobotsUserAgent:   s.RobotsUserAgent,
		CreatedAt:         s.CreatedAt,
	}
}

type enqueueCrawlRequest struct {
	MaxDepth *int `json:"max_depth,omitempty"`
	MaxPages *int `json:"max_pages,omitempty"`
}

type crawlJobResponse struct {
	ID           string     `json:"id"`
	SiteID       string     `json:"site_id"`
	Status       string     `json:"status"`
	PagesFound   int        `json:"pages_found"`
	PagesCrawled int        `json:"pages_crawled"`
	PagesChanged int        `json:"pages_changed"`
	PagesSkipped int        `json:"pages_skipped"`
	MaxPages     int        `json:"max_pages"`
	MaxDepth     int        `json:"max_depth"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func toCrawlJobResponse(j domain.CrawlJob) crawlJobResponse {
	return crawlJobResponse{
		ID:           j.ID.String(),
		SiteID:       j.SiteID.String(),
		Status:       string(j.Status),
		PagesFound:   j.PagesFound,
		PagesCrawled: j.PagesCrawled,
		PagesChanged: j.PagesChanged,
		PagesSkipped: j.PagesSkipped,
		MaxPages:     j.MaxPages,
		MaxDepth:     j.MaxDepth,
		StartedAt:    j.StartedAt,
		FinishedAt:   j.FinishedAt,
		ErrorMessage: j.ErrorMessage,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
	}
}

type scheduleRequest struct {
	CronExpr string `json:"cron_expr"`
	Timezone string `json:"timezone"`
	Enabled  bool   `json:"enabled"`
}

type scheduleResponse struct {
	ID        string     `json:"id"`
	SiteID    string     `json:"site_id"`
	CronExpr  string     `json:"cron_expr"`
	Timezone  string     `json:"timezone"`
	Enabled   bool       `json:"enabled"`
	NextRunAt time.Time  `json:"next_run_at"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
}

func toScheduleResponse(s domain.Schedule) scheduleResponse {
	return scheduleResponse{
		ID:        s.ID.String(),
		SiteID:    s.SiteID.String(),
		CronExpr:  s.CronExpr,
		Timezone:  s.Timezone,
		Enabled:   s.Enabled,
		NextRunAt: s.NextRunAt,
		LastRunAt: s.LastRunAt,
	}
}

type streamSnapshot struct {
	Type      string                  `json:"type"`
	Page      *streamPage             `json:"page,omitempty"`
	Counters  *domain.CrawlJobCounters `json:"counters,omitempty"`
	Error     string                  `json:"error,omitempty"`
	EmittedAt time.Time               `json:"emitted_at"`
}

type streamPage struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Title    string `json:"title,omitempty"`
	Category string `json:"category,omitempty"`
	Change   string `json:"change"`
}
