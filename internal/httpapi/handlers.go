package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/llmstxt-forge/forge/internal/domain"
	"github.com/llmstxt-forge/forge/internal/metadata"
	"github.com/llmstxt-forge/forge/internal/queue"
	"github.com/llmstxt-forge/forge/internal/store"
)

// scheduleNamespace derives a deterministic per-site Schedule.ID so a PUT
// against the same site always upserts the same row, even though
// store.ScheduleStore has no "find by site" lookup — the REST surface only
// ever exposes one schedule per site.
var scheduleNamespace = uuid.MustParse("6f5d2e1a-6b1a-4b0a-9f0a-7a3f6c2d9e10")

func scheduleIDFor(siteID uuid.UUID) uuid.UUID {
	return uuid.NewSHA1(scheduleNamespace, siteID[:])
}

func parseUUID(w http.ResponseWriter, raw, field string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid "+field)
		return uuid.UUID{}, false
	}
	return id, true
}

func (srv *Server) handleCreateSite(w http.ResponseWriter, r *http.Request) {
	var req createSiteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if req.RootURL == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "root_url is required")
		return
	}
	root, err := url.Parse(req.RootURL)
	if err != nil || root.Host == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "root_url must be an absolute URL")
		return
	}

	site := domain.Site{
		ID:                uuid.New(),
		RootURL:           *root,
		AllowedPathPrefix: req.AllowedPathPrefix,
		MaxDepth:          orDefault(req.MaxDepth, srv.cfg.MaxCrawlDepth()),
		MaxPages:          orDefault(req.MaxPages, srv.cfg.MaxCrawlPages()),
		Concurrency:       orDefault(req.Concurrency, srv.cfg.CrawlConcurrency()),
		UserAgent:         req.UserAgent,
		RobotsUserAgent:   req.RobotsUserAgent,
	}
	created, err := srv.store.CreateSite(r.Context(), site)
	if err != nil {
		srv.recordError("handleCreateSite", metadata.CauseStorageFailure, err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to create site")
		return
	}

	job, err := srv.store.CreateCrawlJob(r.Context(), domain.CrawlJob{
		ID:       uuid.New(),
		SiteID:   created.ID,
		Status:   domain.CrawlJobPending,
		MaxDepth: created.MaxDepth,
		MaxPages: created.MaxPages,
	})
	if err != nil {
		srv.recordError("handleCreateSite", metadata.CauseStorageFailure, err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to create initial crawl job")
		return
	}
	if _, _, err := srv.queue.Enqueue(r.Context(), queue.EnqueueParam{
		CrawlJobID:     job.ID,
		URL:            created.RootURL.String(),
		IdempotencyKey: "initial-" + created.ID.String(),
	}); err != nil {
		srv.recordError("handleCreateSite", metadata.CauseStorageFailure, err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to enqueue initial crawl")
		return
	}

	writeJSON(w, http.StatusCreated, struct {
		Site siteResponse     `json:"site"`
		Job  crawlJobResponse `json:"crawl_job"`
	}{toSiteResponse(created), toCrawlJobResponse(job)})
}

func (srv *Server) handleEnqueueCrawl(w http.ResponseWriter, r *http.Request) {
	siteID, ok := parseUUID(w, r.PathValue("id"), "site id")
	if !ok {
		return
	}
	site, err := srv.store.GetSite(r.Context(), siteID)
	if err != nil {
		writeSiteLookupError(w, err)
		return
	}

	var req enqueueCrawlRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
			return
		}
	}
	maxDepth := site.MaxDepth
	if req.MaxDepth != nil {
		maxDepth = *req.MaxDepth
	}
	maxPages := site.MaxPages
	if req.MaxPages != nil {
		maxPages = *req.MaxPages
	}

	job, err := srv.store.CreateCrawlJob(r.Context(), domain.CrawlJob{
		ID:       uuid.New(),
		SiteID:   site.ID,
		Status:   domain.CrawlJobPending,
		MaxDepth: maxDepth,
		MaxPages: maxPages,
	})
	if err != nil {
		srv.recordError("handleEnqueueCrawl", metadata.CauseStorageFailure, err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to create crawl job")
		return
	}
	if _, _, err := srv.queue.Enqueue(r.Context(), queue.EnqueueParam{
		CrawlJobID:     job.ID,
		URL:            site.RootURL.String(),
		IdempotencyKey: "manual-" + job.ID.String(),
	}); err != nil {
		srv.recordError("handleEnqueueCrawl", metadata.CauseStorageFailure, err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to enqueue crawl")
		return
	}

	writeJSON(w, http.StatusAccepted, toCrawlJobResponse(job))
}

func (srv *Server) handleGetCrawlJob(w http.ResponseWriter, r *http.Request) {
	job, ok := srv.lookupJobForSite(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toCrawlJobResponse(job))
}

func (srv *Server) handleGetLLMsTxt(w http.ResponseWriter, r *http.Request) {
	siteID, ok := parseUUID(w, r.PathValue("id"), "site id")
	if !ok {
		return
	}
	file, err := srv.store.LatestGeneratedFile(r.Context(), siteID, "llms.txt")
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "no generated document for this site yet")
			return
		}
		srv.recordError("handleGetLLMsTxt", metadata.CauseStorageFailure, err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to load generated document")
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("ETag", `"`+file.ContentSHA+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(file.Content)
}

func (srv *Server) handleGetLLMsFullTxt(w http.ResponseWriter, r *http.Request) {
	siteID, ok := parseUUID(w, r.PathValue("id"), "site id")
	if !ok {
		return
	}
	file, err := srv.store.LatestGeneratedFile(r.Context(), siteID, "llms-full.txt")
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "no generated document for this site yet")
			return
		}
		srv.recordError("handleGetLLMsFullTxt", metadata.CauseStorageFailure, err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to load generated document")
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("ETag", `"`+file.ContentSHA+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(file.Content)
}

func (srv *Server) handlePutSchedule(w http.ResponseWriter, r *http.Request) {
	siteID, ok := parseUUID(w, r.PathValue("id"), "site id")
	if !ok {
		return
	}
	if _, err := srv.store.GetSite(r.Context(), siteID); err != nil {
		writeSiteLookupError(w, err)
		return
	}

	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(req.CronExpr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid cron expression: "+err.Error())
		return
	}

	timezone := req.Timezone
	if timezone == "" {
		timezone = "UTC"
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid timezone: "+err.Error())
		return
	}

	saved, err := srv.store.UpsertSchedule(r.Context(), domain.Schedule{
		ID:        scheduleIDFor(siteID),
		SiteID:    siteID,
		CronExpr:  req.CronExpr,
		Timezone:  timezone,
		Enabled:   req.Enabled,
		NextRunAt: schedule.Next(time.Now().In(loc)),
	})
	if err != nil {
		srv.recordError("handlePutSchedule", metadata.CauseStorageFailure, err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to save schedule")
		return
	}
	writeJSON(w, http.StatusOK, toScheduleResponse(saved))
}

func (srv *Server) lookupJobForSite(w http.ResponseWriter, r *http.Request) (domain.CrawlJob, bool) {
	siteID, ok := parseUUID(w, r.PathValue("id"), "site id")
	if !ok {
		return domain.CrawlJob{}, false
	}
	jobID, ok := parseUUID(w, r.PathValue("job_id"), "job id")
	if !ok {
		return domain.CrawlJob{}, false
	}
	job, err := srv.store.GetCrawlJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "crawl job not found")
			return domain.CrawlJob{}, false
		}
		srv.recordError("lookupJobForSite", metadata.CauseStorageFailure, err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to load crawl job")
		return domain.CrawlJob{}, false
	}
	if job.SiteID != siteID {
		writeError(w, http.StatusNotFound, "not_found", "crawl job not found for this site")
		return domain.CrawlJob{}, false
	}
	return job, true
}

func writeSiteLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "site not found")
		return
	}
	writeError(w, http.StatusInternalServerError, "internal", "failed to load site")
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
