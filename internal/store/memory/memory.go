// Package memory is an in-process store.Store fake used by tests that
// exercise the queue, crawler, worker, and scheduler without a real
// Postgres instance, mirroring the teacher's constructor-injection style
// for testability.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/llmstxt-forge/forge/internal/domain"
	"github.com/llmstxt-forge/forge/internal/store"
)

type Store struct {
	mu sync.Mutex

	sites     map[uuid.UUID]domain.Site
	jobs      map[uuid.UUID]domain.CrawlJob
	tasks     map[uuid.UUID]domain.CrawlTask
	pages     map[uuid.UUID]domain.Page
	files     map[uuid.UUID]domain.GeneratedFile
	schedules map[uuid.UUID]domain.Schedule

	idempotency map[string]uuid.UUID
}

func New() *Store {
	return &Store{
		sites:       make(map[uuid.UUID]domain.Site),
		jobs:        make(map[uuid.UUID]domain.CrawlJob),
		tasks:       make(map[uuid.UUID]domain.CrawlTask),
		pages:       make(map[uuid.UUID]domain.Page),
		files:       make(map[uuid.UUID]domain.GeneratedFile),
		schedules:   make(map[uuid.UUID]domain.Schedule),
		idempotency: make(map[string]uuid.UUID),
	}
}

var _ store.Store = (*Store)(nil)

func (s *Store) CreateSite(ctx context.Context, site domain.Site) (domain.Site, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	site.CreatedAt = time.Now()
	s.sites[site.ID] = site
	return site, nil
}

func (s *Store) GetSite(ctx context.Context, id uuid.UUID) (domain.Site, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	site, ok := s.sites[id]
	if !ok {
		return domain.Site{}, store.ErrNotFound
	}
	return site, nil
}

func (s *Store) CreateCrawlJob(ctx context.Context, job domain.CrawlJob) (domain.CrawlJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job.CreatedAt = time.Now()
	s.jobs[job.ID] = job
	return job, nil
}

func (s *Store) GetCrawlJob(ctx context.Context, id uuid.UUID) (domain.CrawlJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return domain.CrawlJob{}, store.ErrNotFound
	}
	return job, nil
}

func (s *Store) UpdateCrawlJobCounters(ctx context.Context, id uuid.UUID, counters domain.CrawlJobCounters) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	job.PagesFound = counters.PagesFound
	job.PagesCrawled = counters.PagesCrawled
	job.PagesChanged = counters.PagesChanged
	job.PagesSkipped = counters.PagesSkipped
	job.UpdatedAt = time.Now()
	s.jobs[id] = job
	return nil
}

func (s *Store) TransitionCrawlJob(ctx context.Context, id uuid.UUID, status domain.CrawlJobStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	job.Status = status
	job.ErrorMessage = errMsg
	now := time.Now()
	switch status {
	case domain.CrawlJobRunning:
		job.StartedAt = &now
	case domain.CrawlJobCompleted, domain.CrawlJobFailed:
		job.FinishedAt = &now
	}
	job.UpdatedAt = now
	s.jobs[id] = job
	return nil
}

func (s *Store) DeleteCrawlJob(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	return nil
}

func (s *Store) LatestCompletedCrawlJob(ctx context.Context, siteID uuid.UUID, excludeJobID uuid.UUID) (domain.CrawlJob, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best domain.CrawlJob
	found := false
	for _, job := range s.jobs {
		if job.SiteID != siteID || job.ID == excludeJobID || job.Status != domain.CrawlJobCompleted {
			continue
		}
		if job.FinishedAt == nil {
			continue
		}
		if !found || job.FinishedAt.After(*best.FinishedAt) {
			best = job
			found = true
		}
	}
	if !found {
		return domain.CrawlJob{}, false, nil
	}
	return best, true, nil
}

func (s *Store) EnqueueTask(ctx context.Context, task domain.CrawlTask) (domain.CrawlTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.idempotency[task.IdempotencyKey]; exists {
		return domain.CrawlTask{}, store.ErrIdempotencyConflict
	}
	task.Status = domain.TaskPending
	task.Attempts = 0
	now := time.Now()
	task.CreatedAt = now
	task.UpdatedAt = now
	s.tasks[task.ID] = task
	s.idempotency[task.IdempotencyKey] = task.ID
	return task, nil
}

func (s *Store) ClaimTask(ctx context.Context, owner string, leaseFor time.Duration) (domain.CrawlTask, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var candidates []domain.CrawlTask
	now := time.Now()
	for _, task := range s.tasks {
		if task.Status == domain.TaskPending && !task.AvailableAt.After(now) {
			candidates = append(candidates, task)
		}
	}
	if len(candidates) == 0 {
		return domain.CrawlTask{}, false, nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		if !candidates[i].AvailableAt.Equal(candidates[j].AvailableAt) {
			return candidates[i].AvailableAt.Before(candidates[j].AvailableAt)
		}
		return candidates[i].ID.String() < candidates[j].ID.String()
	})

	claimed := candidates[0]
	claimed.Status = domain.TaskClaimed
	claimed.LeaseOwner = owner
	leaseExpiresAt := now.Add(leaseFor)
	claimed.LeaseExpiresAt = &leaseExpiresAt
	claimed.Attempts++
	claimed.UpdatedAt = now
	s.tasks[claimed.ID] = claimed
	return claimed, true, nil
}

func (s *Store) HeartbeatTask(ctx context.Context, id uuid.UUID, owner string, leaseFor time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok || task.LeaseOwner != owner || task.Status != domain.TaskClaimed {
		return store.ErrLeaseLost
	}
	leaseExpiresAt := time.Now().Add(leaseFor)
	task.LeaseExpiresAt = &leaseExpiresAt
	s.tasks[id] = task
	return nil
}

func (s *Store) CompleteTask(ctx context.Context, id uuid.UUID, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok || task.LeaseOwner != owner || task.Status != domain.TaskClaimed {
		return store.ErrLeaseLost
	}
	task.Status = domain.TaskCompleted
	s.tasks[id] = task
	return nil
}

func (s *Store) FailTask(ctx context.Context, id uuid.UUID, owner string, errMsg string, retryAfter time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok || task.LeaseOwner != owner || task.Status != domain.TaskClaimed {
		return store.ErrLeaseLost
	}
	if task.Attempts >= task.MaxAttempts {
		task.Status = domain.TaskFailed
	} else {
		task.Status = domain.TaskPending
	}
	task.AvailableAt = time.Now().Add(retryAfter)
	task.LastError = errMsg
	task.LeaseOwner = ""
	task.LeaseExpiresAt = nil
	s.tasks[id] = task
	return nil
}

func (s *Store) DeadLetterTask(ctx context.Context, id uuid.UUID, owner string, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok || task.LeaseOwner != owner || task.Status != domain.TaskClaimed {
		return store.ErrLeaseLost
	}
	task.Status = domain.TaskFailed
	task.LastError = errMsg
	task.LeaseOwner = ""
	task.LeaseExpiresAt = nil
	task.UpdatedAt = time.Now()
	s.tasks[id] = task
	return nil
}

func (s *Store) RecoverExpiredTasks(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for id, task := range s.tasks {
		if task.Status == domain.TaskClaimed && task.LeaseExpiresAt != nil && task.LeaseExpiresAt.Before(now) {
			task.Status = domain.TaskPending
			task.LeaseOwner = ""
			task.LeaseExpiresAt = nil
			s.tasks[id] = task
			count++
		}
	}
	return count, nil
}

func (s *Store) UpsertPage(ctx context.Context, page domain.Page) (domain.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if page.FetchedAt.IsZero() {
		page.FetchedAt = time.Now()
	}
	s.pages[page.ID] = page
	return page, nil
}

func (s *Store) ListPages(ctx context.Context, crawlJobID uuid.UUID) ([]domain.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pages []domain.Page
	for _, page := range s.pages {
		if page.CrawlJobID == crawlJobID {
			pages = append(pages, page)
		}
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].ID.String() < pages[j].ID.String() })
	return pages, nil
}

func (s *Store) PreviousPage(ctx context.Context, siteID uuid.UUID, url string) (domain.Page, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best domain.Page
	found := false
	for _, page := range s.pages {
		if page.SiteID != siteID || page.URL != url {
			continue
		}
		if !found || page.FetchedAt.After(best.FetchedAt) {
			best = page
			found = true
		}
	}
	return best, found, nil
}

func (s *Store) SaveGeneratedFile(ctx context.Context, file domain.GeneratedFile) (domain.GeneratedFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	file.CreatedAt = time.Now()
	s.files[file.ID] = file
	return file, nil
}

func (s *Store) LatestGeneratedFile(ctx context.Context, siteID uuid.UUID, kind string) (domain.GeneratedFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best domain.GeneratedFile
	found := false
	for _, file := range s.files {
		if file.SiteID != siteID || file.Kind != kind {
			continue
		}
		if !found || file.CreatedAt.After(best.CreatedAt) {
			best = file
			found = true
		}
	}
	if !found {
		return domain.GeneratedFile{}, store.ErrNotFound
	}
	return best, nil
}

func (s *Store) UpsertSchedule(ctx context.Context, schedule domain.Schedule) (domain.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.schedules[schedule.ID]; !exists {
		schedule.CreatedAt = time.Now()
	} else {
		schedule.CreatedAt = s.schedules[schedule.ID].CreatedAt
	}
	s.schedules[schedule.ID] = schedule
	return schedule, nil
}

func (s *Store) ClaimDueSchedules(ctx context.Context, now time.Time, limit int) ([]domain.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []domain.Schedule
	for _, schedule := range s.schedules {
		if schedule.Enabled && !schedule.NextRunAt.After(now) {
			due = append(due, schedule)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].NextRunAt.Before(due[j].NextRunAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *Store) AdvanceSchedule(ctx context.Context, id uuid.UUID, nextRunAt time.Time, lastRunAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	schedule, ok := s.schedules[id]
	if !ok {
		return store.ErrNotFound
	}
	schedule.NextRunAt = nextRunAt
	last := lastRunAt
	schedule.LastRunAt = &last
	s.schedules[id] = schedule
	return nil
}
