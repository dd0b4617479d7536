// Package worker implements the claim/run/finish loop that turns one
// leased CrawlTask into a completed or failed CrawlJob: recover abandoned
// leases, claim the next task, run the crawl under a heartbeat and a soft
// timeout, classify removed pages against the site's prior run, and —
// exactly once per job with pages_changed > 0 — invoke the configured
// Assembler and persist its output as a GeneratedFile.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/llmstxt-forge/forge/internal/assembler"
	"github.com/llmstxt-forge/forge/internal/changetracker"
	"github.com/llmstxt-forge/forge/internal/crawler"
	"github.com/llmstxt-forge/forge/internal/domain"
	"github.com/llmstxt-forge/forge/internal/metadata"
	"github.com/llmstxt-forge/forge/internal/queue"
	"github.com/llmstxt-forge/forge/pkg/hashutil"
)

// DefaultPollInterval is how often Run looks for a claimable task when it
// has none of its own.
const DefaultPollInterval = 2 * time.Second

// DefaultHeartbeatEvery renews a claimed task's lease well inside
// queue.DefaultLeaseFor so a slow GC pause or network blip never loses the
// lease to another worker mid-crawl.
const DefaultHeartbeatEvery = 10 * time.Second

// DefaultCrawlTimeout bounds one crawl job end to end, independent of any
// single fetch's own timeout, so a pathological site can't pin a worker
// forever.
const DefaultCrawlTimeout = 30 * time.Minute

// DefaultRecoverEvery is how often Run reclaims lease-expired tasks so a
// crashed worker's backlog resumes without operator intervention.
const DefaultRecoverEvery = 30 * time.Second

const generatedKindLLMsTxt = "llms.txt"
const generatedKindLLMsFullTxt = "llms-full.txt"

// Store is the persistence surface Worker needs beyond the queue.
type Store interface {
	GetSite(ctx context.Context, id uuid.UUID) (domain.Site, error)
	GetCrawlJob(ctx context.Context, id uuid.UUID) (domain.CrawlJob, error)
	TransitionCrawlJob(ctx context.Context, id uuid.UUID, status domain.CrawlJobStatus, errMsg string) error
	LatestCompletedCrawlJob(ctx context.Context, siteID uuid.UUID, excludeJobID uuid.UUID) (domain.CrawlJob, bool, error)
	ListPages(ctx context.Context, crawlJobID uuid.UUID) ([]domain.Page, error)
	UpsertPage(ctx context.Context, page domain.Page) (domain.Page, error)
	SaveGeneratedFile(ctx context.Context, file domain.GeneratedFile) (domain.GeneratedFile, error)
	LatestGeneratedFile(ctx context.Context, siteID uuid.UUID, kind string) (domain.GeneratedFile, error)
}

// Crawler is the crawl-execution surface Worker depends on, narrowed from
// *crawler.Crawler so tests can substitute a fake.
type Crawler interface {
	Run(ctx context.Context, site domain.Site, jobID uuid.UUID, events chan<- crawler.Event) (crawler.Result, error)
}

// Worker runs the claim loop for one process. Multiple Workers (different
// processes, or different owner IDs on one host) share the same queue and
// store safely — the lease is the only coordination primitive.
type Worker struct {
	id           string
	queue        *queue.Queue
	store        Store
	crawler      Crawler
	assembler    assembler.Assembler
	sink         metadata.MetadataSink
	pollInterval time.Duration
	heartbeatFor time.Duration
	crawlTimeout time.Duration
	recoverEvery time.Duration
}

// New builds a Worker identified by id, which becomes the lease owner
// recorded on every task it claims.
func New(id string, q *queue.Queue, s Store, c Crawler, asm assembler.Assembler, sink metadata.MetadataSink) *Worker {
	return &Worker{
		id:           id,
		queue:        q,
		store:        s,
		crawler:      c,
		assembler:    asm,
		sink:         sink,
		pollInterval: DefaultPollInterval,
		heartbeatFor: DefaultHeartbeatEvery,
		crawlTimeout: DefaultCrawlTimeout,
		recoverEvery: DefaultRecoverEvery,
	}
}

func (w *Worker) WithPollInterval(d time.Duration) *Worker { w.pollInterval = d; return w }
func (w *Worker) WithHeartbeatEvery(d time.Duration) *Worker { w.heartbeatFor = d; return w }
func (w *Worker) WithCrawlTimeout(d time.Duration) *Worker { w.crawlTimeout = d; return w }
func (w *Worker) WithRecoverEvery(d time.Duration) *Worker { w.recoverEvery = d; return w }

// Run blocks, polling for claimable work every pollInterval and recovering
// abandoned leases every recoverEvery, until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	pollTicker := time.NewTicker(w.pollInterval)
	defer pollTicker.Stop()
	recoverTicker := time.NewTicker(w.recoverEvery)
	defer recoverTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-recoverTicker.C:
			if n, err := w.queue.Recover(ctx); err != nil {
				w.sink.RecordError(time.Now(), "worker", "Recover", metadata.CauseStorageFailure, err.Error(), nil)
			} else if n > 0 {
				w.sink.RecordError(time.Now(), "worker", "Recover", metadata.CauseUnknown, "", nil)
			}
		case <-pollTicker.C:
			w.tick(ctx)
		}
	}
}

// tick claims and fully processes at most one task. It is exported via
// Tick for tests that want to drive the loop deterministically instead of
// waiting out pollInterval.
func (w *Worker) tick(ctx context.Context) {
	task, ok, err := w.queue.Claim(ctx, w.id)
	if err != nil {
		w.sink.RecordError(time.Now(), "worker", "Claim", metadata.CauseStorageFailure, err.Error(), nil)
		return
	}
	if !ok {
		return
	}
	w.process(ctx, task)
}

// Tick exposes one claim-and-process cycle for tests.
func (w *Worker) Tick(ctx context.Context) { w.tick(ctx) }

// process owns one claimed task end to end: it heartbeats the lease while
// the crawl runs, then finalizes the job on success or failure. outerCtx is
// the process lifetime context; a cancellation observed there (shutdown)
// is distinguished from a cancellation observed only on the per-job
// timeout context, since the former must not fail the job — it should be
// left for another worker to pick back up once the lease expires.
func (w *Worker) process(outerCtx context.Context, task domain.CrawlTask) {
	job, err := w.store.GetCrawlJob(outerCtx, task.CrawlJobID)
	if err != nil {
		w.failTask(outerCtx, task, err, false)
		return
	}
	site, err := w.store.GetSite(outerCtx, job.SiteID)
	if err != nil {
		w.failTask(outerCtx, task, err, false)
		return
	}

	if err := w.store.TransitionCrawlJob(outerCtx, job.ID, domain.CrawlJobRunning, ""); err != nil {
		w.failTask(outerCtx, task, err, true)
		return
	}

	stopHeartbeat := w.startHeartbeat(outerCtx, task.ID)
	crawlCtx, cancel := context.WithTimeout(outerCtx, w.crawlTimeout)
	result, runErr := w.crawler.Run(crawlCtx, site, job.ID, nil)
	cancel()
	stopHeartbeat()

	if runErr != nil {
		if outerCtx.Err() != nil {
			// Process is shutting down, not a crawl failure. Leave the
			// task leased; it reverts to pending once the lease expires
			// and RecoverExpiredTasks picks it up for another worker.
			return
		}
		w.finishFailed(outerCtx, job, task, runErr)
		return
	}

	pagesChanged, err := w.finishSucceeded(outerCtx, site, job, result)
	if err != nil {
		w.finishFailed(outerCtx, job, task, err)
		return
	}

	if err := w.store.TransitionCrawlJob(outerCtx, job.ID, domain.CrawlJobCompleted, ""); err != nil {
		w.sink.RecordError(time.Now(), "worker", "process", metadata.CauseStorageFailure, err.Error(), nil)
	}
	if pagesChanged > 0 {
		w.assemble(outerCtx, site, job, result)
	}
	if err := w.queue.Complete(outerCtx, task.ID, w.id); err != nil {
		w.sink.RecordError(time.Now(), "worker", "Complete", metadata.CauseStorageFailure, err.Error(), nil)
	}
}

// finishSucceeded classifies and persists removed pages, returning the
// run's total pages_changed (added + updated + removed).
func (w *Worker) finishSucceeded(ctx context.Context, site domain.Site, job domain.CrawlJob, result crawler.Result) (int, error) {
	removed := 0
	priorJob, found, err := w.store.LatestCompletedCrawlJob(ctx, site.ID, job.ID)
	if err != nil {
		return 0, err
	}
	if found {
		priorPages, err := w.store.ListPages(ctx, priorJob.ID)
		if err != nil {
			return 0, err
		}
		priorByURL := make(map[string]domain.Page, len(priorPages))
		priorURLs := make([]string, 0, len(priorPages))
		for _, p := range priorPages {
			priorByURL[p.URL] = p
			priorURLs = append(priorURLs, p.URL)
		}
		for _, url := range changetracker.ClassifyRemoved(priorURLs, result.SeenURLs) {
			prior := priorByURL[url]
			removedPage := prior
			removedPage.ID = uuid.New()
			removedPage.CrawlJobID = job.ID
			removedPage.Change = domain.ChangeRemoved
			removedPage.FetchedAt = time.Now()
			if _, err := w.store.UpsertPage(ctx, removedPage); err != nil {
				return 0, err
			}
			removed++
		}
	}
	return result.Counters.PagesChanged + removed, nil
}

// assemble invokes the configured Assembler once for job to render
// llms.txt, then renders the mechanical llms-full.txt companion, and
// persists both. Idempotent by job id: if the site's latest generated file
// of a kind already belongs to job, that kind is not regenerated (covers a
// worker that crashes after assembling but before completing the task,
// then resumes on a second claim).
func (w *Worker) assemble(ctx context.Context, site domain.Site, job domain.CrawlJob, result crawler.Result) {
	pages, err := w.store.ListPages(ctx, job.ID)
	if err != nil {
		w.sink.RecordError(time.Now(), "worker", "assemble", metadata.CauseStorageFailure, err.Error(), nil)
		return
	}
	req := assembler.Request{Site: site, CrawlJob: job, Pages: pages}

	if existing, err := w.store.LatestGeneratedFile(ctx, site.ID, generatedKindLLMsTxt); err != nil || existing.CrawlJobID != job.ID {
		content, err := w.assembler.Assemble(ctx, req)
		if err != nil {
			w.sink.RecordError(time.Now(), "worker", "assemble", metadata.CauseUnknown, err.Error(), nil)
		} else {
			w.saveGeneratedFile(ctx, site, job, generatedKindLLMsTxt, content)
		}
	}

	if existing, err := w.store.LatestGeneratedFile(ctx, site.ID, generatedKindLLMsFullTxt); err != nil || existing.CrawlJobID != job.ID {
		w.saveGeneratedFile(ctx, site, job, generatedKindLLMsFullTxt, assembler.AssembleFullText(req))
	}
}

func (w *Worker) saveGeneratedFile(ctx context.Context, site domain.Site, job domain.CrawlJob, kind string, content []byte) {
	sha, err := hashutil.HashBytes(content, hashutil.HashAlgoSHA256)
	if err != nil {
		w.sink.RecordError(time.Now(), "worker", "assemble", metadata.CauseUnknown, err.Error(), nil)
		return
	}

	file := domain.GeneratedFile{
		ID:         uuid.New(),
		CrawlJobID: job.ID,
		SiteID:     site.ID,
		Kind:       kind,
		Content:    content,
		ContentSHA: sha,
		CreatedAt:  time.Now(),
	}
	if _, err := w.store.SaveGeneratedFile(ctx, file); err != nil {
		w.sink.RecordError(time.Now(), "worker", "assemble", metadata.CauseStorageFailure, err.Error(), nil)
	}
}

func (w *Worker) finishFailed(ctx context.Context, job domain.CrawlJob, task domain.CrawlTask, cause error) {
	if err := w.store.TransitionCrawlJob(ctx, job.ID, domain.CrawlJobFailed, cause.Error()); err != nil {
		w.sink.RecordError(time.Now(), "worker", "finishFailed", metadata.CauseStorageFailure, err.Error(), nil)
	}
	w.failTask(ctx, task, cause, true)
}

// failTask routes cause to Fail (retry budget) or DeadLetter (no retry)
// depending on retryable, then records it.
func (w *Worker) failTask(ctx context.Context, task domain.CrawlTask, cause error, retryable bool) {
	var classified *WorkerError
	if !errors.As(cause, &classified) {
		classified = &WorkerError{Message: cause.Error(), Retryable: retryable, Cause: ErrCauseCrawlFailed}
	}

	var err error
	if classified.Retryable {
		err = w.queue.Fail(ctx, task, w.id, classified)
	} else {
		err = w.queue.DeadLetter(ctx, task.ID, w.id, classified)
	}
	if err != nil {
		w.sink.RecordError(time.Now(), "worker", "failTask", metadata.CauseStorageFailure, err.Error(), nil)
	}
}

// startHeartbeat renews task's lease every heartbeatFor until the returned
// stop function is called. Heartbeat failures are recorded but never abort
// the crawl in progress — losing a heartbeat is only fatal if the lease
// actually expires before the next renewal succeeds.
func (w *Worker) startHeartbeat(ctx context.Context, taskID uuid.UUID) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(w.heartbeatFor)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := w.queue.Heartbeat(ctx, taskID, w.id); err != nil {
					w.sink.RecordError(time.Now(), "worker", "Heartbeat", metadata.CauseStorageFailure, err.Error(), nil)
				}
			}
		}
	}()
	return func() { close(done) }
}
