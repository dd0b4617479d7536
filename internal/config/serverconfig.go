package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ServerConfig is the process-wide configuration surface for the API and
// worker binaries, read from environment variables. It answers "how is this
// process wired"; per-crawl bounds (depth, pages, concurrency) live on each
// domain.Site and domain.CrawlJob.
type ServerConfig struct {
	databaseURL      string
	llmAPIKey        string
	llmModel         string
	maxCrawlPages    int
	maxCrawlDepth    int
	crawlConcurrency int
	workerID         string
	runScheduler     bool
	taskLeaseFor     time.Duration
	taskMaxAttempts  int
}

// InvalidConfigError wraps a malformed environment value. Callers map it to
// the process's exit code 2 (invalid configuration).
type InvalidConfigError struct {
	Key   string
	Value string
	Err   error
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config %s=%q: %v", e.Key, e.Value, e.Err)
}

func (e *InvalidConfigError) Unwrap() error {
	return e.Err
}

// FromEnv reads the recognized environment variables into a ServerConfig,
// applying the documented defaults for anything unset.
func FromEnv() (ServerConfig, error) {
	cfg := ServerConfig{
		databaseURL:      os.Getenv("DATABASE_URL"),
		llmAPIKey:        os.Getenv("LLM_API_KEY"),
		llmModel:         getenvDefault("LLM_MODEL", "gpt-5.2"),
		maxCrawlPages:    200,
		maxCrawlDepth:    3,
		crawlConcurrency: 20,
		workerID:         getenvDefault("WORKER_ID", "worker-1"),
		runScheduler:     false,
		taskLeaseFor:     60 * time.Second,
		taskMaxAttempts:  5,
	}

	var err error
	if cfg.maxCrawlPages, err = getenvIntDefault("MAX_CRAWL_PAGES", cfg.maxCrawlPages); err != nil {
		return ServerConfig{}, err
	}
	if cfg.maxCrawlDepth, err = getenvIntDefault("MAX_CRAWL_DEPTH", cfg.maxCrawlDepth); err != nil {
		return ServerConfig{}, err
	}
	if cfg.crawlConcurrency, err = getenvIntDefault("CRAWL_CONCURRENCY", cfg.crawlConcurrency); err != nil {
		return ServerConfig{}, err
	}
	if cfg.taskMaxAttempts, err = getenvIntDefault("TASK_MAX_ATTEMPTS", cfg.taskMaxAttempts); err != nil {
		return ServerConfig{}, err
	}
	if leaseSeconds, err := getenvIntDefault("TASK_LEASE_SECONDS", int(cfg.taskLeaseFor/time.Second)); err != nil {
		return ServerConfig{}, err
	} else {
		cfg.taskLeaseFor = time.Duration(leaseSeconds) * time.Second
	}
	if raw, ok := os.LookupEnv("RUN_SCHEDULER"); ok {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return ServerConfig{}, &InvalidConfigError{Key: "RUN_SCHEDULER", Value: raw, Err: err}
		}
		cfg.runScheduler = parsed
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getenvIntDefault(key string, def int) (int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return def, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &InvalidConfigError{Key: key, Value: raw, Err: err}
	}
	return parsed, nil
}

func (c ServerConfig) DatabaseURL() string       { return c.databaseURL }
func (c ServerConfig) LLMAPIKey() string         { return c.llmAPIKey }
func (c ServerConfig) LLMModel() string          { return c.llmModel }
func (c ServerConfig) MaxCrawlPages() int        { return c.maxCrawlPages }
func (c ServerConfig) MaxCrawlDepth() int        { return c.maxCrawlDepth }
func (c ServerConfig) CrawlConcurrency() int     { return c.crawlConcurrency }
func (c ServerConfig) WorkerID() string          { return c.workerID }
func (c ServerConfig) RunScheduler() bool        { return c.runScheduler }
func (c ServerConfig) TaskLeaseFor() time.Duration { return c.taskLeaseFor }
func (c ServerConfig) TaskMaxAttempts() int      { return c.taskMaxAttempts }

// WithWorkerID overrides the worker identity, mainly for tests that need a
// deterministic lease owner.
func (c ServerConfig) WithWorkerID(id string) ServerConfig {
	c.workerID = id
	return c
}

// HasLLM reports whether an ExternalLLMAssembler should be used in place of
// the deterministic TemplateAssembler.
func (c ServerConfig) HasLLM() bool {
	return c.llmAPIKey != ""
}
