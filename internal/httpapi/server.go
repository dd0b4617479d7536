// Package httpapi exposes the REST + server-push surface over
// internal/store, internal/queue, and internal/progress: register sites,
// enqueue crawls, fetch job snapshots, stream live progress, and serve the
// latest generated document.
package httpapi

import (
	"net/http"
	"time"

	"github.com/llmstxt-forge/forge/internal/config"
	"github.com/llmstxt-forge/forge/internal/metadata"
	"github.com/llmstxt-forge/forge/internal/queue"
	"github.com/llmstxt-forge/forge/internal/store"
)

// Server wires the HTTP handlers to their dependencies. It holds no crawl
// state of its own — store.Store is the single source of truth, the same
// way internal/queue and internal/worker share it.
type Server struct {
	store store.Store
	queue *queue.Queue
	sink  metadata.MetadataSink
	cfg   config.ServerConfig
}

func New(s store.Store, q *queue.Queue, sink metadata.MetadataSink, cfg config.ServerConfig) *Server {
	return &Server{store: s, queue: q, sink: sink, cfg: cfg}
}

// NewServeMux builds the routed http.Handler for srv, using Go 1.22's
// method+path pattern matching instead of pulling in a router dependency
// the pack never demonstrates for HTTP (the pack's only transport library,
// anthropic-sdk-go, is an outbound client, not a server framework).
func (srv *Server) NewServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sites", srv.handleCreateSite)
	mux.HandleFunc("POST /sites/{id}/crawl", srv.handleEnqueueCrawl)
	mux.HandleFunc("GET /sites/{id}/crawl/{job_id}", srv.handleGetCrawlJob)
	mux.HandleFunc("GET /sites/{id}/crawl/{job_id}/stream", srv.handleStreamCrawlJob)
	mux.HandleFunc("GET /sites/{id}/llms-txt", srv.handleGetLLMsTxt)
	mux.HandleFunc("GET /sites/{id}/llms-full-txt", srv.handleGetLLMsFullTxt)
	mux.HandleFunc("PUT /sites/{id}/schedule", srv.handlePutSchedule)
	return mux
}

func (srv *Server) recordError(action string, cause metadata.ErrorCause, err error) {
	srv.sink.RecordError(time.Now(), "httpapi", action, cause, err.Error(), nil)
}
