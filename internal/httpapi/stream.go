package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/llmstxt-forge/forge/internal/progress"
)

// handleStreamCrawlJob serves the server-push event stream: frames are
// `event: message\ndata: <json>\n\n` with the payload's type field in
// {page_crawled, progress, completed, failed, heartbeat}, matching the
// pack's JSON-frame conventions elsewhere (internal/robots/fetcher.go's
// cached-result round trip) rather than a wire format only this handler
// invents.
func (srv *Server) handleStreamCrawlJob(w http.ResponseWriter, r *http.Request) {
	job, ok := srv.lookupJobForSite(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal", "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	poller := progress.New(srv.store, srv.store)
	for snap := range poller.Stream(r.Context(), job.ID) {
		frame := toStreamSnapshot(snap)
		payload, err := json.Marshal(frame)
		if err != nil {
			continue
		}
		if _, err := fmt.Fprintf(w, "event: message\ndata: %s\n\n", payload); err != nil {
			return
		}
		flusher.Flush()
	}
}

func toStreamSnapshot(snap progress.Snapshot) streamSnapshot {
	out := streamSnapshot{Type: string(snap.Type), Error: snap.Error, EmittedAt: snap.EmittedAt}
	switch snap.Type {
	case progress.EventPageCrawled:
		out.Page = &streamPage{
			ID:       snap.Page.ID.String(),
			URL:      snap.Page.URL,
			Title:    snap.Page.Title,
			Category: snap.Page.Category,
			Change:   string(snap.Page.Change),
		}
	case progress.EventProgress, progress.EventCompleted, progress.EventFailed:
		counters := snap.Counters
		out.Counters = &counters
	}
	return out
}
