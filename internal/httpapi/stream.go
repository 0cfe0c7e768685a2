package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"propertyhub.org/internal/audit"
)

// auditStream sends audit entries as Server-Sent Events as they are
// appended. Entry filters use the same query parameters as /v1/audit.
func (a *API) auditStream(w http.ResponseWriter, r *http.Request) {
	if a.feed == nil {
		writeError(w, r, http.StatusServiceUnavailable, "streaming disabled")
		return
	}
	q := r.URL.Query()
	filter := audit.Filter{
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
		ActorID:    q.Get("actor_id"),
	}

	rc := http.NewResponseController(w)
	// The server write timeout would otherwise cut long-lived streams.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ch := a.feed.Subscribe(ctx)

	_, _ = w.Write([]byte(": stream started\n\n"))
	if err := rc.Flush(); err != nil {
		return
	}

	for e := range ch {
		if !matches(filter, e) {
			continue
		}
		payload, err := json.Marshal(e)
		if err != nil {
			continue
		}
		if _, err := fmt.Fprintf(w, "id: %s\nevent: audit\ndata: %s\n\n", e.ID, payload); err != nil {
			return
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func matches(f audit.Filter, e audit.Entry) bool {
	return (f.EntityType == "" || f.EntityType == e.EntityType) &&
		(f.EntityID == "" || f.EntityID == e.EntityID) &&
		(f.ActorID == "" || f.ActorID == e.ActorAccountID)
}
