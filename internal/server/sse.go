package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// heartbeatInterval paces SSE comment lines that keep idle connections
// from being reaped by intermediaries.
const heartbeatInterval = 15 * time.Second

// handleEvents streams broadcast events to the client as server-sent
// events. The connection is an ordinary broadcaster subscriber: if the
// client cannot keep up, the broadcaster drops it and the stream ends.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := s.broadcaster.Subscribe()
	defer s.broadcaster.Unsubscribe(sub)

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev, open := <-sub.Events():
			if !open {
				// Dropped for falling behind, or the broadcaster closed.
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				log.Printf("[server] encode event: %v", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
