package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"centavo-service/internal/entities"
	internalErrors "centavo-service/internal/errors"
)

const sseHeartbeat = 15 * time.Second

// sessionEvents streams terminal-state signals for one session. The paid
// signal rides the notifier's pub/sub channel; a slow heartbeat keeps
// intermediaries from reaping the connection. Clients still poll as a
// fallback, so a silently dropped stream loses nothing.
func (s *HttpServer) sessionEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	session, err := s.sessions.SessionStatus(r.Context(), principal(r), r.PathValue("id"))
	if errors.Is(err, internalErrors.ErrSessionNotFound) {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("session status read failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	emit := func(event, data string) {
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
		flusher.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Connection", "keep-alive")

	// already terminal: emit the state and be done
	if session.Status != entities.StatusPending {
		w.WriteHeader(http.StatusOK)
		emit(string(session.Status), session.ID)
		return
	}

	paid, cancel, err := s.notifier.SubscribePaid(r.Context(), session.ID)
	if err != nil {
		slog.Error("paid subscription failed", "sessionID", session.ID, "error", err)
		w.WriteHeader(http.StatusOK)
		emit("subscription_failed", "poll")
		return
	}
	defer cancel()

	w.WriteHeader(http.StatusOK)

	// the claim may have landed between the status read and the subscribe;
	// re-check now that the subscription can no longer miss a publish
	session, err = s.sessions.SessionStatus(r.Context(), principal(r), session.ID)
	if err == nil && session.Status != entities.StatusPending {
		emit(string(session.Status), session.ID)
		return
	}
	flusher.Flush()

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case id, ok := <-paid:
			if !ok {
				return
			}
			emit("paid", id)
			return
		}
	}
}
