package server

import (
	"net/http"
)

func (s *HttpServer) loadRoutes(mux *http.ServeMux) http.HandlerFunc {
	mux.HandleFunc("POST /api/payments/sessions", s.requireAuth(s.createSession))
	mux.HandleFunc("GET /api/payments/sessions/current", s.requireAuth(s.currentSession))
	mux.HandleFunc("GET /api/payments/sessions/{id}", s.requireAuth(s.sessionStatus))
	mux.HandleFunc("GET /api/payments/sessions/{id}/events", s.requireAuth(s.sessionEvents))
	mux.HandleFunc("POST /api/payments/manual-reference", s.requireAuth(s.manualReference))
	mux.HandleFunc("POST /webhooks/gateway", s.gatewayWebhook)
	mux.HandleFunc("GET /healthcheck", s.healthCheck)

	return mux.ServeHTTP
}
