package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	internalErrors "centavo-service/internal/errors"
	"centavo-service/internal/notify"
	"centavo-service/internal/services"
)

type HttpServer struct {
	sessions      services.SessionsInterface
	claims        services.ClaimEngineInterface
	notifier      notify.PaidNotifierInterface
	verifier      TokenVerifier
	webhookSecret string
	port          string
	server        *http.Server
}

func NewServer(
	port string,
	sessions services.SessionsInterface,
	claims services.ClaimEngineInterface,
	notifier notify.PaidNotifierInterface,
	verifier TokenVerifier,
	webhookSecret string,
) (*HttpServer, error) {
	// A server without the shared secret would accept nothing but would
	// also hide the misconfiguration until the first webhook; refuse to
	// start instead.
	if webhookSecret == "" {
		return nil, internalErrors.ErrMissingWebhookSecret
	}
	return &HttpServer{
		sessions:      sessions,
		claims:        claims,
		notifier:      notifier,
		verifier:      verifier,
		webhookSecret: webhookSecret,
		port:          port,
	}, nil
}

func (s *HttpServer) ListenAndServe() error {
	portNum, err := strconv.Atoi(s.port)
	if err != nil {
		portNum = 8080
	}

	s.server = s.createHTTPServer(portNum)
	return s.server.ListenAndServe()
}

func (s *HttpServer) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *HttpServer) createHTTPServer(port int) *http.Server {
	router := s.loadRoutes(http.NewServeMux())
	middlewareChain := NewChain(
		s.recoverPanic,
		s.noCache,
		s.enableCors,
	)

	return &http.Server{
		Addr:        fmt.Sprintf(":%d", port),
		Handler:     middlewareChain(router),
		IdleTimeout: 10 * time.Second,
		ReadTimeout: 2 * time.Second,
		// long enough for the SSE stream's heartbeat cadence
		WriteTimeout: 0,
	}
}
