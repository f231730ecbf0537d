package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"centavo-service/internal/config"
	"centavo-service/internal/dtos"
	"centavo-service/internal/entities"
	internalErrors "centavo-service/internal/errors"
)

func (s *HttpServer) createSession(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		slog.Error("cannot read request body", "error", err)
		http.Error(w, "Cannot read request body", http.StatusUnprocessableEntity)
		return
	}
	defer r.Body.Close()

	var request dtos.CreateSessionRequest
	if err := json.Unmarshal(body, &request); err != nil {
		slog.Error("cannot unmarshal request body", "error", err)
		http.Error(w, "Cannot unmarshal request body", http.StatusUnprocessableEntity)
		return
	}

	result, err := s.sessions.Assign(r.Context(), principal(r), entities.Tier(request.Tier), request.Mobile)
	switch {
	case errors.Is(err, internalErrors.ErrInvalidTier):
		http.Error(w, "Unknown tier", http.StatusBadRequest)
		return
	case errors.Is(err, internalErrors.ErrTierLocked):
		http.Error(w, "Active subscription blocks this purchase", http.StatusConflict)
		return
	case errors.Is(err, internalErrors.ErrAmountPoolExhausted):
		// retryable: every centavo slot is reserved right now
		http.Error(w, "No payment slot available, retry shortly", http.StatusServiceUnavailable)
		return
	case err != nil:
		slog.Error("session assignment failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, dtos.CreateSessionResponse{
		SessionID:      result.Session.ID,
		ExactAmountDue: result.Session.ExactAmountDue,
		DisplayAmount:  entities.DisplayAmount(result.Session.ExactAmountDue),
		Credits:        result.Session.CreditsToGrant,
		Tier:           string(result.Session.Tier),
		TTLSeconds:     int64(result.TTL.Seconds()),
		QRPayload:      result.QRPayload,
		RedirectURL:    result.RedirectURL,
	})
}

func (s *HttpServer) sessionStatus(w http.ResponseWriter, r *http.Request) {
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

	writeJSON(w, http.StatusOK, statusResponse(session))
}

func (s *HttpServer) currentSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.RecoverPending(r.Context(), principal(r))
	if errors.Is(err, internalErrors.ErrSessionNotFound) {
		http.Error(w, "No pending session", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("pending session recovery failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse(session))
}

func statusResponse(session *entities.PaymentSession) dtos.SessionStatusResponse {
	return dtos.SessionStatusResponse{
		SessionID:        session.ID,
		Status:           string(session.Status),
		ExactAmountDue:   session.ExactAmountDue,
		DisplayAmount:    entities.DisplayAmount(session.ExactAmountDue),
		RemainingSeconds: session.RemainingSeconds(time.Now().UTC(), config.SessionTTL),
	}
}

func (s *HttpServer) manualReference(w http.ResponseWriter, r *http.Request) {
	var request dtos.ManualReferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Cannot unmarshal request body", http.StatusUnprocessableEntity)
		return
	}
	defer r.Body.Close()

	err := s.sessions.SubmitManualReference(r.Context(), principal(r), request.Reference)
	switch {
	case errors.Is(err, internalErrors.ErrInvalidReference):
		http.Error(w, "Malformed reference", http.StatusBadRequest)
		return
	case errors.Is(err, internalErrors.ErrDuplicateReference):
		http.Error(w, "Reference already submitted", http.StatusConflict)
		return
	case err != nil:
		slog.Error("manual reference submission failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, struct{}{})
}

// gatewayWebhook is the only unauthenticated-route in the payment surface;
// its gate is the signature over the raw body, and the gate runs before any
// persistence access of any kind.
func (s *HttpServer) gatewayWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Cannot read request body", http.StatusUnprocessableEntity)
		return
	}
	defer r.Body.Close()

	if err := verifyWebhookSignature(r.Header.Get(signatureHeader), body, s.webhookSecret); err != nil {
		// logged outside the audit trail; no database writes happened
		slog.Warn("rejected webhook delivery", "error", err)
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	var envelope dtos.WebhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		slog.Error("cannot unmarshal webhook body", "error", err)
		http.Error(w, "Cannot unmarshal webhook body", http.StatusBadRequest)
		return
	}

	outcome, err := s.claims.HandleNotification(r.Context(), &envelope)
	if err != nil {
		slog.Error("webhook handling failed", "event", envelope.Event, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, dtos.WebhookResponse{
		Received: true,
		Matched:  outcome.Matched,
		Reason:   outcome.Reason,
	})
}

func (s *HttpServer) healthCheck(w http.ResponseWriter, r *http.Request) {
	err := writeJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
	}{
		Status: "all good",
	})
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
