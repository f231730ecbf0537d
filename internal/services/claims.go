package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"centavo-service/internal/config"
	"centavo-service/internal/dtos"
	"centavo-service/internal/entities"
	internalErrors "centavo-service/internal/errors"
	"centavo-service/internal/notify"
	"centavo-service/internal/store"
)

// Event classes the gateway delivers. Only the fulfillment-bearing ones can
// move money; everything else is acknowledged without mutation.
var fulfillmentEvents = map[string]bool{
	"cash_in.received":  true,
	"payment.confirmed": true,
}

// ClaimEngine matches authenticated gateway notifications against pending
// sessions and applies fulfillment. It is safe under redelivery: the claim
// is one atomic state flip, so the second delivery of the same notification
// finds nothing to claim and becomes a successful no-op.
type ClaimEngine struct {
	store    store.PaymentStoreInterface
	notifier notify.PaidNotifierInterface
	now      func() time.Time
}

func NewClaimEngine(st store.PaymentStoreInterface, notifier notify.PaidNotifierInterface) *ClaimEngine {
	return &ClaimEngine{
		store:    st,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type ClaimOutcome struct {
	Matched bool
	Reason  string
	Session *entities.PaymentSession
}

// HandleNotification runs after the transport layer has verified the
// webhook signature; nothing here may execute for unauthenticated traffic.
func (e *ClaimEngine) HandleNotification(ctx context.Context, envelope *dtos.WebhookEnvelope) (*ClaimOutcome, error) {
	// One metadata-only audit entry per authenticated delivery, before any
	// branching. The raw body never reaches the database.
	if err := e.store.InsertAudit(ctx, envelope.Event, "verified"); err != nil {
		return nil, err
	}

	if !fulfillmentEvents[envelope.Event] {
		return &ClaimOutcome{Matched: false, Reason: "ignored"}, nil
	}

	amount := envelope.Data.Payment.Amount
	if amount < config.MinWebhookAmount {
		// Gateways emit centavo-scale test transfers; acknowledging keeps
		// them from being redelivered forever.
		return &ClaimOutcome{Matched: false, Reason: "below_threshold"}, nil
	}

	if _, err := e.SweepExpired(ctx); err != nil {
		slog.Error("expiry sweep before claim failed", "error", err)
	}

	session, err := e.store.ClaimByAmount(ctx, amount, e.now().Add(-config.SessionTTL))
	if errors.Is(err, internalErrors.ErrNoMatchingSession) {
		return &ClaimOutcome{Matched: false, Reason: "no_pending_match"}, nil
	}
	if err != nil {
		return nil, err
	}

	if err := e.fulfill(ctx, session); err != nil {
		// The claim landed but the credit did not; surface the failure so
		// the gateway redelivers and operators see it. The redelivery will
		// not double-claim, so this needs manual reconciliation.
		slog.Error("fulfillment failed after claim", "sessionID", session.ID, "error", err)
		return nil, err
	}

	if err := e.notifier.PublishPaid(ctx, session.ID); err != nil {
		slog.Error("paid notification publish failed", "sessionID", session.ID, "error", err)
	}

	return &ClaimOutcome{Matched: true, Session: session}, nil
}

// fulfill is the fulfillment writer: one atomic credit increment plus, for
// subscription tiers, the tier lock and usage reset.
func (e *ClaimEngine) fulfill(ctx context.Context, session *entities.PaymentSession) error {
	plan, _ := entities.PlanFor(session.Tier)

	var lockUntil *time.Time
	if plan.Subscription {
		t := e.now().Add(config.TierLockDuration)
		lockUntil = &t
	}

	return e.store.ApplyFulfillment(ctx, session, lockUntil)
}

// SweepExpired transitions pending sessions past their TTL to expired.
func (e *ClaimEngine) SweepExpired(ctx context.Context) (int64, error) {
	return e.store.ExpireStale(ctx, e.now().Add(-config.SessionTTL))
}

// StartSweeper periodically frees amounts held by abandoned sessions so the
// pool never starves while webhook traffic is quiet.
func (e *ClaimEngine) StartSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := e.SweepExpired(ctx)
			if err != nil {
				slog.Error("background expiry sweep failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("expired stale payment sessions", "count", n)
			}
		}
	}
}
