package services

import (
	"context"
	"log/slog"
	"math/rand"
	"regexp"
	"time"

	"centavo-service/internal/config"
	"centavo-service/internal/entities"
	internalErrors "centavo-service/internal/errors"
	"centavo-service/internal/gateway"
	"centavo-service/internal/pixqr"
	"centavo-service/internal/store"

	"github.com/google/uuid"
)

// SessionService assigns payment sessions. The only hard invariant it owns
// is centavo-matching: every pending session system-wide holds a distinct
// exact amount, enforced by the store's reservation operation.
type SessionService struct {
	store         store.PaymentStoreInterface
	gw            gateway.PaymentGatewayInterface
	staticPayload string
	now           func() time.Time
}

func NewSessionService(
	st store.PaymentStoreInterface,
	gw gateway.PaymentGatewayInterface,
	staticPayload string,
) *SessionService {
	return &SessionService{
		store:         st,
		gw:            gw,
		staticPayload: staticPayload,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

type AssignResult struct {
	Session     *entities.PaymentSession
	QRPayload   string
	RedirectURL string
	TTL         time.Duration
}

func (s *SessionService) Assign(ctx context.Context, userID string, tier entities.Tier, mobile bool) (*AssignResult, error) {
	plan, ok := entities.PlanFor(tier)
	if !ok {
		return nil, internalErrors.ErrInvalidTier
	}

	// Business rule, checked before the atomic step: an unexpired
	// subscription blocks buying the same or a lower tier again.
	account, err := s.store.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	if account.TierLockedUntil != nil && s.now().Before(*account.TierLockedUntil) &&
		tier.Rank() <= account.ActiveTier.Rank() {
		return nil, internalErrors.ErrTierLocked
	}

	// Free up amounts held by stale sessions before probing the pool.
	if _, err := s.store.ExpireStale(ctx, s.now().Add(-config.SessionTTL)); err != nil {
		slog.Error("expiry sweep before assignment failed", "error", err)
	}

	session, err := s.reserve(ctx, userID, tier, plan)
	if err != nil {
		return nil, err
	}

	result := &AssignResult{
		Session: session,
		TTL:     config.SessionTTL,
	}

	if s.staticPayload != "" {
		payload, err := pixqr.BuildDynamicPayload(s.staticPayload, session.ExactAmountDue)
		if err != nil {
			slog.Error("building dynamic qr payload failed", "sessionID", session.ID, "error", err)
		} else {
			result.QRPayload = payload
		}
	}

	// Gateway trouble never rolls back the session; the QR flow stands alone.
	if mobile && s.gw != nil {
		url, err := s.gw.CreateRedirectLink(ctx, session.ID, session.ExactAmountDue)
		if err != nil {
			slog.Error("redirect link creation failed", "sessionID", session.ID, "error", err)
		} else {
			result.RedirectURL = url
		}
	}

	return result, nil
}

// reserve probes centavo offsets from a random starting point until the
// store accepts one. Each probe is an atomic insert arbitrated by the
// pending-amount unique index, so concurrent assignments can interleave
// freely without ever sharing an amount.
func (s *SessionService) reserve(ctx context.Context, userID string, tier entities.Tier, plan entities.TierPlan) (*entities.PaymentSession, error) {
	start := rand.Intn(config.AmountPoolSize)
	for i := 0; i < config.AmountPoolSize; i++ {
		offset := int64((start + i) % config.AmountPoolSize)
		session := &entities.PaymentSession{
			ID:             uuid.New().String(),
			UserID:         userID,
			Tier:           tier,
			ExactAmountDue: plan.BaseAmount + offset,
			CreditsToGrant: plan.Credits,
			Status:         entities.StatusPending,
			CreatedAt:      s.now(),
		}
		ok, err := s.store.TryReserveAmount(ctx, session)
		if err != nil {
			return nil, err
		}
		if ok {
			return session, nil
		}
	}
	return nil, internalErrors.ErrAmountPoolExhausted
}

func (s *SessionService) SessionStatus(ctx context.Context, userID, sessionID string) (*entities.PaymentSession, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	// Ownership failures look identical to missing sessions.
	if session.UserID != userID {
		return nil, internalErrors.ErrSessionNotFound
	}

	if session.Status == entities.StatusPending && s.now().After(session.CreatedAt.Add(config.SessionTTL)) {
		if _, err := s.store.ExpireStale(ctx, s.now().Add(-config.SessionTTL)); err != nil {
			slog.Error("expiry sweep on status read failed", "error", err)
		}
		session.Status = entities.StatusExpired
	}
	return session, nil
}

func (s *SessionService) RecoverPending(ctx context.Context, userID string) (*entities.PaymentSession, error) {
	if _, err := s.store.ExpireStale(ctx, s.now().Add(-config.SessionTTL)); err != nil {
		slog.Error("expiry sweep on recovery failed", "error", err)
	}
	return s.store.LatestPending(ctx, userID)
}

var manualReferencePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]{5,63}$`)

func (s *SessionService) SubmitManualReference(ctx context.Context, userID, reference string) error {
	if !manualReferencePattern.MatchString(reference) {
		return internalErrors.ErrInvalidReference
	}
	return s.store.InsertManualReference(ctx, userID, reference)
}
