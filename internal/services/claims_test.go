package services

import (
	"context"
	"testing"
	"time"

	"centavo-service/internal/config"
	"centavo-service/internal/dtos"
	"centavo-service/internal/entities"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paymentConfirmed(amount int64) *dtos.WebhookEnvelope {
	return &dtos.WebhookEnvelope{
		Event: "payment.confirmed",
		Data: dtos.WebhookData{
			Payment: dtos.WebhookPayment{Amount: amount},
		},
	}
}

func TestHandleNotification_MatchCreditsAndNotifies(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	notifier := &fakeNotifier{}
	svc := NewSessionService(st, nil, "")
	engine := NewClaimEngine(st, notifier)
	ctx := context.Background()

	assigned, err := svc.Assign(ctx, "u1", entities.TierStandard, false)
	require.NoError(t, err)

	outcome, err := engine.HandleNotification(ctx, paymentConfirmed(assigned.Session.ExactAmountDue))
	require.NoError(t, err)
	require.True(t, outcome.Matched)
	assert.Equal(t, assigned.Session.ID, outcome.Session.ID)

	account, err := st.GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(50), account.Credits)
	assert.Equal(t, entities.TierStandard, account.ActiveTier)
	require.NotNil(t, account.TierLockedUntil)
	assert.WithinDuration(t, time.Now().UTC().Add(config.TierLockDuration), *account.TierLockedUntil, time.Minute)

	assert.Equal(t, []string{assigned.Session.ID}, notifier.publishedIDs())

	entries, err := st.AuditLog(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "payment.confirmed", entries[0].EventType)
}

func TestHandleNotification_RedeliveryIsIdempotent(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	notifier := &fakeNotifier{}
	svc := NewSessionService(st, nil, "")
	engine := NewClaimEngine(st, notifier)
	ctx := context.Background()

	assigned, err := svc.Assign(ctx, "u1", entities.TierBase, false)
	require.NoError(t, err)
	amount := assigned.Session.ExactAmountDue

	first, err := engine.HandleNotification(ctx, paymentConfirmed(amount))
	require.NoError(t, err)
	require.True(t, first.Matched)

	second, err := engine.HandleNotification(ctx, paymentConfirmed(amount))
	require.NoError(t, err)
	assert.False(t, second.Matched)
	assert.Equal(t, "no_pending_match", second.Reason)

	// exactly one credit increment and one ledger entry
	account, err := st.GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), account.Credits)

	entries, err := st.LedgerEntries(ctx, "u1", 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	assert.Len(t, notifier.publishedIDs(), 1)
}

func TestHandleNotification_BaseTierGrantsNoTierLock(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	svc := NewSessionService(st, nil, "")
	engine := NewClaimEngine(st, &fakeNotifier{})
	ctx := context.Background()

	assigned, err := svc.Assign(ctx, "u1", entities.TierBase, false)
	require.NoError(t, err)

	outcome, err := engine.HandleNotification(ctx, paymentConfirmed(assigned.Session.ExactAmountDue))
	require.NoError(t, err)
	require.True(t, outcome.Matched)

	account, err := st.GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, entities.TierNone, account.ActiveTier)
	assert.Nil(t, account.TierLockedUntil)
}

func TestHandleNotification_BelowThreshold(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	engine := NewClaimEngine(st, &fakeNotifier{})
	ctx := context.Background()

	outcome, err := engine.HandleNotification(ctx, paymentConfirmed(config.MinWebhookAmount-1))
	require.NoError(t, err)
	assert.False(t, outcome.Matched)
	assert.Equal(t, "below_threshold", outcome.Reason)

	// still audited
	entries, err := st.AuditLog(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestHandleNotification_InformationalEventIgnored(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	svc := NewSessionService(st, nil, "")
	engine := NewClaimEngine(st, &fakeNotifier{})
	ctx := context.Background()

	assigned, err := svc.Assign(ctx, "u1", entities.TierBase, false)
	require.NoError(t, err)

	envelope := &dtos.WebhookEnvelope{
		Event: "charge.refund_requested",
		Data:  dtos.WebhookData{Payment: dtos.WebhookPayment{Amount: assigned.Session.ExactAmountDue}},
	}
	outcome, err := engine.HandleNotification(ctx, envelope)
	require.NoError(t, err)
	assert.False(t, outcome.Matched)
	assert.Equal(t, "ignored", outcome.Reason)

	// the session is untouched
	got, err := st.GetSession(ctx, assigned.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusPending, got.Status)
}

func TestHandleNotification_ElapsedSessionNotClaimable(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	svc := NewSessionService(st, nil, "")
	engine := NewClaimEngine(st, &fakeNotifier{})
	ctx := context.Background()

	// assign in the past, beyond the TTL
	svc.now = func() time.Time { return time.Now().UTC().Add(-config.SessionTTL - time.Minute) }
	assigned, err := svc.Assign(ctx, "u1", entities.TierStandard, false)
	require.NoError(t, err)

	outcome, err := engine.HandleNotification(ctx, paymentConfirmed(assigned.Session.ExactAmountDue))
	require.NoError(t, err)
	assert.False(t, outcome.Matched)
	assert.Equal(t, "no_pending_match", outcome.Reason)

	// the sweep moved it to expired
	got, err := st.GetSession(ctx, assigned.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusExpired, got.Status)

	account, err := st.GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, account.Credits)
}

func TestSweepExpired_CountsOnlyStale(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	svc := NewSessionService(st, nil, "")
	engine := NewClaimEngine(st, &fakeNotifier{})
	ctx := context.Background()

	svc.now = func() time.Time { return time.Now().UTC().Add(-config.SessionTTL - time.Minute) }
	_, err := svc.Assign(ctx, "u1", entities.TierBase, false)
	require.NoError(t, err)

	n, err := engine.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = engine.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
