package store

import (
	"context"
	"time"

	"centavo-service/internal/entities"
)

type PaymentStoreInterface interface {
	TryReserveAmount(ctx context.Context, session *entities.PaymentSession) (bool, error)
	ClaimByAmount(ctx context.Context, amount int64, createdAfter time.Time) (*entities.PaymentSession, error)
	ExpireStale(ctx context.Context, createdBefore time.Time) (int64, error)
	GetSession(ctx context.Context, id string) (*entities.PaymentSession, error)
	LatestPending(ctx context.Context, userID string) (*entities.PaymentSession, error)
	ApplyFulfillment(ctx context.Context, session *entities.PaymentSession, lockUntil *time.Time) error
	GetAccount(ctx context.Context, userID string) (*entities.Account, error)
	InsertManualReference(ctx context.Context, userID, reference string) error
	InsertAudit(ctx context.Context, eventType, outcome string) error
}
