package services

import (
	"context"

	"centavo-service/internal/dtos"
	"centavo-service/internal/entities"
)

type SessionsInterface interface {
	Assign(ctx context.Context, userID string, tier entities.Tier, mobile bool) (*AssignResult, error)
	SessionStatus(ctx context.Context, userID, sessionID string) (*entities.PaymentSession, error)
	RecoverPending(ctx context.Context, userID string) (*entities.PaymentSession, error)
	SubmitManualReference(ctx context.Context, userID, reference string) error
}

type ClaimEngineInterface interface {
	HandleNotification(ctx context.Context, envelope *dtos.WebhookEnvelope) (*ClaimOutcome, error)
	SweepExpired(ctx context.Context) (int64, error)
}
