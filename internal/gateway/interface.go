package gateway

import "context"

type PaymentGatewayInterface interface {
	CreateRedirectLink(ctx context.Context, sessionID string, amountCentavos int64) (string, error)
	Healthcheck(ctx context.Context) error
}
