package notify

import "context"

type PaidNotifierInterface interface {
	PublishPaid(ctx context.Context, sessionID string) error
	SubscribePaid(ctx context.Context, sessionID string) (<-chan string, func(), error)
}
