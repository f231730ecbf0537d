package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

type SessionStatus string

const (
	StatusPending   SessionStatus = "pending"
	StatusPaid      SessionStatus = "paid"
	StatusExpired   SessionStatus = "expired"
	StatusCancelled SessionStatus = "cancelled"
)

// PaymentSession reserves one exact centavo amount for one purchase.
// Among all sessions currently pending, ExactAmountDue is unique across
// the whole system, which is what lets a bare bank notification be matched
// back to a user.
type PaymentSession struct {
	ID             string
	UserID         string
	Tier           Tier
	ExactAmountDue int64 // centavos
	CreditsToGrant int64
	Status         SessionStatus
	CreatedAt      time.Time
	PaidAt         *time.Time
}

// RemainingSeconds recomputes the live TTL from CreatedAt.
func (s *PaymentSession) RemainingSeconds(now time.Time, ttl time.Duration) int64 {
	remaining := int64(s.CreatedAt.Add(ttl).Sub(now).Seconds())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// CreditLedgerEntry is an append-only record of a balance change.
type CreditLedgerEntry struct {
	ID            string
	UserID        string
	EntryType     string
	DisplayAmount string
	CreditsDelta  int64
	CreatedAt     time.Time
}

// WebhookAuditEntry holds event metadata only; raw notification bodies are
// never persisted.
type WebhookAuditEntry struct {
	ID         string
	EventType  string
	Outcome    string
	ReceivedAt time.Time
}

type Account struct {
	UserID          string
	Credits         int64
	ActiveTier      Tier
	TierLockedUntil *time.Time
	DailyUsage      int64
}

// DisplayAmount formats centavos as a major.minor string, e.g. 1990 -> "19.90".
func DisplayAmount(centavos int64) string {
	return decimal.New(centavos, -2).StringFixed(2)
}
