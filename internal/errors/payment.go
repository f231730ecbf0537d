package errors

import "errors"

var ErrInvalidTier = errors.New("unknown payment tier")
var ErrTierLocked = errors.New("active tier lock forbids this purchase")
var ErrAmountPoolExhausted = errors.New("no free centavo offset in the pending window")
var ErrNoMatchingSession = errors.New("no pending session matches the notified amount")
var ErrSessionNotFound = errors.New("payment session not found")
var ErrDuplicateReference = errors.New("manual reference already submitted")
var ErrInvalidReference = errors.New("malformed manual reference")
var ErrMissingWebhookSecret = errors.New("webhook secret is not configured")
var ErrBadSignature = errors.New("webhook signature missing or invalid")
