package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	internalErrors "centavo-service/internal/errors"
)

const signatureHeader = "Gateway-Signature"

// verifyWebhookSignature authenticates a raw webhook delivery. The header
// carries a timestamp and one or more signature variants:
//
//	t=1724990400,v1=5257a8...,v2=9bf0c3...
//
// The signed string is "{timestamp}.{rawBody}" under HMAC-SHA256 with the
// shared secret; any variant may match. Every failure collapses into
// ErrBadSignature so callers cannot leak which check tripped, and nothing
// touches persistence before this returns nil.
func verifyWebhookSignature(header string, body []byte, secret string) error {
	if header == "" {
		return internalErrors.ErrBadSignature
	}

	var timestamp string
	var candidates []string
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || value == "" {
			return internalErrors.ErrBadSignature
		}
		if key == "t" {
			timestamp = value
			continue
		}
		if strings.HasPrefix(key, "v") {
			candidates = append(candidates, value)
		}
	}
	if timestamp == "" || len(candidates) == 0 {
		return internalErrors.ErrBadSignature
	}

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s.%s", timestamp, body)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, candidate := range candidates {
		if hmac.Equal([]byte(expected), []byte(strings.ToLower(candidate))) {
			return nil
		}
	}
	return internalErrors.ErrBadSignature
}
