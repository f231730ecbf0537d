package server

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"

	internalErrors "centavo-service/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_test"

func signBody(t *testing.T, secret, timestamp string, body []byte) string {
	t.Helper()

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s.%s", timestamp, body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhookSignature_Valid(t *testing.T) {
	t.Parallel()

	body := []byte(`{"event":"payment.confirmed"}`)
	sig := signBody(t, testSecret, "1724990400", body)

	header := "t=1724990400,v1=" + sig
	require.NoError(t, verifyWebhookSignature(header, body, testSecret))
}

func TestVerifyWebhookSignature_AnyVariantMayMatch(t *testing.T) {
	t.Parallel()

	body := []byte(`{"event":"payment.confirmed"}`)
	sig := signBody(t, testSecret, "1724990400", body)

	header := "t=1724990400,v1=" + "deadbeef" + ",v2=" + sig
	require.NoError(t, verifyWebhookSignature(header, body, testSecret))
}

func TestVerifyWebhookSignature_UppercaseHexAccepted(t *testing.T) {
	t.Parallel()

	body := []byte(`{}`)
	sig := signBody(t, testSecret, "42", body)

	var upper []byte
	for _, c := range []byte(sig) {
		if c >= 'a' && c <= 'f' {
			c -= 'a' - 'A'
		}
		upper = append(upper, c)
	}
	require.NoError(t, verifyWebhookSignature("t=42,v1="+string(upper), body, testSecret))
}

func TestVerifyWebhookSignature_Rejections(t *testing.T) {
	t.Parallel()

	body := []byte(`{"event":"payment.confirmed"}`)
	sig := signBody(t, testSecret, "1724990400", body)

	cases := map[string]string{
		"missing header":      "",
		"no timestamp":        "v1=" + sig,
		"no variants":         "t=1724990400",
		"empty value":         "t=1724990400,v1=",
		"unparseable":         "garbage",
		"tampered signature":  "t=1724990400,v1=" + sig[:len(sig)-2] + "ff",
		"tampered timestamp":  "t=1724990401,v1=" + sig,
		"signature for other": "t=1724990400,v1=" + signBody(t, "other-secret", "1724990400", body),
	}
	for name, header := range cases {
		err := verifyWebhookSignature(header, body, testSecret)
		assert.ErrorIs(t, err, internalErrors.ErrBadSignature, name)
	}
}

func TestVerifyWebhookSignature_BodyTamper(t *testing.T) {
	t.Parallel()

	body := []byte(`{"event":"payment.confirmed","data":{"payment":{"amount":1990}}}`)
	sig := signBody(t, testSecret, "1724990400", body)

	tampered := []byte(`{"event":"payment.confirmed","data":{"payment":{"amount":9990}}}`)
	err := verifyWebhookSignature("t=1724990400,v1="+sig, tampered, testSecret)
	assert.ErrorIs(t, err, internalErrors.ErrBadSignature)
}

func TestHMACTokenVerifier_RoundTripAndTamper(t *testing.T) {
	t.Parallel()

	v := NewHMACTokenVerifier("token-secret")

	token := v.Token("user-42")
	userID, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", userID)

	_, err = v.Verify(context.Background(), token+"ff")
	assert.Error(t, err)
	_, err = v.Verify(context.Background(), "no-separator")
	assert.Error(t, err)
	_, err = v.Verify(context.Background(), "")
	assert.Error(t, err)
}
