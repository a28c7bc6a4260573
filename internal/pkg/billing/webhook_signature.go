package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"hash"
	"strconv"
	"strings"
	"time"
)

// DefaultSignatureTolerance is the maximum age of a signed Stripe delivery.
const DefaultSignatureTolerance = 5 * time.Minute

var (
	ErrMissingSignature = errors.New("missing stripe signature")
	ErrInvalidSignature = errors.New("invalid stripe signature")
	ErrSignatureExpired = errors.New("stripe signature timestamp outside tolerance")
)

// VerifyStripeWebhookSignature checks a Stripe-Signature header of the form
// "t=<unix>,v1=<hex>[,v1=<hex>...]" against HMAC-SHA256("<t>.<payload>").
func VerifyStripeWebhookSignature(payload []byte, signatureHeader, webhookSecret string, now time.Time, tolerance time.Duration) error {
	header := strings.TrimSpace(signatureHeader)
	secret := strings.TrimSpace(webhookSecret)
	if header == "" || secret == "" {
		return ErrMissingSignature
	}

	var timestamp string
	var signatures [][]byte
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			timestamp = v
		case "v1":
			if sig, err := hex.DecodeString(strings.ToLower(v)); err == nil {
				signatures = append(signatures, sig)
			}
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return ErrInvalidSignature
	}

	unix, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	if tolerance > 0 {
		age := now.Sub(time.Unix(unix, 0))
		if age > tolerance || age < -tolerance {
			return ErrSignatureExpired
		}
	}

	signed := append([]byte(timestamp+"."), payload...)
	for _, sig := range signatures {
		if verifyHMAC(signed, sig, []byte(secret), sha256.New) {
			return nil
		}
	}
	return ErrInvalidSignature
}

// SignStripePayload builds a Stripe-Signature header value; used by tests and
// local tooling that replays webhooks.
func SignStripePayload(payload []byte, secret string, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + "."))
	mac.Write(payload)
	return "t=" + ts + ",v1=" + hex.EncodeToString(mac.Sum(nil))
}

func verifyHMAC(payload, expectedSig, secret []byte, hashFunc func() hash.Hash) bool {
	mac := hmac.New(hashFunc, secret)
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), expectedSig)
}
