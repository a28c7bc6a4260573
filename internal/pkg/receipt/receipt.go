package receipt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/TranslaFox/internal/pkg/env"
)

// ValidPhrase is what the validator answers for an acceptable receipt.
const ValidPhrase = "The proof of payment is valid."

// Request is posted to the validator webhook.
type Request struct {
	ReceiptURL string  `json:"receipt_url"`
	Amount     float64 `json:"amount"`
	PaymentID  uint    `json:"payment_id"`
}

// Result carries the validator outcome. Valid is false on any failure.
type Result struct {
	Valid      bool
	StatusCode int
	Body       string
	Err        error
}

// Validator calls the external payment-receipt validation webhook
type Validator struct {
	URL         string
	BearerToken string
	HTTPClient  *http.Client
}

func NewValidatorFromEnv() *Validator {
	return &Validator{
		URL:         strings.TrimSpace(env.GetEnv("RECEIPT_VALIDATOR_URL", "")),
		BearerToken: strings.TrimSpace(env.GetEnv("WEBHOOK_BEARER_TOKEN", "")),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Validate never returns an error: transport failures, non-2xx answers and
// answers without the valid phrase all produce an invalid Result.
func (v *Validator) Validate(ctx context.Context, req Request) Result {
	if v.URL == "" {
		return Result{Err: errors.New("RECEIPT_VALIDATOR_URL is not configured")}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return Result{Err: err}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, v.URL, bytes.NewReader(payload))
	if err != nil {
		return Result{Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if v.BearerToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+v.BearerToken)
	}

	client := v.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		log.Warnf("[Receipt] Validator call for payment %d failed: %v", req.PaymentID, err)
		return Result{Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	res := Result{StatusCode: resp.StatusCode, Body: string(body)}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		res.Err = fmt.Errorf("validator returned status %d", resp.StatusCode)
		return res
	}
	res.Valid = IsValidProof(body)
	return res
}

// IsValidProof matches the valid phrase case-insensitively, either anywhere in
// the raw body or inside a JSON "response" field.
func IsValidProof(body []byte) bool {
	needle := strings.ToLower(ValidPhrase)
	if strings.Contains(strings.ToLower(string(body)), needle) {
		return true
	}

	var wrapped struct {
		Response json.RawMessage `json:"response"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil || len(wrapped.Response) == 0 {
		return false
	}
	var text string
	if err := json.Unmarshal(wrapped.Response, &text); err != nil {
		text = string(wrapped.Response)
	}
	return strings.Contains(strings.ToLower(text), needle)
}
