package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	apperrors "spaceremit/internal/errors"
	"spaceremit/internal/model"
)

// amountTolerance absorbs rounding differences between the order total and
// the amount echoed back by the gateway.
var amountTolerance = decimal.NewFromFloat(0.01)

// PaymentData is the verified detail of one payment attempt as reported by
// the SpaceRemit API.
type PaymentData struct {
	ID             string
	StatusTag      model.StatusTag
	OriginalAmount decimal.Decimal
	Currency       string
	PaymentMethod  string
	PayerName      string
	PayerEmail     string
	Raw            map[string]interface{}
}

// Expected constrains what a verified payment must look like. Zero-value
// fields are not checked.
type Expected struct {
	Currency   string
	Amount     *decimal.Decimal
	StatusTags []model.StatusTag
}

// ValidationError reports a mismatch between expected order data and the
// payment the gateway returned. A partial match is never applied.
type ValidationError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s, expected: %s", e.Field, e.Actual, e.Expected)
}

// RemoteError reports that the gateway answered but rejected the lookup.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// Verifier checks payments against the SpaceRemit API and validates the
// returned fields against expected order data.
type Verifier struct {
	client *Client
	logger zerolog.Logger
}

// NewVerifier creates a payment verifier on top of the API client.
func NewVerifier(client *Client, logger zerolog.Logger) *Verifier {
	return &Verifier{
		client: client,
		logger: logger.With().Str("component", "payment_verifier").Logger(),
	}
}

// CheckPayment looks up paymentID at the gateway and validates the response
// against expected. On success it returns the raw payment data.
func (v *Verifier) CheckPayment(ctx context.Context, paymentID string, expected Expected) (*PaymentData, error) {
	if paymentID == "" {
		return nil, apperrors.ErrInvalidPaymentID
	}

	resp, err := v.client.Send(ctx, map[string]interface{}{"payment_id": paymentID})
	if err != nil {
		return nil, err
	}

	status, _ := resp["response_status"].(string)
	if status != "success" {
		msg, _ := resp["message"].(string)
		if msg == "" {
			msg = "payment verification failed"
		}
		v.logger.Warn().Str("payment_id", paymentID).Str("message", msg).Msg("payment check rejected by gateway")
		return nil, &RemoteError{Message: msg}
	}

	data, _ := resp["data"].(map[string]interface{})
	if len(data) == 0 {
		return nil, &RemoteError{Message: "no payment data received"}
	}

	pd := parsePaymentData(data)

	if expected.Currency != "" && pd.Currency != expected.Currency {
		return nil, &ValidationError{Field: "currency", Expected: expected.Currency, Actual: pd.Currency}
	}
	if len(expected.StatusTags) > 0 && !containsTag(expected.StatusTags, pd.StatusTag) {
		return nil, &ValidationError{
			Field:    "status_tag",
			Expected: "one of " + joinTags(expected.StatusTags),
			Actual:   string(pd.StatusTag),
		}
	}
	if expected.Amount != nil {
		if pd.OriginalAmount.Sub(*expected.Amount).Abs().GreaterThan(amountTolerance) {
			return nil, &ValidationError{
				Field:    "original_amount",
				Expected: expected.Amount.String(),
				Actual:   pd.OriginalAmount.String(),
			}
		}
	}

	v.logger.Info().
		Str("payment_id", paymentID).
		Str("status_tag", string(pd.StatusTag)).
		Msg("payment verification successful")
	return pd, nil
}

func parsePaymentData(data map[string]interface{}) *PaymentData {
	pd := &PaymentData{Raw: data}
	pd.ID, _ = data["id"].(string)
	if tag, ok := data["status_tag"].(string); ok {
		pd.StatusTag = model.StatusTag(tag)
	}
	pd.OriginalAmount = parseAmount(data["original_amount"])
	pd.Currency, _ = data["currency"].(string)
	pd.PaymentMethod, _ = data["payment_method"].(string)
	pd.PayerName, _ = data["payer_name"].(string)
	pd.PayerEmail, _ = data["payer_email"].(string)
	return pd
}

// parseAmount tolerates the gateway sending amounts as JSON numbers or strings.
func parseAmount(v interface{}) decimal.Decimal {
	switch val := v.(type) {
	case float64:
		return decimal.NewFromFloat(val)
	case string:
		if d, err := decimal.NewFromString(val); err == nil {
			return d
		}
	case json.Number:
		if d, err := decimal.NewFromString(val.String()); err == nil {
			return d
		}
	}
	return decimal.Zero
}

func containsTag(tags []model.StatusTag, tag model.StatusTag) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func joinTags(tags []model.StatusTag) string {
	parts := make([]string, len(tags))
	for i, t := range tags {
		parts[i] = string(t)
	}
	return strings.Join(parts, ", ")
}
