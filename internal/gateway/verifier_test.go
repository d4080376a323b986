package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "spaceremit/internal/errors"
	"spaceremit/internal/model"
)

func verifierFor(t *testing.T, response map[string]interface{}) *Verifier {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(response)
	}))
	t.Cleanup(server.Close)

	c := testClient(t, server.URL, false)
	c.backoff = func(int) time.Duration { return 0 }
	return NewVerifier(c, zerolog.Nop())
}

func successResponse(data map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"response_status": "success",
		"data":            data,
	}
}

func TestVerifier_CheckPayment_EmptyID(t *testing.T) {
	v := verifierFor(t, successResponse(map[string]interface{}{"id": "pay_1"}))

	_, err := v.CheckPayment(context.Background(), "", Expected{})

	assert.ErrorIs(t, err, apperrors.ErrInvalidPaymentID)
}

func TestVerifier_CheckPayment_RemoteRejected(t *testing.T) {
	v := verifierFor(t, map[string]interface{}{
		"response_status": "failed",
		"message":         "payment not found",
	})

	_, err := v.CheckPayment(context.Background(), "pay_1", Expected{})

	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, "payment not found", remoteErr.Message)
}

func TestVerifier_CheckPayment_EmptyData(t *testing.T) {
	v := verifierFor(t, map[string]interface{}{"response_status": "success"})

	_, err := v.CheckPayment(context.Background(), "pay_1", Expected{})

	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Contains(t, remoteErr.Message, "no payment data")
}

func TestVerifier_CheckPayment_ParsesPaymentData(t *testing.T) {
	v := verifierFor(t, successResponse(map[string]interface{}{
		"id":              "pay_1",
		"status_tag":      "A",
		"original_amount": "25.00",
		"currency":        "USD",
		"payment_method":  "card",
		"payer_name":      "Ada Lovelace",
		"payer_email":     "ada@example.com",
	}))

	pd, err := v.CheckPayment(context.Background(), "pay_1", Expected{})

	require.NoError(t, err)
	assert.Equal(t, "pay_1", pd.ID)
	assert.Equal(t, model.TagApproved, pd.StatusTag)
	assert.True(t, pd.OriginalAmount.Equal(decimal.NewFromFloat(25.00)))
	assert.Equal(t, "USD", pd.Currency)
	assert.Equal(t, "card", pd.PaymentMethod)
	assert.Equal(t, "Ada Lovelace", pd.PayerName)
	assert.NotNil(t, pd.Raw)
}

func TestVerifier_CheckPayment_AmountTolerance(t *testing.T) {
	expectedAmount := decimal.NewFromFloat(10.00)

	tests := []struct {
		name       string
		actual     interface{}
		shouldPass bool
	}{
		{"exact match passes", "10.00", true},
		{"one cent over passes", "10.01", true},
		{"one cent under passes", "9.99", true},
		{"two cents over fails", "10.02", false},
		{"two cents under fails", "9.98", false},
		{"numeric amount within tolerance", 10.01, true},
		{"gross mismatch fails", "30.00", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := verifierFor(t, successResponse(map[string]interface{}{
				"id":              "pay_1",
				"status_tag":      "A",
				"original_amount": tt.actual,
				"currency":        "USD",
			}))

			_, err := v.CheckPayment(context.Background(), "pay_1", Expected{Amount: &expectedAmount})

			if tt.shouldPass {
				assert.NoError(t, err)
			} else {
				var valErr *ValidationError
				require.ErrorAs(t, err, &valErr)
				assert.Equal(t, "original_amount", valErr.Field)
			}
		})
	}
}

func TestVerifier_CheckPayment_CurrencyMismatch(t *testing.T) {
	v := verifierFor(t, successResponse(map[string]interface{}{
		"id":              "pay_1",
		"status_tag":      "A",
		"original_amount": "25.00",
		"currency":        "EUR",
	}))

	_, err := v.CheckPayment(context.Background(), "pay_1", Expected{Currency: "USD"})

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "currency", valErr.Field)
	assert.Equal(t, "USD", valErr.Expected)
	assert.Equal(t, "EUR", valErr.Actual)
}

func TestVerifier_CheckPayment_StatusTagMembership(t *testing.T) {
	tests := []struct {
		name       string
		tag        string
		acceptable []model.StatusTag
		shouldPass bool
	}{
		{"tag in set passes", "A", model.AcceptableTags(false), true},
		{"test tag rejected in live mode", "T", model.AcceptableTags(false), false},
		{"test tag accepted in test mode", "T", model.AcceptableTags(true), true},
		{"refused tag not acceptable on form return", "C", model.AcceptableTags(false), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := verifierFor(t, successResponse(map[string]interface{}{
				"id":         "pay_1",
				"status_tag": tt.tag,
			}))

			_, err := v.CheckPayment(context.Background(), "pay_1", Expected{StatusTags: tt.acceptable})

			if tt.shouldPass {
				assert.NoError(t, err)
			} else {
				var valErr *ValidationError
				require.ErrorAs(t, err, &valErr)
				assert.Equal(t, "status_tag", valErr.Field)
			}
		})
	}
}

func TestVerifier_CheckPayment_APIFailurePropagated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer server.Close()

	c := testClient(t, server.URL, false)
	v := NewVerifier(c, zerolog.Nop())

	_, err := v.CheckPayment(context.Background(), "pay_1", Expected{})

	var apiErr *APIError
	assert.ErrorAs(t, err, &apiErr)
}
