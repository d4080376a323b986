package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"spaceremit/internal/config"
	apperrors "spaceremit/internal/errors"
	"spaceremit/internal/gateway"
	"spaceremit/internal/model"
	"spaceremit/internal/repository"
	"spaceremit/internal/service"
)

// formPaymentCodeField is the form field SpaceRemit's payment page posts back
// to the store. Its presence distinguishes a browser form return from a
// server-to-server webhook.
const formPaymentCodeField = "SP_payment_code"

// PaymentChecker verifies a payment against the gateway.
type PaymentChecker interface {
	CheckPayment(ctx context.Context, paymentID string, expected gateway.Expected) (*gateway.PaymentData, error)
}

// CallbackHandler dispatches the three inbound SpaceRemit trigger shapes:
// webhook POST (JSON in, JSON out), browser form return (form in, redirect
// out), and browser GET return (redirect out). All status changes funnel
// through the reconciliation service.
type CallbackHandler struct {
	cfg        *config.Config
	verifier   PaymentChecker
	reconciler service.ReconcileService
	orderRepo  repository.OrderRepository
	logger     zerolog.Logger
}

// NewCallbackHandler creates a new callback handler.
func NewCallbackHandler(
	cfg *config.Config,
	verifier PaymentChecker,
	reconciler service.ReconcileService,
	orderRepo repository.OrderRepository,
	logger zerolog.Logger,
) *CallbackHandler {
	return &CallbackHandler{
		cfg:        cfg,
		verifier:   verifier,
		reconciler: reconciler,
		orderRepo:  orderRepo,
		logger:     logger.With().Str("component", "callback").Logger(),
	}
}

// webhookPayload is the JSON body SpaceRemit posts server-to-server.
type webhookPayload struct {
	Data struct {
		ID        string `json:"id"`
		StatusTag string `json:"status_tag"`
	} `json:"data"`
}

// FormReturnRequest is the browser form return posted from the payment page.
type FormReturnRequest struct {
	PaymentCode string `form:"SP_payment_code" validate:"required"`
	OrderID     uint64 `form:"order_id" validate:"required"`
}

// HandlePost godoc
// @Summary SpaceRemit payment callback (webhook or browser form return)
// @Tags callback
// @Accept json
// @Accept x-www-form-urlencoded
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /spaceremit/callback [post]
func (h *CallbackHandler) HandlePost(c echo.Context) error {
	// A POST carrying the payment-code form field is the browser coming back
	// from the payment page; anything else is a server-to-server webhook.
	if c.FormValue(formPaymentCodeField) != "" {
		return h.handleFormReturn(c)
	}
	return h.handleWebhook(c)
}

// handleWebhook processes a server-to-server notification. It responds with
// JSON only, never HTML.
func (h *CallbackHandler) handleWebhook(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, apperrors.ErrorResponse{Error: "Bad Request", Message: "unreadable body"})
	}

	if h.cfg.WebhookSecret != "" {
		sig := c.Request().Header.Get(gateway.SignatureHeader)
		if !gateway.VerifySignature(h.cfg.WebhookSecret, body, sig) {
			h.logger.Error().Bool("has_signature", sig != "").Msg("webhook signature validation failed")
			return c.JSON(http.StatusUnauthorized, apperrors.ErrorResponse{Error: "Unauthorized", Message: apperrors.ErrSignatureMismatch.Error()})
		}
	} else if h.cfg.WebhookRequireSignature {
		// Strict mode: unsigned webhooks are rejected outright.
		h.logger.Error().Msg("webhook rejected: signature required but no secret configured")
		return c.JSON(http.StatusUnauthorized, apperrors.ErrorResponse{Error: "Unauthorized", Message: apperrors.ErrSignatureRequired.Error()})
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.logger.Error().Err(err).Msg("webhook: invalid JSON")
		return c.JSON(http.StatusBadRequest, apperrors.ErrorResponse{Error: "Invalid JSON data", Message: err.Error()})
	}

	paymentID := payload.Data.ID
	if paymentID == "" {
		return c.JSON(http.StatusBadRequest, apperrors.ErrorResponse{Error: "Bad Request", Message: "Missing payment ID"})
	}

	order, err := h.reconciler.ResolveOrderByPaymentID(ctx, paymentID)
	if err != nil {
		if err == apperrors.ErrOrderNotFound {
			h.logger.Warn().Str("payment_id", paymentID).Msg("webhook: order not found")
			return c.JSON(http.StatusNotFound, apperrors.ErrorResponse{Error: "Not Found", Message: "Order not found for payment ID: " + paymentID})
		}
		httpErr := apperrors.MapErrorToHTTP(err)
		return c.JSON(httpErr.StatusCode, httpErr.ToErrorResponse())
	}

	tag := model.StatusTag(payload.Data.StatusTag)
	if processed, err := h.reconciler.AlreadyProcessed(ctx, paymentID, tag); err == nil && processed {
		h.logger.Info().Str("payment_id", paymentID).Uint64("order_id", order.ID).Msg("webhook already processed")
		return c.JSON(http.StatusOK, echo.Map{
			"status":   "success",
			"message":  "Already processed",
			"order_id": order.ID,
		})
	}

	payment, err := h.verifier.CheckPayment(ctx, paymentID, gateway.Expected{})
	if err != nil {
		h.logger.Error().Err(err).Str("payment_id", paymentID).Msg("webhook: payment verification failed")
		return c.JSON(http.StatusBadRequest, apperrors.ErrorResponse{Error: "Verification Failed", Message: err.Error()})
	}

	outcome, err := h.reconciler.Apply(ctx, order, payment, body)
	if err != nil {
		httpErr := apperrors.MapErrorToHTTP(err)
		return c.JSON(httpErr.StatusCode, httpErr.ToErrorResponse())
	}

	resp := echo.Map{
		"status":       "success",
		"message":      "Webhook processed successfully",
		"order_id":     outcome.OrderID,
		"payment_id":   paymentID,
		"order_status": outcome.OrderStatus,
	}
	if outcome.Warning != "" {
		resp["warning"] = outcome.Warning
	}
	return c.JSON(http.StatusOK, resp)
}

// handleFormReturn processes the browser coming back from the payment page.
// It responds with a redirect, never JSON.
func (h *CallbackHandler) handleFormReturn(c echo.Context) error {
	ctx := c.Request().Context()

	var req FormReturnRequest
	if err := c.Bind(&req); err != nil {
		return c.String(http.StatusBadRequest, "Invalid payment data.")
	}
	if err := c.Validate(&req); err != nil {
		return c.String(http.StatusBadRequest, "Invalid payment data.")
	}

	order, err := h.orderRepo.FindByID(ctx, req.OrderID)
	if err != nil {
		h.logger.Error().Err(err).Uint64("order_id", req.OrderID).Msg("form return: order not found")
		return c.String(http.StatusNotFound, "Order not found.")
	}

	total := order.Total
	expected := gateway.Expected{
		Currency:   order.Currency,
		Amount:     &total,
		StatusTags: model.AcceptableTags(h.cfg.TestMode),
	}

	payment, err := h.verifier.CheckPayment(ctx, req.PaymentCode, expected)
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("payment_code", req.PaymentCode).
			Uint64("order_id", order.ID).
			Msg("form return: payment verification failed")
		h.addNote(ctx, order.ID, "SpaceRemit payment verification failed: "+err.Error())
		return c.Redirect(http.StatusFound, h.cfg.OrderCancelURL(order.ID))
	}

	if _, err := h.reconciler.Apply(ctx, order, payment, rawPayloadOf(payment)); err != nil {
		h.logger.Error().Err(err).Uint64("order_id", order.ID).Msg("form return: reconciliation failed")
		h.addNote(ctx, order.ID, "SpaceRemit payment could not be recorded: "+err.Error())
		return c.Redirect(http.StatusFound, h.cfg.OrderCancelURL(order.ID))
	}

	return c.Redirect(http.StatusFound, h.redirectTarget(order, payment.StatusTag))
}

// HandleGet godoc
// @Summary SpaceRemit browser GET return
// @Tags callback
// @Success 302
// @Router /spaceremit/callback [get]
func (h *CallbackHandler) HandleGet(c echo.Context) error {
	ctx := c.Request().Context()

	paymentID := c.QueryParam(formPaymentCodeField)
	if paymentID == "" {
		paymentID = c.QueryParam("payment_id")
	}
	orderID, _ := strconv.ParseUint(c.QueryParam("order_id"), 10, 64)

	order := h.resolveOrder(ctx, orderID, paymentID)
	if order == nil {
		h.logger.Warn().
			Str("payment_id", paymentID).
			Uint64("order_id", orderID).
			Msg("get return: order not found")
		return c.Redirect(http.StatusFound, h.cfg.CheckoutURL())
	}

	// Opportunistic resync when the security token checks out; a failure here
	// never blocks the redirect.
	key := c.QueryParam("key")
	keyOK := key == "" || subtle.ConstantTimeCompare([]byte(order.OrderKey), []byte(key)) == 1
	if keyOK && paymentID != "" {
		if payment, err := h.verifier.CheckPayment(ctx, paymentID, gateway.Expected{}); err == nil {
			if _, err := h.reconciler.Apply(ctx, order, payment, rawPayloadOf(payment)); err != nil {
				h.logger.Warn().Err(err).Uint64("order_id", order.ID).Msg("get return: resync failed")
			}
		}
	}

	return c.Redirect(http.StatusFound, h.cfg.OrderReceivedURL(order.ID, order.OrderKey))
}

func (h *CallbackHandler) resolveOrder(ctx context.Context, orderID uint64, paymentID string) *model.Order {
	if orderID != 0 {
		order, err := h.orderRepo.FindByID(ctx, orderID)
		if err == nil {
			return order
		}
		if err != gorm.ErrRecordNotFound {
			h.logger.Warn().Err(err).Uint64("order_id", orderID).Msg("get return: order lookup failed")
		}
	}
	if paymentID != "" {
		order, err := h.reconciler.ResolveOrderByPaymentID(ctx, paymentID)
		if err == nil {
			return order
		}
	}
	return nil
}

func (h *CallbackHandler) redirectTarget(order *model.Order, tag model.StatusTag) string {
	switch {
	case tag.Paid():
		return h.cfg.OrderReceivedURL(order.ID, order.OrderKey)
	case tag == model.TagFailed, tag == model.TagRefused, tag == model.TagExpired:
		return h.cfg.OrderCancelURL(order.ID)
	default:
		// Still pending or processing: send the shopper back to the payment page.
		return h.cfg.OrderPaymentURL(order.ID)
	}
}

func (h *CallbackHandler) addNote(ctx context.Context, orderID uint64, note string) {
	if err := h.orderRepo.AddNote(ctx, orderID, note); err != nil {
		h.logger.Warn().Err(err).Uint64("order_id", orderID).Msg("failed to add order note")
	}
}

func rawPayloadOf(payment *gateway.PaymentData) []byte {
	if payment.Raw == nil {
		return nil
	}
	raw, err := json.Marshal(payment.Raw)
	if err != nil {
		return nil
	}
	return raw
}
