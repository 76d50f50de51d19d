package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mystronium-backend-go/internal/core"
	"mystronium-backend-go/internal/middleware"
	"mystronium-backend-go/internal/models"
)

const (
	signatureHeader = "Stripe-Signature"
	// maxPayloadBytes bounds webhook and direct-call bodies.
	maxPayloadBytes = 65536
)

// BillingHandler serves the billing endpoint: signed provider webhooks and
// direct session-creation calls.
type BillingHandler struct {
	billingService core.BillingService
	userService    core.UserService
	hardened       bool
	logger         *zap.Logger
}

// NewBillingHandler creates a new BillingHandler. With hardened set, unsigned
// calls to the public endpoint are rejected.
func NewBillingHandler(bs core.BillingService, us core.UserService, hardened bool, logger *zap.Logger) *BillingHandler {
	return &BillingHandler{
		billingService: bs,
		userService:    us,
		hardened:       hardened,
		logger:         logger,
	}
}

// mapBillingErrorToStatus writes the response for an error from the billing services.
func (h *BillingHandler) mapBillingErrorToStatus(c *gin.Context, err error) {
	var statusCode int
	var errResponse ErrorResponse

	switch {
	case errors.Is(err, core.ErrMissingSignature):
		statusCode = http.StatusBadRequest
		errResponse = ErrorResponse{Error: "Missing signature"}
	case errors.Is(err, core.ErrInvalidSignature):
		statusCode = http.StatusBadRequest
		errResponse = ErrorResponse{Error: "Invalid signature"}
	case errors.Is(err, core.ErrInvalidPayload):
		statusCode = http.StatusBadRequest
		errResponse = ErrorResponse{Error: "Invalid payload"}
	case errors.Is(err, core.ErrInvalidAction):
		statusCode = http.StatusBadRequest
		errResponse = ErrorResponse{Error: "Invalid action"}
	case errors.Is(err, core.ErrInvalidRequest):
		statusCode = http.StatusBadRequest
		errResponse = ErrorResponse{Error: "Invalid request", Message: err.Error()}
	case errors.Is(err, core.ErrUserNotFound):
		statusCode = http.StatusNotFound
		errResponse = ErrorResponse{Error: "User not found"}
	case errors.Is(err, core.ErrUpstream):
		statusCode = http.StatusInternalServerError
		errResponse = ErrorResponse{Error: "Webhook processing failed", Message: "payment provider error"}
	case errors.Is(err, core.ErrPersistence):
		statusCode = http.StatusInternalServerError
		errResponse = ErrorResponse{Error: "Webhook processing failed", Message: "user store error"}
	default:
		statusCode = http.StatusInternalServerError
		errResponse = ErrorResponse{Error: "Webhook processing failed", Message: "internal error"}
	}
	if statusCode >= http.StatusInternalServerError {
		h.logger.Error("Billing request failed", zap.Error(err), zap.String("path", c.Request.URL.Path))
	}
	c.Error(err)
	c.JSON(statusCode, errResponse)
}

// HandleBilling handles POST /api/v1/billing. A Stripe-Signature header,
// even an empty one, selects the webhook class.
func (h *BillingHandler) HandleBilling(c *gin.Context) {
	payload, err := readBody(c)
	if err != nil {
		h.mapBillingErrorToStatus(c, err)
		return
	}

	if _, signed := c.Request.Header[http.CanonicalHeaderKey(signatureHeader)]; signed {
		h.handleWebhook(c, payload)
		return
	}
	if h.hardened {
		h.mapBillingErrorToStatus(c, core.ErrMissingSignature)
		return
	}

	var req models.BillingActionRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		h.mapBillingErrorToStatus(c, core.ErrInvalidAction)
		return
	}
	h.dispatchAction(c, req)
}

func (h *BillingHandler) handleWebhook(c *gin.Context, payload []byte) {
	if err := h.billingService.HandleWebhook(c.Request.Context(), payload, c.GetHeader(signatureHeader)); err != nil {
		h.mapBillingErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, WebhookReceivedResponse{Received: true})
}

// CreateSession handles POST /api/v1/billing/sessions for authenticated users.
// The user ID always comes from the verified token; the portal is opened for
// the caller's own linked customer.
func (h *BillingHandler) CreateSession(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserIDKey)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "User ID not found in context"})
		return
	}

	var req models.BillingActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.mapBillingErrorToStatus(c, core.ErrInvalidAction)
		return
	}
	req.UserID = userID

	if req.Action == models.ActionCreatePortalSession {
		user, err := h.userService.GetSubscription(c.Request.Context(), userID)
		if err != nil {
			h.mapBillingErrorToStatus(c, err)
			return
		}
		if user.StripeCustomerID == "" {
			h.mapBillingErrorToStatus(c, fmt.Errorf("%w: no billing account linked", core.ErrInvalidRequest))
			return
		}
		req.CustomerID = user.StripeCustomerID
	}
	h.dispatchAction(c, req)
}

func (h *BillingHandler) dispatchAction(c *gin.Context, req models.BillingActionRequest) {
	ctx := c.Request.Context()
	switch req.Action {
	case models.ActionCreateCheckoutSession:
		sessionID, err := h.billingService.CreateCheckoutSession(ctx, models.CheckoutSessionRequest{
			PriceID:    req.PriceID,
			UserID:     req.UserID,
			SuccessURL: req.SuccessURL,
			CancelURL:  req.CancelURL,
		})
		if err != nil {
			h.mapBillingErrorToStatus(c, err)
			return
		}
		c.JSON(http.StatusOK, CheckoutSessionResponse{SessionID: sessionID})
	case models.ActionCreatePortalSession:
		url, err := h.billingService.CreatePortalSession(ctx, models.PortalSessionRequest{
			CustomerID: req.CustomerID,
			ReturnURL:  req.ReturnURL,
		})
		if err != nil {
			h.mapBillingErrorToStatus(c, err)
			return
		}
		c.JSON(http.StatusOK, PortalSessionResponse{URL: url})
	default:
		h.mapBillingErrorToStatus(c, core.ErrInvalidAction)
	}
}

// Options handles OPTIONS /api/v1/billing.
func (h *BillingHandler) Options(c *gin.Context) {
	c.Status(http.StatusOK)
}

func readBody(c *gin.Context) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPayloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", core.ErrInvalidPayload, err)
	}
	if len(body) > maxPayloadBytes {
		return nil, core.ErrInvalidPayload
	}
	return body, nil
}
