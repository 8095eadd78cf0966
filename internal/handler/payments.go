package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/yhwh80/freelance-marketplace/internal/payment"
	"github.com/yhwh80/freelance-marketplace/internal/service"
)

// maxWebhookBody caps the payload read from the provider.
const maxWebhookBody = 1 << 16

// PaymentHandler serves the credit catalog, checkout and the provider
// webhook.
type PaymentHandler struct {
	Payments       *service.PaymentService
	PublishableKey string
	Log            *zap.Logger
}

func NewPaymentHandler(p *service.PaymentService, publishableKey string, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{Payments: p, PublishableKey: publishableKey, Log: log}
}

type checkoutReq struct {
	PackageID string `json:"packageId"`
	UserID    string `json:"userId"`
}

type verifyReq struct {
	SessionID string `json:"sessionId"`
}

// Packages handles GET /credit-packages.
func (h *PaymentHandler) Packages(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"packages":        h.Payments.Packages(),
		"currency":        payment.Currency,
		"publishable_key": h.PublishableKey,
	})
}

// Checkout handles POST /checkout-session.
func (h *PaymentHandler) Checkout(c echo.Context) error {
	uid, err := callerID(c)
	if uid == "" {
		return err
	}
	var req checkoutReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	id, err := h.Payments.Checkout(ctx, uid, service.CheckoutInput{PackageID: req.PackageID, UserID: req.UserID})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"sessionId": id})
}

// Verify handles POST /verify-payment.
func (h *PaymentHandler) Verify(c echo.Context) error {
	uid, err := callerID(c)
	if uid == "" {
		return err
	}
	var req verifyReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	v, err := h.Payments.Verify(ctx, uid, req.SessionID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, v)
}

// Webhook handles POST /payment-webhook.  The raw body is needed for
// signature verification, so it is read before any binding.
func (h *PaymentHandler) Webhook(c echo.Context) error {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Response(), c.Request().Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": "payload too large"})
		}
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable body"})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Payments.HandleWebhook(ctx, payload, c.Request().Header.Get("Stripe-Signature")); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"received": true})
}
