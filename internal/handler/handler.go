// Package handler contains the echo handlers.  Handlers bind and validate
// the request, call a service or repository under a request timeout, and
// map domain errors to HTTP statuses.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/yhwh80/freelance-marketplace/internal/middleware"
	"github.com/yhwh80/freelance-marketplace/internal/model"
	"github.com/yhwh80/freelance-marketplace/internal/service"
)

// requestTimeout bounds every store and provider call made for a request.
const requestTimeout = 5 * time.Second

func withTimeout(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// Validator adapts go-playground/validator to echo.Validator.
type Validator struct {
	v *validator.Validate
}

// NewValidator registers the domain tags on top of the built-in ones:
// role accepts the users.role values.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return model.ValidRole(fl.Field().String())
	})
	return &Validator{v: v}
}

// Validate returns a single readable error naming the first failing field.
func (cv *Validator) Validate(i interface{}) error {
	err := cv.v.Struct(i)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			return errors.New(field + " is required")
		case "email":
			return errors.New(field + " must be a valid email")
		case "oneof":
			return errors.New(field + " must be one of: " + fe.Param())
		case "role":
			return errors.New(field + " must be one of: client, freelancer, both")
		case "min", "gt":
			return errors.New(field + " is too small")
		case "max":
			return errors.New(field + " is too long")
		}
		return errors.New(field + " is invalid")
	}
	return err
}

// bindAndValidate decodes the body into req and validates its tags.  The
// returned error is already written as a 400 response.
func bindAndValidate(c echo.Context, req interface{}) (bool, error) {
	if err := c.Bind(req); err != nil {
		return false, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(req); err != nil {
		return false, c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	return true, nil
}

// statusFor maps the service error taxonomy to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrInvalidPackage),
		errors.Is(err, service.ErrInvalidSignature):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInsufficientCredits):
		return http.StatusPaymentRequired
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrJobClosed),
		errors.Is(err, service.ErrBidCapReached),
		errors.Is(err, service.ErrDuplicateBid),
		errors.Is(err, service.ErrDuplicateEvent):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeError renders err as {"error": msg}.  Internal failures are logged
// and never echoed to the client.
func writeError(c echo.Context, log *zap.Logger, err error) error {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
		msg = "internal error"
	}
	return c.JSON(status, echo.Map{"error": msg})
}

// callerID returns the authenticated user id; routes using it sit behind
// JWTAuth, so a miss is a wiring bug reported as 401.
func callerID(c echo.Context) (string, error) {
	id, ok := middleware.UserID(c)
	if !ok {
		return "", c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return id, nil
}
