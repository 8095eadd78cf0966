package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/yhwh80/freelance-marketplace/internal/repository"
	"github.com/yhwh80/freelance-marketplace/internal/service"
)

// AccountHandler serves the caller's own profile and dashboards.
type AccountHandler struct {
	Users  *repository.UserRepo
	Jobs   *service.JobService
	Bids   *service.BidService
	Ledger *service.Ledger
	Log    *zap.Logger
}

func NewAccountHandler(users *repository.UserRepo, jobs *service.JobService, bids *service.BidService,
	ledger *service.Ledger, log *zap.Logger) *AccountHandler {
	return &AccountHandler{Users: users, Jobs: jobs, Bids: bids, Ledger: ledger, Log: log}
}

// Me returns the caller's profile including the credit balance.
func (h *AccountHandler) Me(c echo.Context) error {
	uid, err := callerID(c)
	if uid == "" {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, u)
}

// MyJobs lists jobs posted by the caller.
func (h *AccountHandler) MyJobs(c echo.Context) error {
	uid, err := callerID(c)
	if uid == "" {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	items, err := h.Jobs.ListByClient(ctx, uid)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// MyBids lists the caller's bids with job title and status.
func (h *AccountHandler) MyBids(c echo.Context) error {
	uid, err := callerID(c)
	if uid == "" {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	items, err := h.Bids.ListByProfessional(ctx, uid)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// MyPurchases lists credit purchases applied to the caller's balance.
func (h *AccountHandler) MyPurchases(c echo.Context) error {
	uid, err := callerID(c)
	if uid == "" {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	items, err := h.Ledger.Purchases(ctx, uid)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}
