package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/yhwh80/freelance-marketplace/internal/service"
)

// JobHandler serves the job board and bid submission.
type JobHandler struct {
	Jobs *service.JobService
	Bids *service.BidService
	Log  *zap.Logger
}

func NewJobHandler(jobs *service.JobService, bids *service.BidService, log *zap.Logger) *JobHandler {
	return &JobHandler{Jobs: jobs, Bids: bids, Log: log}
}

type postJobReq struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"required"`
	BudgetMin   int64  `json:"budget_min" validate:"gt=0"`
	BudgetMax   int64  `json:"budget_max" validate:"gt=0"`
}

type submitBidReq struct {
	Amount  int64  `json:"amount" validate:"gt=0"`
	Message string `json:"message" validate:"max=5000"`
}

// List handles GET /jobs?status=&limit=&offset=.
func (h *JobHandler) List(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	ctx, cancel := withTimeout(c)
	defer cancel()
	items, err := h.Jobs.List(ctx, c.QueryParam("status"), limit, offset)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Get handles GET /jobs/:id and includes the job's bids.
func (h *JobHandler) Get(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	job, err := h.Jobs.Get(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	bids, err := h.Bids.ListByJob(ctx, job.ID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"job": job, "bids": bids})
}

// Post handles POST /jobs for clients.
func (h *JobHandler) Post(c echo.Context) error {
	uid, err := callerID(c)
	if uid == "" {
		return err
	}
	var req postJobReq
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	job, err := h.Jobs.PostJob(ctx, uid, service.JobInput{
		Title:       req.Title,
		Description: req.Description,
		BudgetMin:   req.BudgetMin,
		BudgetMax:   req.BudgetMax,
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, job)
}

// SubmitBid handles POST /jobs/:id/bids.
func (h *JobHandler) SubmitBid(c echo.Context) error {
	uid, err := callerID(c)
	if uid == "" {
		return err
	}
	var req submitBidReq
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	bid, err := h.Bids.Submit(ctx, uid, c.Param("id"), service.BidInput{Amount: req.Amount, Message: req.Message})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, bid)
}
