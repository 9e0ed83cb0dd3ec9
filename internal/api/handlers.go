package api

import (
	"context"
	"net/http"
	"strconv"

	apperrors "hire-onboarding/internal/common/errors"
	"hire-onboarding/internal/batch"
	"hire-onboarding/internal/models"
	"hire-onboarding/internal/onboarding"

	"github.com/gin-gonic/gin"
)

// RequestService is the lifecycle surface exposed over HTTP.
type RequestService interface {
	CreateRequest(ctx context.Context, actor models.Actor, in onboarding.CreateRequestInput) (*onboarding.Result, error)
	ImportRequest(ctx context.Context, actor models.Actor, in onboarding.ImportRequestInput) (*onboarding.Result, error)
	ResendInvite(ctx context.Context, actor models.Actor, id int64) (*onboarding.Result, error)
	CompleteHR(ctx context.Context, actor models.Actor, id int64, in onboarding.HRInput) (*onboarding.CompleteHRResult, error)
	DeleteRequest(ctx context.Context, actor models.Actor, id int64) error
	RedeemToken(ctx context.Context, token string) (*models.Prefill, error)
	SubmitCandidate(ctx context.Context, token string, in onboarding.CandidateInput) (*onboarding.Result, error)
}

// BatchApprover approves many requests with a per-item report.
type BatchApprover interface {
	ApproveMany(ctx context.Context, ids []int64, actor models.Actor) *batch.Report
}

type ApproveInput struct {
	RequestIDs []int64 `json:"requestIds"`
}

type RequestHandler struct {
	service RequestService
	batch   BatchApprover
}

func NewRequestHandler(service RequestService, approver BatchApprover) *RequestHandler {
	return &RequestHandler{service: service, batch: approver}
}

// RegisterRoutes mounts the staff routes on a group already behind Authenticate.
func (h *RequestHandler) RegisterRoutes(r gin.IRoutes) {
	r.POST("/requests", h.Create)
	r.POST("/requests/import", h.Import)
	r.POST("/requests/approve", h.Approve)
	r.POST("/requests/:id/resend", h.Resend)
	r.PUT("/requests/:id/hr", h.CompleteHR)
	r.DELETE("/requests/:id", h.Delete)
}

func (h *RequestHandler) Create(c *gin.Context) {
	var in onboarding.CreateRequestInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.service.CreateRequest(c.Request.Context(), actorFrom(c), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *RequestHandler) Import(c *gin.Context) {
	var in onboarding.ImportRequestInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.service.ImportRequest(c.Request.Context(), actorFrom(c), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// Approve always answers 200 with the batch report, even when every item failed.
func (h *RequestHandler) Approve(c *gin.Context) {
	var in ApproveInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	if len(in.RequestIDs) == 0 {
		writeError(c, apperrors.NewValidationError("requestIds must not be empty",
			map[string]string{"requestIds": "required"}))
		return
	}
	c.JSON(http.StatusOK, h.batch.ApproveMany(c.Request.Context(), in.RequestIDs, actorFrom(c)))
}

func (h *RequestHandler) Resend(c *gin.Context) {
	id, ok := requestID(c)
	if !ok {
		return
	}
	res, err := h.service.ResendInvite(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *RequestHandler) CompleteHR(c *gin.Context) {
	id, ok := requestID(c)
	if !ok {
		return
	}
	var in onboarding.HRInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.service.CompleteHR(c.Request.Context(), actorFrom(c), id, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *RequestHandler) Delete(c *gin.Context) {
	id, ok := requestID(c)
	if !ok {
		return
	}
	if err := h.service.DeleteRequest(c.Request.Context(), actorFrom(c), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func requestID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(c, apperrors.NewValidationError("invalid request id",
			map[string]string{"id": c.Param("id")}))
		return 0, false
	}
	return id, true
}

// CandidateHandler serves the token-authenticated candidate form.
type CandidateHandler struct {
	service RequestService
}

func NewCandidateHandler(service RequestService) *CandidateHandler {
	return &CandidateHandler{service: service}
}

func (h *CandidateHandler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/candidate/:token", h.Get)
	r.POST("/candidate/:token", h.Submit)
}

func (h *CandidateHandler) Get(c *gin.Context) {
	prefill, err := h.service.RedeemToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, prefill)
}

func (h *CandidateHandler) Submit(c *gin.Context) {
	var in onboarding.CandidateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.service.SubmitCandidate(c.Request.Context(), c.Param("token"), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": res.Request.Status, "warnings": res.Warnings})
}
