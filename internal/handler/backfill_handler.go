package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/noah-isme/sis-directory-api/internal/service"
	appErrors "github.com/noah-isme/sis-directory-api/pkg/errors"
	"github.com/noah-isme/sis-directory-api/pkg/jobs"
	"github.com/noah-isme/sis-directory-api/pkg/response"
)

// BackfillHandler exposes the teacher-code reconciliation job.
type BackfillHandler struct {
	backfill *service.BackfillService
	queue    *jobs.Queue
}

// NewBackfillHandler constructs BackfillHandler.
func NewBackfillHandler(backfill *service.BackfillService, queue *jobs.Queue) *BackfillHandler {
	return &BackfillHandler{backfill: backfill, queue: queue}
}

// Enqueue godoc
// @Summary Queue a teacher code backfill run
// @Tags Backfill
// @Produce json
// @Success 202 {object} response.Envelope
// @Router /backfill/teacher-codes [post]
func (h *BackfillHandler) Enqueue(c *gin.Context) {
	jobID := uuid.NewString()
	job := jobs.Job{ID: jobID, Type: "teacher-code-backfill"}
	if err := h.queue.Enqueue(job); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to enqueue backfill"))
		return
	}
	response.Accepted(c, gin.H{"job_id": jobID})
}

// LastReport godoc
// @Summary Fetch the most recent backfill report
// @Tags Backfill
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /backfill/teacher-codes/last [get]
func (h *BackfillHandler) LastReport(c *gin.Context) {
	report := h.backfill.LastReport()
	if report == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "no backfill has completed yet"))
		return
	}
	response.JSON(c, http.StatusOK, report)
}
