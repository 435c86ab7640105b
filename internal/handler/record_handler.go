package handler

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/thwithaphisek/student-behavior-api/internal/dto"
	"github.com/thwithaphisek/student-behavior-api/internal/service"
	appErrors "github.com/thwithaphisek/student-behavior-api/pkg/errors"
	"github.com/thwithaphisek/student-behavior-api/pkg/response"
)

// RecordHandler exposes record submission, listing, and review endpoints.
type RecordHandler struct {
	records *service.RecordService
	export  *service.ExportService
}

// NewRecordHandler constructs a record handler.
func NewRecordHandler(records *service.RecordService, export *service.ExportService) *RecordHandler {
	return &RecordHandler{records: records, export: export}
}

// Create godoc
// @Summary Submit a good-behavior record
// @Tags Records
// @Accept json
// @Produce json
// @Param payload body dto.CreateRecordRequest true "Record payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /records [post]
func (h *RecordHandler) Create(c *gin.Context) {
	var req dto.CreateRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid record payload"))
		return
	}

	created, err := h.records.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, created)
}

// List godoc
// @Summary List records, optionally filtered by student, status, or classroom
// @Tags Records
// @Produce json
// @Param studentId query string false "Student ID filter"
// @Param status query string false "Workflow status filter"
// @Param classroom query string false "Classroom filter"
// @Param page query int false "Page number"
// @Success 200 {object} response.Envelope
// @Router /records [get]
func (h *RecordHandler) List(c *gin.Context) {
	var query dto.ListRecordsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}

	resp, err := h.records.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, resp.Records, &resp.Pagination)
}

// Stats godoc
// @Summary Aggregate statistics for the review dashboard
// @Tags Records
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /records/stats [get]
func (h *RecordHandler) Stats(c *gin.Context) {
	stats, err := h.records.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// UpdateStatus godoc
// @Summary Move a record to a new workflow state
// @Tags Records
// @Accept json
// @Produce json
// @Param itemId path string true "Tracker item ID"
// @Param payload body dto.UpdateStatusRequest true "Status payload"
// @Success 204
// @Failure 422 {object} response.Envelope
// @Router /records/{itemId}/status [patch]
func (h *RecordHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}

	if err := h.records.UpdateStatus(c.Request.Context(), c.Param("itemId"), req.Status); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// ExportCSV godoc
// @Summary Download the record listing as CSV
// @Tags Records
// @Produce text/csv
// @Param studentId query string false "Student ID filter"
// @Success 200
// @Failure 404 {object} response.Envelope
// @Router /records/export [get]
func (h *RecordHandler) ExportCSV(c *gin.Context) {
	filename, data, err := h.export.RenderCSV(c.Request.Context(), c.Query("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename*=UTF-8''%s", url.PathEscape(filename)))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
}

// Classrooms godoc
// @Summary Configured classroom options for the submission form
// @Tags Records
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /classrooms [get]
func (h *RecordHandler) Classrooms(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.records.Classrooms(), nil)
}
