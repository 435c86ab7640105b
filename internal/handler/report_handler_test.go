package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/thwithaphisek/student-behavior-api/internal/dto"
	"github.com/thwithaphisek/student-behavior-api/internal/models"
	"github.com/thwithaphisek/student-behavior-api/internal/service"
	appErrors "github.com/thwithaphisek/student-behavior-api/pkg/errors"
	"github.com/thwithaphisek/student-behavior-api/pkg/jobs"
)

type jobStoreMock struct {
	jobs map[string]models.ReportJob
}

func newJobStoreMock() *jobStoreMock {
	return &jobStoreMock{jobs: make(map[string]models.ReportJob)}
}

func (m *jobStoreMock) Create(_ context.Context, job *models.ReportJob) error {
	m.jobs[job.ID] = *job
	return nil
}

func (m *jobStoreMock) Save(_ context.Context, job *models.ReportJob) error {
	m.jobs[job.ID] = *job
	return nil
}

func (m *jobStoreMock) GetByID(_ context.Context, id string) (*models.ReportJob, error) {
	job, ok := m.jobs[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
	}
	out := job
	return &out, nil
}

type dispatcherMock struct {
	tasks []jobs.Task
}

func (m *dispatcherMock) Enqueue(task jobs.Task) error {
	m.tasks = append(m.tasks, task)
	return nil
}

func newTestReportHandler(store *jobStoreMock, queue *dispatcherMock) *ReportHandler {
	svc := service.NewReportService(store, queue, nil, zap.NewNop(), service.ReportServiceConfig{})
	return NewReportHandler(svc)
}

func TestReportHandlerGenerate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := newJobStoreMock()
	queue := &dispatcherMock{}
	handler := newTestReportHandler(store, queue)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(dto.ReportRequest{Format: models.ReportFormatCSV})
	req, _ := http.NewRequest(http.MethodPost, "/reports/generate", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Generate(c)
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, queue.tasks, 1)
	require.Len(t, store.jobs, 1)
}

func TestReportHandlerGenerateBadFormat(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newTestReportHandler(newJobStoreMock(), &dispatcherMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(dto.ReportRequest{Format: "xlsx"})
	req, _ := http.NewRequest(http.MethodPost, "/reports/generate", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Generate(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportHandlerStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := newJobStoreMock()
	store.jobs["job-1"] = models.ReportJob{ID: "job-1", Status: models.ReportStatusRunning, Progress: 10}
	handler := newTestReportHandler(store, &dispatcherMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/reports/status/job-1", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "job-1"}}

	handler.Status(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "running")
}

func TestReportHandlerStatusNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newTestReportHandler(newJobStoreMock(), &dispatcherMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/reports/status/missing", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	handler.Status(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestReportHandlerDownloadMissingToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newTestReportHandler(newJobStoreMock(), &dispatcherMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/export/", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "token", Value: " "}}

	handler.Download(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
