package models

import "time"

// ReportFormat selects the rendered artifact type.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

// ReportStatus tracks asynchronous report generation.
type ReportStatus string

const (
	ReportStatusQueued   ReportStatus = "queued"
	ReportStatusRunning  ReportStatus = "running"
	ReportStatusFinished ReportStatus = "finished"
	ReportStatusFailed   ReportStatus = "failed"
)

// ReportJob is one queued export request. Job state lives in Redis; the
// rendered file lives on local storage until cleanup.
type ReportJob struct {
	ID         string       `json:"id"`
	Format     ReportFormat `json:"format"`
	StudentID  string       `json:"student_id,omitempty"`
	Status     ReportStatus `json:"status"`
	Progress   int          `json:"progress"`
	Error      string       `json:"error,omitempty"`
	FilePath   string       `json:"file_path,omitempty"`
	Token      string       `json:"token,omitempty"`
	URL        string       `json:"url,omitempty"`
	CreatedBy  string       `json:"created_by"`
	CreatedAt  time.Time    `json:"created_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
	ExpiresAt  *time.Time   `json:"expires_at,omitempty"`
}
