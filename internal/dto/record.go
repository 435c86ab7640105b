package dto

import "github.com/thwithaphisek/student-behavior-api/internal/models"

// CreateRecordRequest captures POST /records payload.
type CreateRecordRequest struct {
	StudentID     string  `json:"studentId" validate:"required,number,min=5,max=10"`
	StudentNumber string  `json:"studentNumber" validate:"required,number,max=3"`
	FullName      string  `json:"fullName" validate:"required,max=100"`
	Classroom     string  `json:"classroom" validate:"required"`
	GoodBehavior  string  `json:"goodBehavior" validate:"required"`
	Score         float64 `json:"score" validate:"required,min=1,max=5"`
	TeacherName   string  `json:"teacherName" validate:"required,max=100"`
}

// ListRecordsQuery captures GET /records query parameters.
type ListRecordsQuery struct {
	StudentID string `form:"studentId"`
	Status    string `form:"status"`
	Classroom string `form:"classroom"`
	Page      int    `form:"page"`
}

// UpdateStatusRequest captures PATCH /records/:itemId/status payload.
type UpdateStatusRequest struct {
	Status models.RecordStatus `json:"status" validate:"required"`
}

// RecordListResponse wraps the filtered records with paging metadata.
type RecordListResponse struct {
	Records    []models.BehaviorRecord `json:"records"`
	Pagination models.Pagination       `json:"pagination"`
}

// ClassroomOption is one selectable classroom for the submission form.
type ClassroomOption struct {
	Grade int    `json:"grade"`
	Room  int    `json:"room"`
	Label string `json:"label"`
}
