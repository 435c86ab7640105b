package models

import (
	"fmt"
	"time"
)

// RecordStatus is the workflow state of a behavior record. The source of
// truth is the status single-select field on the tracker, never local state.
type RecordStatus string

const (
	StatusPending     RecordStatus = "pending"
	StatusUnderReview RecordStatus = "under-review"
	StatusApproved    RecordStatus = "approved"
	StatusRejected    RecordStatus = "rejected"
)

// StatusLabels maps workflow states to the Thai option labels used on the
// tracker's status field. Approve/reject requests carry these labels.
var StatusLabels = map[RecordStatus]string{
	StatusPending:     "รออนุมัติ",
	StatusUnderReview: "กำลังตรวจสอบ",
	StatusApproved:    "อนุมัติแล้ว",
	StatusRejected:    "ไม่อนุมัติ",
}

// BehaviorRecord is one good-behavior entry. Identity and content live in
// the issue title/body; workflow and evaluation live in project fields.
type BehaviorRecord struct {
	StudentID     string `json:"student_id"`
	StudentNumber string `json:"student_number"`
	FullName      string `json:"full_name"`
	Classroom     string `json:"classroom"`

	GoodBehavior string  `json:"good_behavior"`
	Score        float64 `json:"score"`

	TeacherName   string `json:"teacher_name"`
	SubmittedDate string `json:"submitted_date,omitempty"`

	Status string `json:"status,omitempty"`

	TrackerItemID  string    `json:"tracker_item_id,omitempty"`
	DocumentID     string    `json:"document_id,omitempty"`
	DocumentNumber int       `json:"document_number,omitempty"`
	URL            string    `json:"url,omitempty"`
	Title          string    `json:"-"`
	Body           string    `json:"-"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
	UpdatedAt      time.Time `json:"updated_at,omitempty"`
}

// Classroom formats a grade/room pair into the canonical "<grade>/<room>"
// form used across titles, options and exports.
func Classroom(grade, room int) string {
	return fmt.Sprintf("%d/%d", grade, room)
}

// RecordStats aggregates a record listing for the admin dashboard.
type RecordStats struct {
	Total             int             `json:"total"`
	Pending           int             `json:"pending"`
	Approved          int             `json:"approved"`
	Rejected          int             `json:"rejected"`
	ApprovalRate      float64         `json:"approval_rate"`
	RejectionRate     float64         `json:"rejection_rate"`
	ScoreDistribution map[int]int     `json:"score_distribution"`
	Classrooms        []ClassroomStat `json:"classrooms"`
}

// ClassroomStat summarises approved records for one classroom.
type ClassroomStat struct {
	Classroom    string  `json:"classroom"`
	Total        int     `json:"total"`
	Approved     int     `json:"approved"`
	AverageScore float64 `json:"average_score"`
}

// Pagination carries listing metadata in the response envelope.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
