package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/thwithaphisek/student-behavior-api/internal/dto"
	"github.com/thwithaphisek/student-behavior-api/internal/models"
	"github.com/thwithaphisek/student-behavior-api/pkg/config"
	appErrors "github.com/thwithaphisek/student-behavior-api/pkg/errors"
)

type stubTracker struct {
	records     []models.BehaviorRecord
	created     []models.BehaviorRecord
	statusCalls []string
	err         error
}

func (s *stubTracker) Create(_ context.Context, rec models.BehaviorRecord) (*models.BehaviorRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.created = append(s.created, rec)
	out := rec
	out.TrackerItemID = "PVTI_1"
	out.Status = models.StatusLabels[models.StatusPending]
	return &out, nil
}

func (s *stubTracker) List(_ context.Context) ([]models.BehaviorRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.records, nil
}

func (s *stubTracker) UpdateStatus(_ context.Context, itemID, label string) error {
	if s.err != nil {
		return s.err
	}
	s.statusCalls = append(s.statusCalls, itemID+"|"+label)
	return nil
}

func newTestRecordService(tracker *stubTracker) *RecordService {
	cfg := config.RecordsConfig{PageSize: 2, MaxBehaviorLength: 500, MaxNameLength: 100}
	classrooms := []config.ClassroomGroup{{Grade: 4, Rooms: 2}, {Grade: 5, Rooms: 1}}
	return NewRecordService(tracker, nil, nil, zap.NewNop(), cfg, classrooms)
}

func validCreateRequest() dto.CreateRecordRequest {
	return dto.CreateRecordRequest{
		StudentID:     "123456",
		StudentNumber: "14",
		FullName:      "เด็กชายสมชาย ใจดี",
		Classroom:     "4/2",
		GoodBehavior:  "ช่วยครูถือของ",
		Score:         5,
		TeacherName:   "ครูสมศรี",
	}
}

func TestRecordServiceCreate(t *testing.T) {
	tracker := &stubTracker{}
	svc := newTestRecordService(tracker)

	created, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)
	require.Equal(t, "PVTI_1", created.TrackerItemID)
	require.Len(t, tracker.created, 1)
	require.Equal(t, "123456", tracker.created[0].StudentID)
}

func TestRecordServiceCreateRejectsBadStudentID(t *testing.T) {
	svc := newTestRecordService(&stubTracker{})

	req := validCreateRequest()
	req.StudentID = "abc"
	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	req = validCreateRequest()
	req.StudentID = "1234"
	_, err = svc.Create(context.Background(), req)
	require.Error(t, err, "student id shorter than 5 digits must fail")
}

func TestRecordServiceCreateRejectsUnknownClassroom(t *testing.T) {
	svc := newTestRecordService(&stubTracker{})

	req := validCreateRequest()
	req.Classroom = "9/9"
	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRecordServiceCreateRejectsOutOfRangeScore(t *testing.T) {
	svc := newTestRecordService(&stubTracker{})

	req := validCreateRequest()
	req.Score = 6
	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
}

func TestRecordServiceListFiltersAndPaginates(t *testing.T) {
	tracker := &stubTracker{records: []models.BehaviorRecord{
		{StudentID: "111111", Classroom: "4/1", Status: "🕐 รออนุมัติ"},
		{StudentID: "222222", Classroom: "4/2", Status: "✅ อนุมัติแล้ว"},
		{StudentID: "222222", Classroom: "4/2", Status: "🕐 รออนุมัติ"},
		{StudentID: "333333", Classroom: "5/1", Status: "❌ ไม่อนุมัติ"},
	}}
	svc := newTestRecordService(tracker)

	resp, err := svc.List(context.Background(), dto.ListRecordsQuery{StudentID: "222222"})
	require.NoError(t, err)
	require.Len(t, resp.Records, 2)
	require.Equal(t, 2, resp.Pagination.TotalCount)

	resp, err = svc.List(context.Background(), dto.ListRecordsQuery{Status: string(models.StatusPending)})
	require.NoError(t, err)
	require.Len(t, resp.Records, 2)

	resp, err = svc.List(context.Background(), dto.ListRecordsQuery{Page: 2})
	require.NoError(t, err)
	require.Len(t, resp.Records, 2, "page size 2 leaves two records on page 2")
	require.Equal(t, 4, resp.Pagination.TotalCount)

	resp, err = svc.List(context.Background(), dto.ListRecordsQuery{Page: 9})
	require.NoError(t, err)
	require.Empty(t, resp.Records)
}

func TestRecordServiceStats(t *testing.T) {
	tracker := &stubTracker{records: []models.BehaviorRecord{
		{Classroom: "4/1", Status: "✅ อนุมัติแล้ว", Score: 5},
		{Classroom: "4/1", Status: "✅ อนุมัติแล้ว", Score: 4},
		{Classroom: "4/2", Status: "🕐 รออนุมัติ", Score: 3},
		{Classroom: "4/2", Status: "❌ ไม่อนุมัติ", Score: 1},
	}}
	svc := newTestRecordService(tracker)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4, stats.Total)
	require.Equal(t, 2, stats.Approved)
	require.Equal(t, 1, stats.Pending)
	require.Equal(t, 1, stats.Rejected)
	require.InDelta(t, 50.0, stats.ApprovalRate, 0.01)
	require.InDelta(t, 25.0, stats.RejectionRate, 0.01)
	require.Equal(t, 1, stats.ScoreDistribution[5])
	require.Equal(t, 1, stats.ScoreDistribution[3])
	require.Equal(t, 0, stats.ScoreDistribution[2])

	require.Len(t, stats.Classrooms, 2)
	require.Equal(t, "4/1", stats.Classrooms[0].Classroom)
	require.Equal(t, 2, stats.Classrooms[0].Approved)
	require.InDelta(t, 4.5, stats.Classrooms[0].AverageScore, 0.01)
	require.Equal(t, "4/2", stats.Classrooms[1].Classroom)
	require.Equal(t, 0, stats.Classrooms[1].Approved)
	require.Zero(t, stats.Classrooms[1].AverageScore)
}

func TestRecordServiceUpdateStatus(t *testing.T) {
	tracker := &stubTracker{}
	svc := newTestRecordService(tracker)

	err := svc.UpdateStatus(context.Background(), "PVTI_1", models.StatusApproved)
	require.NoError(t, err)
	require.Equal(t, []string{"PVTI_1|อนุมัติแล้ว"}, tracker.statusCalls)

	err = svc.UpdateStatus(context.Background(), "PVTI_1", models.RecordStatus("bogus"))
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	err = svc.UpdateStatus(context.Background(), "", models.StatusApproved)
	require.Error(t, err)
}

func TestRecordServiceClassrooms(t *testing.T) {
	svc := newTestRecordService(&stubTracker{})

	options := svc.Classrooms()
	require.Len(t, options, 3)
	require.Equal(t, "4/1", options[0].Label)
	require.Equal(t, "4/2", options[1].Label)
	require.Equal(t, "5/1", options[2].Label)
}

func TestClassifyStatus(t *testing.T) {
	require.Equal(t, models.StatusPending, ClassifyStatus("🕐 รออนุมัติ"))
	require.Equal(t, models.StatusApproved, ClassifyStatus("✅ อนุมัติแล้ว"))
	require.Equal(t, models.StatusRejected, ClassifyStatus("❌ ไม่อนุมัติ"))
	require.Equal(t, models.StatusUnderReview, ClassifyStatus("กำลังตรวจสอบ"))
	require.Equal(t, models.RecordStatus(""), ClassifyStatus("something else"))
}
