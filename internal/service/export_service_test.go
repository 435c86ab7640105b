package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/thwithaphisek/student-behavior-api/internal/models"
	"github.com/thwithaphisek/student-behavior-api/internal/tracker"
	appErrors "github.com/thwithaphisek/student-behavior-api/pkg/errors"
	"github.com/thwithaphisek/student-behavior-api/pkg/storage"
)

type stubRecordSource struct {
	records []models.BehaviorRecord
	err     error
}

func (s *stubRecordSource) Snapshot(_ context.Context) ([]models.BehaviorRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.records, nil
}

func sampleExportRecords() []models.BehaviorRecord {
	return []models.BehaviorRecord{
		{
			StudentID:     "123456",
			StudentNumber: "14",
			FullName:      "เด็กชายสมชาย ใจดี",
			Classroom:     "4/2",
			GoodBehavior:  "ช่วยครูถือของ",
			Score:         5,
			TeacherName:   "ครูสมศรี",
			SubmittedDate: "2026-09-01",
			Status:        "✅ อนุมัติแล้ว",
			UpdatedAt:     time.Date(2026, time.September, 2, 8, 0, 0, 0, time.UTC),
		},
		{
			StudentID: "654321",
			FullName:  "เด็กหญิงสมหญิง ขยันเรียน",
			Classroom: "4/1",
			Score:     3,
			Status:    "mystery",
		},
	}
}

func TestExportServiceRenderCSV(t *testing.T) {
	source := &stubRecordSource{records: sampleExportRecords()}
	svc := NewExportService(source, nil, nil, "", zap.NewNop())

	filename, data, err := svc.RenderCSV(context.Background(), "")
	require.NoError(t, err)
	require.Contains(t, filename, "รายงานพฤติกรรมความดี_")
	require.Contains(t, filename, ".csv")

	bom := []byte{0xEF, 0xBB, 0xBF}
	require.True(t, bytes.HasPrefix(data, bom))

	reader := csv.NewReader(bytes.NewReader(data[len(bom):]))
	rows, err := reader.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, exportHeaders, rows[0])

	require.Equal(t, "123456", rows[1][0])
	require.Equal(t, "อนุมัติแล้ว", rows[1][7])
	require.Equal(t, "1 กันยายน 2569", rows[1][8])
	require.Equal(t, "2 กันยายน 2569", rows[1][9])

	require.Equal(t, "ไม่ทราบสถานะ", rows[2][7], "unrecognised status maps to the unknown label")
	require.Equal(t, "", rows[2][8])
}

func TestExportServiceRenderCSVMultiLineBehavior(t *testing.T) {
	encoded := tracker.EncodeIssue(models.BehaviorRecord{
		StudentID:     "135790",
		StudentNumber: "3",
		FullName:      "เด็กชายสมปอง ซื่อสัตย์",
		Classroom:     "5/1",
		GoodBehavior:  "เก็บกระเป๋าสตางค์ได้\n\nนำส่งครูประจำชั้นทันที",
		Score:         4,
		TeacherName:   "ครูสมศรี",
	}, "โรงเรียนทดสอบ", time.Date(2026, time.September, 1, 9, 0, 0, 0, time.UTC))

	rec := models.BehaviorRecord{
		StudentID: "135790",
		FullName:  "เด็กชายสมปอง ซื่อสัตย์",
		Classroom: "5/1",
		Score:     4,
		Body:      encoded.Body,
	}
	tracker.DecodeBody(encoded.Body, &rec)
	require.Equal(t, "เก็บกระเป๋าสตางค์ได้", rec.GoodBehavior, "decode keeps only the first line")

	source := &stubRecordSource{records: []models.BehaviorRecord{rec}}
	svc := NewExportService(source, nil, nil, "", zap.NewNop())

	_, data, err := svc.RenderCSV(context.Background(), "")
	require.NoError(t, err)

	bom := []byte{0xEF, 0xBB, 0xBF}
	reader := csv.NewReader(bytes.NewReader(data[len(bom):]))
	rows, err := reader.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "เก็บกระเป๋าสตางค์ได้ นำส่งครูประจำชั้นทันที", rows[1][4])
}

func TestExportServiceRenderCSVFiltersByStudent(t *testing.T) {
	source := &stubRecordSource{records: sampleExportRecords()}
	svc := NewExportService(source, nil, nil, "", zap.NewNop())

	_, data, err := svc.RenderCSV(context.Background(), "654321")
	require.NoError(t, err)

	reader := csv.NewReader(bytes.NewReader(data[3:]))
	rows, err := reader.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "654321", rows[1][0])
}

func TestExportServiceEmptyExport(t *testing.T) {
	source := &stubRecordSource{}
	svc := NewExportService(source, nil, nil, "", zap.NewNop())

	_, _, err := svc.RenderCSV(context.Background(), "")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrEmptyExport.Code, appErrors.FromError(err).Code)
}

func TestExportServiceGenerateStoresArtifact(t *testing.T) {
	source := &stubRecordSource{records: sampleExportRecords()}
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	svc := NewExportService(source, store, signer, "", zap.NewNop())

	job := &models.ReportJob{ID: "job-1", Format: models.ReportFormatCSV}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	require.NotEmpty(t, result.Token)
	require.Contains(t, result.URL, "/api/v1/export/")

	jobID, relPath, _, err := svc.ParseToken(result.Token)
	require.NoError(t, err)
	require.Equal(t, "job-1", jobID)
	require.Equal(t, result.RelPath, relPath)

	file, err := svc.Open(relPath)
	require.NoError(t, err)
	require.NoError(t, file.Close())
}

func TestExportServiceGenerateRejectsUnknownFormat(t *testing.T) {
	source := &stubRecordSource{records: sampleExportRecords()}
	svc := NewExportService(source, nil, nil, "", zap.NewNop())

	_, err := svc.Generate(context.Background(), &models.ReportJob{ID: "job-1", Format: models.ReportFormat("xlsx")})
	require.Error(t, err)
}
