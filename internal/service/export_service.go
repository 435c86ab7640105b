package service

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/thwithaphisek/student-behavior-api/internal/models"
	"github.com/thwithaphisek/student-behavior-api/internal/tracker"
	appErrors "github.com/thwithaphisek/student-behavior-api/pkg/errors"
	"github.com/thwithaphisek/student-behavior-api/pkg/export"
	"github.com/thwithaphisek/student-behavior-api/pkg/storage"
)

// Column headers of the review export, in presentation order.
var exportHeaders = []string{
	"รหัสนักเรียน",
	"เลขที่",
	"ชื่อ-นามสกุล",
	"ห้อง",
	"พฤติกรรมความดี",
	"คะแนน",
	"ครูผู้ลงทะเบียน",
	"สถานะ",
	"วันที่ส่ง",
	"วันที่อัปเดต",
}

const unknownStatusLabel = "ไม่ทราบสถานะ"

type recordSource interface {
	Snapshot(ctx context.Context) ([]models.BehaviorRecord, error)
}

// ExportResult describes a rendered report artifact.
type ExportResult struct {
	RelPath   string
	Token     string
	URL       string
	Format    models.ReportFormat
	ExpiresAt time.Time
}

// ExportService renders record listings into downloadable documents.
type ExportService struct {
	records        recordSource
	csv            *export.CSVExporter
	pdf            *export.PDFExporter
	storage        *storage.LocalStorage
	signer         *storage.SignedURLSigner
	filenamePrefix string
	logger         *zap.Logger
}

// NewExportService constructs an export service.
func NewExportService(records recordSource, store *storage.LocalStorage, signer *storage.SignedURLSigner, filenamePrefix string, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if filenamePrefix == "" {
		filenamePrefix = "รายงานพฤติกรรมความดี"
	}
	return &ExportService{
		records:        records,
		csv:            export.NewCSVExporter(),
		pdf:            export.NewPDFExporter(),
		storage:        store,
		signer:         signer,
		filenamePrefix: filenamePrefix,
		logger:         logger,
	}
}

// RenderCSV builds the synchronous CSV download.
func (s *ExportService) RenderCSV(ctx context.Context, studentID string) (string, []byte, error) {
	dataset, err := s.buildDataset(ctx, studentID)
	if err != nil {
		return "", nil, err
	}
	data, err := s.csv.Render(dataset)
	if err != nil {
		return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
	}
	filename := fmt.Sprintf("%s_%s.csv", s.filenamePrefix, time.Now().Format("2006-01-02"))
	return filename, data, nil
}

// Generate renders a queued report job and stores the artifact with a
// signed download token.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, err := s.buildDataset(ctx, job.StudentID)
	if err != nil {
		return nil, err
	}

	var data []byte
	switch job.Format {
	case models.ReportFormatCSV:
		data, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		data, err = s.pdf.Render(dataset, s.filenamePrefix)
	default:
		err = fmt.Errorf("unsupported format %s", job.Format)
	}
	if err != nil {
		return nil, err
	}

	relPath := fmt.Sprintf("%s_%s_%s.%s", s.filenamePrefix, time.Now().Format("2006-01-02"), job.ID, job.Format)
	if _, err := s.storage.Save(relPath, data); err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}

	return &ExportResult{
		RelPath:   relPath,
		Token:     token,
		URL:       "/api/v1/export/" + token,
		Format:    job.Format,
		ExpiresAt: expiresAt,
	}, nil
}

// ParseToken validates a signed download token.
func (s *ExportService) ParseToken(token string) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token)
}

// Open returns a handle to a stored artifact.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored artifact.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes artifacts older than the TTL.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildDataset(ctx context.Context, studentID string) (export.Dataset, error) {
	records, err := s.records.Snapshot(ctx)
	if err != nil {
		return export.Dataset{}, err
	}

	rows := make([]map[string]string, 0, len(records))
	for _, rec := range records {
		if studentID != "" && rec.StudentID != studentID {
			continue
		}
		rows = append(rows, map[string]string{
			"รหัสนักเรียน":    rec.StudentID,
			"เลขที่":          rec.StudentNumber,
			"ชื่อ-นามสกุล":    rec.FullName,
			"ห้อง":            rec.Classroom,
			"พฤติกรรมความดี":  behaviorColumn(rec),
			"คะแนน":           fmt.Sprintf("%g", rec.Score),
			"ครูผู้ลงทะเบียน": rec.TeacherName,
			"สถานะ":           statusColumn(rec.Status),
			"วันที่ส่ง":       submittedColumn(rec.SubmittedDate),
			"วันที่อัปเดต":    updatedColumn(rec.UpdatedAt),
		})
	}

	if len(rows) == 0 {
		return export.Dataset{}, appErrors.Clone(appErrors.ErrEmptyExport, "no records to export")
	}

	return export.Dataset{Headers: exportHeaders, Rows: rows}, nil
}

// behaviorColumn re-extracts the behavior text from the issue body so that
// multi-line entries come out whole. The decoded single-line field is only
// a fallback for records carrying no body.
func behaviorColumn(rec models.BehaviorRecord) string {
	if text := tracker.ExtractBehavior(rec.Body); text != "" {
		return text
	}
	return rec.GoodBehavior
}

func statusColumn(label string) string {
	status := ClassifyStatus(label)
	if status == "" {
		return unknownStatusLabel
	}
	return models.StatusLabels[status]
}

func submittedColumn(raw string) string {
	if raw == "" {
		return ""
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return raw
	}
	return tracker.FormatThaiDate(t)
}

func updatedColumn(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return tracker.FormatThaiDate(t)
}
