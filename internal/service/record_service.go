package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/thwithaphisek/student-behavior-api/internal/dto"
	"github.com/thwithaphisek/student-behavior-api/internal/models"
	"github.com/thwithaphisek/student-behavior-api/pkg/config"
	appErrors "github.com/thwithaphisek/student-behavior-api/pkg/errors"
)

type recordTracker interface {
	Create(ctx context.Context, rec models.BehaviorRecord) (*models.BehaviorRecord, error)
	List(ctx context.Context) ([]models.BehaviorRecord, error)
	UpdateStatus(ctx context.Context, itemID, label string) error
}

const (
	recordListCacheKey = "records:list"
	recordCachePattern = "records:*"
)

// RecordService orchestrates record submission, listing, and review against
// the upstream tracker, with a short-lived list snapshot cache in front of it.
type RecordService struct {
	tracker    recordTracker
	cache      *CacheService
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        config.RecordsConfig
	classrooms []config.ClassroomGroup
}

// NewRecordService constructs a record service.
func NewRecordService(tracker recordTracker, cache *CacheService, validate *validator.Validate, logger *zap.Logger, cfg config.RecordsConfig, classrooms []config.ClassroomGroup) *RecordService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 20
	}
	return &RecordService{
		tracker:    tracker,
		cache:      cache,
		validator:  validate,
		logger:     logger,
		cfg:        cfg,
		classrooms: classrooms,
	}
}

// Create validates a submission and records it on the tracker.
func (s *RecordService) Create(ctx context.Context, req dto.CreateRecordRequest) (*models.BehaviorRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid record payload")
	}
	if s.cfg.MaxBehaviorLength > 0 && len([]rune(req.GoodBehavior)) > s.cfg.MaxBehaviorLength {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("goodBehavior exceeds %d characters", s.cfg.MaxBehaviorLength))
	}
	if s.cfg.MaxNameLength > 0 && len([]rune(req.FullName)) > s.cfg.MaxNameLength {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("fullName exceeds %d characters", s.cfg.MaxNameLength))
	}
	if len(s.classrooms) > 0 && !s.validClassroom(req.Classroom) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown classroom: %s", req.Classroom))
	}

	rec := models.BehaviorRecord{
		StudentID:     req.StudentID,
		StudentNumber: req.StudentNumber,
		FullName:      strings.TrimSpace(req.FullName),
		Classroom:     req.Classroom,
		GoodBehavior:  strings.TrimSpace(req.GoodBehavior),
		Score:         req.Score,
		TeacherName:   strings.TrimSpace(req.TeacherName),
	}

	created, err := s.tracker.Create(ctx, rec)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Invalidate(ctx, recordCachePattern); err != nil {
		s.logger.Warn("record cache invalidation failed", zap.Error(err))
	}

	return created, nil
}

// List returns the current snapshot filtered by the query and paginated.
func (s *RecordService) List(ctx context.Context, query dto.ListRecordsQuery) (*dto.RecordListResponse, error) {
	records, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	filtered := make([]models.BehaviorRecord, 0, len(records))
	for _, rec := range records {
		if query.StudentID != "" && rec.StudentID != query.StudentID {
			continue
		}
		if query.Status != "" && ClassifyStatus(rec.Status) != models.RecordStatus(query.Status) {
			continue
		}
		if query.Classroom != "" && rec.Classroom != query.Classroom {
			continue
		}
		filtered = append(filtered, rec)
	}

	page := query.Page
	if page <= 0 {
		page = 1
	}
	pageSize := s.cfg.PageSize
	start := (page - 1) * pageSize
	if start > len(filtered) {
		start = len(filtered)
	}
	end := start + pageSize
	if end > len(filtered) {
		end = len(filtered)
	}

	return &dto.RecordListResponse{
		Records: filtered[start:end],
		Pagination: models.Pagination{
			Page:       page,
			PageSize:   pageSize,
			TotalCount: len(filtered),
		},
	}, nil
}

// Stats aggregates the full snapshot for the review dashboard.
func (s *RecordService) Stats(ctx context.Context) (*models.RecordStats, error) {
	records, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	stats := &models.RecordStats{
		Total:             len(records),
		ScoreDistribution: map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0},
	}

	type classroomAgg struct {
		total      int
		approved   int
		totalScore float64
	}
	byClassroom := make(map[string]*classroomAgg)

	for _, rec := range records {
		status := ClassifyStatus(rec.Status)
		switch status {
		case models.StatusPending:
			stats.Pending++
		case models.StatusApproved:
			stats.Approved++
		case models.StatusRejected:
			stats.Rejected++
		}

		score := int(rec.Score)
		if _, ok := stats.ScoreDistribution[score]; ok {
			stats.ScoreDistribution[score]++
		}

		if rec.Classroom == "" {
			continue
		}
		agg := byClassroom[rec.Classroom]
		if agg == nil {
			agg = &classroomAgg{}
			byClassroom[rec.Classroom] = agg
		}
		agg.total++
		if status == models.StatusApproved {
			agg.approved++
			agg.totalScore += rec.Score
		}
	}

	if stats.Total > 0 {
		stats.ApprovalRate = round1(float64(stats.Approved) / float64(stats.Total) * 100)
		stats.RejectionRate = round1(float64(stats.Rejected) / float64(stats.Total) * 100)
	}

	names := make([]string, 0, len(byClassroom))
	for name := range byClassroom {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		agg := byClassroom[name]
		stat := models.ClassroomStat{
			Classroom: name,
			Total:     agg.total,
			Approved:  agg.approved,
		}
		if agg.approved > 0 {
			stat.AverageScore = round1(agg.totalScore / float64(agg.approved))
		}
		stats.Classrooms = append(stats.Classrooms, stat)
	}

	return stats, nil
}

// UpdateStatus moves a record to a new workflow state.
func (s *RecordService) UpdateStatus(ctx context.Context, itemID string, status models.RecordStatus) error {
	if itemID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "itemId is required")
	}
	label, ok := models.StatusLabels[status]
	if !ok {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status: %s", status))
	}
	if err := s.tracker.UpdateStatus(ctx, itemID, label); err != nil {
		return err
	}
	if err := s.cache.Invalidate(ctx, recordCachePattern); err != nil {
		s.logger.Warn("record cache invalidation failed", zap.Error(err))
	}
	return nil
}

// Classrooms lists the configured classroom options for the submission form.
func (s *RecordService) Classrooms() []dto.ClassroomOption {
	options := make([]dto.ClassroomOption, 0)
	for _, group := range s.classrooms {
		for room := 1; room <= group.Rooms; room++ {
			options = append(options, dto.ClassroomOption{
				Grade: group.Grade,
				Room:  room,
				Label: models.Classroom(group.Grade, room),
			})
		}
	}
	return options
}

// Snapshot exposes the cached record listing for other services.
func (s *RecordService) Snapshot(ctx context.Context) ([]models.BehaviorRecord, error) {
	return s.snapshot(ctx)
}

func (s *RecordService) snapshot(ctx context.Context) ([]models.BehaviorRecord, error) {
	var cached []models.BehaviorRecord
	if hit, err := s.cache.Get(ctx, recordListCacheKey, &cached); err == nil && hit {
		return cached, nil
	}

	records, err := s.tracker.List(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, recordListCacheKey, records, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("record cache write failed", zap.Error(err))
	}

	return records, nil
}

func (s *RecordService) validClassroom(classroom string) bool {
	for _, group := range s.classrooms {
		for room := 1; room <= group.Rooms; room++ {
			if models.Classroom(group.Grade, room) == classroom {
				return true
			}
		}
	}
	return false
}

// ClassifyStatus maps a board option label back to a workflow state. Labels
// carry emoji prefixes on the board, so matching is by substring. Unknown
// labels return an empty status.
func ClassifyStatus(label string) models.RecordStatus {
	for _, status := range []models.RecordStatus{models.StatusPending, models.StatusUnderReview, models.StatusApproved, models.StatusRejected} {
		if strings.Contains(label, models.StatusLabels[status]) {
			return status
		}
	}
	return ""
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
