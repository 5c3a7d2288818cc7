package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/yoga-booking-api/internal/dto"
	"github.com/noah-isme/yoga-booking-api/internal/models"
	appErrors "github.com/noah-isme/yoga-booking-api/pkg/errors"
)

type limitRepository interface {
	Upsert(ctx context.Context, limit *models.WeeklyLimit) error
	UpdateLimit(ctx context.Context, id, teacherID string, weeklyLimit int) (*models.WeeklyLimit, error)
	DeleteByStudent(ctx context.Context, teacherID, studentID string) (bool, error)
	ListSummaries(ctx context.Context, teacherID string) ([]models.LimitSummary, error)
}

type studentFinder interface {
	FindStudents(ctx context.Context, identifier string) ([]models.Profile, error)
}

// LimitService lets teachers grant and adjust weekly class allowances.
type LimitService struct {
	repo      limitRepository
	students  studentFinder
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLimitService constructs LimitService.
func NewLimitService(repo limitRepository, students studentFinder, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *LimitService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LimitService{repo: repo, students: students, audit: audit, validator: validate, logger: logger}
}

// Assign creates or replaces the allowance of the student matched by email or full name.
func (s *LimitService) Assign(ctx context.Context, identity models.Identity, req dto.AssignLimitRequest) (*models.WeeklyLimit, error) {
	if !identity.IsTeacher() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers assign limits")
	}
	req.Student = strings.TrimSpace(req.Student)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid limit payload")
	}

	matches, err := s.students.FindStudents(ctx, req.Student)
	if err != nil {
		return nil, storeFailure(err, "find student")
	}
	switch len(matches) {
	case 0:
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	case 1:
	default:
		return nil, appErrors.Clone(appErrors.ErrConflict, "more than one student matches, use the email address")
	}

	limit := &models.WeeklyLimit{
		TeacherID:        identity.UserID,
		StudentID:        matches[0].ID,
		WeeklyClassLimit: *req.WeeklyClassLimit,
	}
	if err := s.repo.Upsert(ctx, limit); err != nil {
		return nil, storeFailure(err, "save weekly limit")
	}
	s.record(ctx, identity, models.AuditActionLimitAssign, limit)
	return limit, nil
}

// Update changes the limit value of an allowance the teacher owns.
func (s *LimitService) Update(ctx context.Context, identity models.Identity, id string, req dto.UpdateLimitRequest) (*models.WeeklyLimit, error) {
	if !identity.IsTeacher() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers update limits")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid limit payload")
	}
	limit, err := s.repo.UpdateLimit(ctx, id, identity.UserID, *req.WeeklyClassLimit)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "limit not found")
		}
		return nil, storeFailure(err, "update weekly limit")
	}
	s.record(ctx, identity, models.AuditActionLimitUpdate, limit)
	return limit, nil
}

// Delete revokes the teacher's allowance for a student. Revoking a missing allowance succeeds without an audit entry.
func (s *LimitService) Delete(ctx context.Context, identity models.Identity, studentID string) error {
	if !identity.IsTeacher() {
		return appErrors.Clone(appErrors.ErrForbidden, "only teachers delete limits")
	}
	removed, err := s.repo.DeleteByStudent(ctx, identity.UserID, studentID)
	if err != nil {
		return storeFailure(err, "delete weekly limit")
	}
	if !removed {
		return nil
	}
	s.record(ctx, identity, models.AuditActionLimitDelete, &models.WeeklyLimit{TeacherID: identity.UserID, StudentID: studentID})
	return nil
}

// List returns the teacher's allowances with current usage.
func (s *LimitService) List(ctx context.Context, identity models.Identity) ([]models.LimitSummary, error) {
	if !identity.IsTeacher() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers list limits")
	}
	items, err := s.repo.ListSummaries(ctx, identity.UserID)
	if err != nil {
		return nil, storeFailure(err, "list weekly limits")
	}
	if items == nil {
		items = []models.LimitSummary{}
	}
	return items, nil
}

func (s *LimitService) record(ctx context.Context, identity models.Identity, action string, limit *models.WeeklyLimit) {
	s.logger.Info("weekly limit changed",
		zap.String("action", action),
		zap.String("teacher_id", identity.UserID),
		zap.String("student_id", limit.StudentID),
		zap.Int("weekly_class_limit", limit.WeeklyClassLimit))
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, AuditEvent{
		ActorID:    identity.UserID,
		Action:     action,
		Resource:   "weekly_limit",
		ResourceID: limit.ID,
		Values:     map[string]interface{}{"student_id": limit.StudentID, "weekly_class_limit": limit.WeeklyClassLimit},
	})
}
