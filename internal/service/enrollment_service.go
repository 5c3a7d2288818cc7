package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/yoga-booking-api/internal/dto"
	"github.com/noah-isme/yoga-booking-api/internal/models"
	"github.com/noah-isme/yoga-booking-api/internal/repository"
	appErrors "github.com/noah-isme/yoga-booking-api/pkg/errors"
	"github.com/noah-isme/yoga-booking-api/pkg/middleware/requestid"
)

const (
	enrollOperation = "enroll"
	cancelOperation = "cancel"
)

type enrollmentRepository interface {
	Transact(ctx context.Context, fn func(repository.EnrollmentStore) error) error
	Delete(ctx context.Context, studentID, classID string) (bool, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error)
	Availability(ctx context.Context, classID string) (*models.Availability, error)
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

type auditRecorder interface {
	Record(ctx context.Context, event AuditEvent)
}

// EnrollmentServiceParams groups constructor dependencies.
type EnrollmentServiceParams struct {
	Repo      enrollmentRepository
	Cache     cacheInvalidator
	Audit     auditRecorder
	Metrics   *MetricsService
	Validator *validator.Validate
	Logger    *zap.Logger
}

// EnrollmentService admits or rejects enrollments against class capacity and weekly teacher limits.
type EnrollmentService struct {
	repo      enrollmentRepository
	cache     cacheInvalidator
	audit     auditRecorder
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(params EnrollmentServiceParams) *EnrollmentService {
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		repo:      params.Repo,
		cache:     params.Cache,
		audit:     params.Audit,
		metrics:   params.Metrics,
		validator: validate,
		logger:    logger,
	}
}

// RequestEnrollment books the student into the class. All checks and the insert run in one
// transaction holding the class row lock, so concurrent requests for a class are serialised.
func (s *EnrollmentService) RequestEnrollment(ctx context.Context, identity models.Identity, req dto.EnrollRequest) (record *models.EnrollmentRecord, err error) {
	defer func() { s.observe(ctx, enrollOperation, identity, req.ClassID, err) }()

	if !identity.IsStudent() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can enroll in classes")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid enrollment payload")
	}

	err = s.repo.Transact(ctx, func(store repository.EnrollmentStore) error {
		var admitErr error
		record, admitErr = s.admit(ctx, store, identity.UserID, req)
		return admitErr
	})
	if err != nil {
		return nil, storeFailure(err, "enrollment transaction")
	}

	s.afterChange(ctx)
	if s.audit != nil {
		s.audit.Record(ctx, AuditEvent{
			ActorID:    identity.UserID,
			Action:     models.AuditActionEnroll,
			Resource:   "class",
			ResourceID: req.ClassID,
			Values:     map[string]interface{}{"teacher_id": req.TeacherID, "enrollment_id": record.ID},
		})
	}
	return record, nil
}

func (s *EnrollmentService) admit(ctx context.Context, store repository.EnrollmentStore, studentID string, req dto.EnrollRequest) (*models.EnrollmentRecord, error) {
	class, err := store.LockClass(ctx, req.ClassID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, storeFailure(err, "load class")
	}
	if class.TeacherID != req.TeacherID {
		return nil, appErrors.ErrTeacherMismatch
	}

	limit, err := store.LockLimit(ctx, req.TeacherID, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNoAllowance
		}
		return nil, storeFailure(err, "load weekly limit")
	}

	held, err := store.CountByStudentAndTeacher(ctx, studentID, req.TeacherID)
	if err != nil {
		return nil, storeFailure(err, "count enrollments with teacher")
	}
	if held >= limit.WeeklyClassLimit {
		return nil, appErrors.WithDetails(appErrors.ErrLimitReached,
			fmt.Sprintf("weekly class limit reached (%d)", limit.WeeklyClassLimit),
			map[string]interface{}{"weekly_class_limit": limit.WeeklyClassLimit, "current_enrollments": held})
	}

	exists, err := store.Exists(ctx, studentID, req.ClassID)
	if err != nil {
		return nil, storeFailure(err, "check enrollment")
	}
	if exists {
		return nil, appErrors.ErrAlreadyEnrolled
	}

	enrolled, err := store.CountByClass(ctx, req.ClassID)
	if err != nil {
		return nil, storeFailure(err, "count class enrollments")
	}
	if class.MaxCapacity-enrolled <= 0 {
		return nil, appErrors.WithDetails(appErrors.ErrClassFull, "",
			map[string]interface{}{"max_capacity": class.MaxCapacity, "available_spots": class.MaxCapacity - enrolled})
	}

	enrollment := &models.Enrollment{StudentID: studentID, ClassID: req.ClassID}
	if err := store.Create(ctx, enrollment); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.ErrAlreadyEnrolled
		}
		return nil, storeFailure(err, "insert enrollment")
	}

	enrolled, err = store.CountByClass(ctx, req.ClassID)
	if err != nil {
		return nil, storeFailure(err, "refresh class availability")
	}
	return &models.EnrollmentRecord{
		Enrollment:     *enrollment,
		TeacherID:      class.TeacherID,
		AvailableSpots: class.MaxCapacity - enrolled,
	}, nil
}

// CancelEnrollment removes the student's booking. Cancelling a booking that does not exist succeeds.
func (s *EnrollmentService) CancelEnrollment(ctx context.Context, identity models.Identity, classID string) (err error) {
	defer func() { s.observe(ctx, cancelOperation, identity, classID, err) }()

	if !identity.IsStudent() {
		return appErrors.Clone(appErrors.ErrForbidden, "only students can cancel enrollments")
	}
	if classID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "class id is required")
	}

	removed, err := s.repo.Delete(ctx, identity.UserID, classID)
	if err != nil {
		return storeFailure(err, "delete enrollment")
	}
	if !removed {
		return nil
	}

	s.afterChange(ctx)
	if s.audit != nil {
		s.audit.Record(ctx, AuditEvent{
			ActorID:    identity.UserID,
			Action:     models.AuditActionCancelEnrollment,
			Resource:   "class",
			ResourceID: classID,
		})
	}
	return nil
}

// AvailableSpots reports capacity, current enrollments and spots left for a class.
func (s *EnrollmentService) AvailableSpots(ctx context.Context, classID string) (*models.Availability, error) {
	availability, err := s.repo.Availability(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, storeFailure(err, "class availability")
	}
	return availability, nil
}

// ListMine returns the caller's bookings.
func (s *EnrollmentService) ListMine(ctx context.Context, identity models.Identity) ([]models.EnrollmentDetail, error) {
	if !identity.IsStudent() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students hold enrollments")
	}
	items, err := s.repo.ListByStudent(ctx, identity.UserID)
	if err != nil {
		return nil, storeFailure(err, "list enrollments")
	}
	if items == nil {
		items = []models.EnrollmentDetail{}
	}
	return items, nil
}

func (s *EnrollmentService) afterChange(ctx context.Context) {
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, teacherDirectoryCachePattern)
	}
}

func (s *EnrollmentService) observe(ctx context.Context, operation string, identity models.Identity, classID string, err error) {
	s.metrics.RecordEnrollmentOutcome(operation, outcomeLabel(err, "ok"))
	if err == nil {
		return
	}
	fields := []zap.Field{
		zap.String("operation", operation),
		zap.String("student_id", identity.UserID),
		zap.String("class_id", classID),
		zap.String("reason", appErrors.FromError(err).Code),
	}
	if reqID := requestid.FromContext(ctx); reqID != "" {
		fields = append(fields, zap.String("request_id", reqID))
	}
	if isStoreFailure(err) {
		s.logger.Error("enrollment store failure", append(fields, zap.Error(err))...)
		return
	}
	s.logger.Info("enrollment rejected", fields...)
}
