package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/yoga-booking-api/internal/dto"
	"github.com/noah-isme/yoga-booking-api/internal/models"
	"github.com/noah-isme/yoga-booking-api/internal/repository"
	appErrors "github.com/noah-isme/yoga-booking-api/pkg/errors"
	"github.com/noah-isme/yoga-booking-api/pkg/export"
)

var weekdayNames = [...]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

type classRepository interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]models.ClassDetail, error)
	FindByID(ctx context.Context, id string) (*models.ClassSlot, error)
	FindDetailByID(ctx context.Context, id, viewerID string) (*models.ClassDetail, error)
	Roster(ctx context.Context, classID string) ([]models.RosterEntry, error)
	RostersByTeacher(ctx context.Context, teacherID string) ([]models.RosterEntry, error)
	Create(ctx context.Context, class *models.ClassSlot) error
	Update(ctx context.Context, class *models.ClassSlot) error
	Delete(ctx context.Context, id, teacherID string) error
}

// ClassServiceParams groups constructor dependencies.
type ClassServiceParams struct {
	Repo      classRepository
	Cache     cacheInvalidator
	Audit     auditRecorder
	Validator *validator.Validate
	Logger    *zap.Logger
}

// ClassService manages class slots for teachers and the public catalog.
type ClassService struct {
	repo      classRepository
	cache     cacheInvalidator
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassService constructs ClassService and registers the hhmm validation tag.
func NewClassService(params ClassServiceParams) *ClassService {
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	_ = validate.RegisterValidation("hhmm", validateClockTime)
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{
		repo:      params.Repo,
		cache:     params.Cache,
		audit:     params.Audit,
		validator: validate,
		logger:    logger,
	}
}

func validateClockTime(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if len(value) != 5 {
		return false
	}
	_, err := time.Parse("15:04", value)
	return err == nil
}

// Catalog lists classes with teacher name and availability.
func (s *ClassService) Catalog(ctx context.Context, identity models.Identity, query dto.CatalogQuery) ([]models.ClassDetail, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, validationError(err, "invalid catalog filter")
	}
	filter := models.ClassFilter{
		View:      models.CatalogView(query.Filter),
		TeacherID: query.TeacherID,
		DayOfWeek: query.Day,
		ViewerID:  identity.UserID,
	}
	if filter.View == "" {
		filter.View = models.CatalogAll
	}
	// Teachers hold no enrollments; their "mine" is the classes they run.
	if filter.View == models.CatalogMine && identity.IsTeacher() {
		filter.View = models.CatalogAll
		filter.TeacherID = identity.UserID
	}

	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, storeFailure(err, "list classes")
	}
	if items == nil {
		items = []models.ClassDetail{}
	}
	return items, nil
}

// Get returns a class with availability; IsEnrolled reflects the caller.
func (s *ClassService) Get(ctx context.Context, identity models.Identity, id string) (*models.ClassDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id, identity.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, storeFailure(err, "load class")
	}
	return detail, nil
}

// ListOwn returns the teacher's classes each with its enrolled students.
func (s *ClassService) ListOwn(ctx context.Context, identity models.Identity) ([]models.TeacherClass, error) {
	if !identity.IsTeacher() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers manage classes")
	}
	classes, err := s.repo.ListByTeacher(ctx, identity.UserID)
	if err != nil {
		return nil, storeFailure(err, "list teacher classes")
	}
	rosters, err := s.repo.RostersByTeacher(ctx, identity.UserID)
	if err != nil {
		return nil, storeFailure(err, "list teacher rosters")
	}

	byClass := make(map[string][]models.RosterEntry, len(classes))
	for _, entry := range rosters {
		byClass[entry.ClassID] = append(byClass[entry.ClassID], entry)
	}
	result := make([]models.TeacherClass, 0, len(classes))
	for _, class := range classes {
		students := byClass[class.ID]
		if students == nil {
			students = []models.RosterEntry{}
		}
		result = append(result, models.TeacherClass{ClassDetail: class, Students: students})
	}
	return result, nil
}

// Create adds a class owned by the calling teacher.
func (s *ClassService) Create(ctx context.Context, identity models.Identity, req dto.ClassRequest) (*models.ClassSlot, error) {
	if !identity.IsTeacher() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers can create classes")
	}
	if err := s.validate(&req); err != nil {
		return nil, err
	}

	class := classFromRequest(req)
	class.TeacherID = identity.UserID
	if err := s.repo.Create(ctx, class); err != nil {
		return nil, storeFailure(err, "create class")
	}

	s.afterChange(ctx, identity, models.AuditActionClassCreate, class.ID, map[string]interface{}{
		"title":        class.Title,
		"day_of_week":  class.DayOfWeek,
		"max_capacity": class.MaxCapacity,
	})
	return class, nil
}

// Update edits a class owned by the calling teacher. Capacity may not drop below the enrolled count.
func (s *ClassService) Update(ctx context.Context, identity models.Identity, id string, req dto.ClassRequest) (*models.ClassSlot, error) {
	if !identity.IsTeacher() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers can edit classes")
	}
	if err := s.validate(&req); err != nil {
		return nil, err
	}

	class := classFromRequest(req)
	class.ID = id
	class.TeacherID = identity.UserID
	if err := s.repo.Update(ctx, class); err != nil {
		var capacityErr *repository.CapacityError
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		case errors.As(err, &capacityErr):
			return nil, appErrors.WithDetails(appErrors.ErrPreconditionFailed,
				fmt.Sprintf("max capacity cannot be lower than current enrollments (%d)", capacityErr.Enrolled),
				map[string]interface{}{"current_enrollments": capacityErr.Enrolled})
		default:
			return nil, storeFailure(err, "update class")
		}
	}

	s.afterChange(ctx, identity, models.AuditActionClassUpdate, class.ID, map[string]interface{}{
		"title":        class.Title,
		"day_of_week":  class.DayOfWeek,
		"max_capacity": class.MaxCapacity,
	})
	return class, nil
}

// Delete removes a class owned by the calling teacher along with its enrollments.
func (s *ClassService) Delete(ctx context.Context, identity models.Identity, id string) error {
	if !identity.IsTeacher() {
		return appErrors.Clone(appErrors.ErrForbidden, "only teachers can delete classes")
	}
	if err := s.repo.Delete(ctx, id, identity.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return storeFailure(err, "delete class")
	}
	s.afterChange(ctx, identity, models.AuditActionClassDelete, id, nil)
	return nil
}

// ExportRoster renders the enrolled students of one of the caller's classes.
func (s *ClassService) ExportRoster(ctx context.Context, identity models.Identity, id, rawFormat string) (*dto.RosterExport, error) {
	if !identity.IsTeacher() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers can export rosters")
	}
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "format must be csv or pdf")
	}

	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, storeFailure(err, "load class")
	}
	if class.TeacherID != identity.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "class belongs to another teacher")
	}

	roster, err := s.repo.Roster(ctx, id)
	if err != nil {
		return nil, storeFailure(err, "load roster")
	}

	dataset := export.Dataset{
		Title: class.Title,
		Subtitle: fmt.Sprintf("%s %s-%s, %d of %d spots taken",
			weekdayName(class.DayOfWeek), class.StartTime, class.EndTime, len(roster), class.MaxCapacity),
		Headers: []string{"Student", "Email", "Enrolled At"},
		Rows:    make([][]string, 0, len(roster)),
	}
	for _, entry := range roster {
		dataset.Rows = append(dataset.Rows, []string{entry.FullName, entry.Email, entry.EnrolledAt.UTC().Format(time.RFC3339)})
	}

	body, err := export.Render(format, dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
	}
	return &dto.RosterExport{
		Filename:    fmt.Sprintf("roster-%s.%s", class.ID, format),
		ContentType: format.ContentType(),
		Body:        body,
	}, nil
}

// validate trims text fields in place so whitespace cannot satisfy the length rules.
func (s *ClassService) validate(req *dto.ClassRequest) error {
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "invalid class payload")
	}
	if req.StartTime >= req.EndTime {
		return appErrors.Clone(appErrors.ErrValidation, "start_time must be before end_time")
	}
	return nil
}

func (s *ClassService) afterChange(ctx context.Context, identity models.Identity, action, classID string, values map[string]interface{}) {
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, teacherDirectoryCachePattern)
	}
	if s.audit != nil {
		s.audit.Record(ctx, AuditEvent{
			ActorID:    identity.UserID,
			Action:     action,
			Resource:   "class",
			ResourceID: classID,
			Values:     values,
		})
	}
	s.logger.Info("class changed", zap.String("action", action), zap.String("teacher_id", identity.UserID), zap.String("class_id", classID))
}

func classFromRequest(req dto.ClassRequest) *models.ClassSlot {
	return &models.ClassSlot{
		Title:       req.Title,
		Description: req.Description,
		DayOfWeek:   *req.DayOfWeek,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		MaxCapacity: req.MaxCapacity,
	}
}

func weekdayName(day int) string {
	if day < 0 || day >= len(weekdayNames) {
		return fmt.Sprintf("day %d", day)
	}
	return weekdayNames[day]
}
