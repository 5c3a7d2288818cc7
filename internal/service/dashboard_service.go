package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/yoga-booking-api/internal/dto"
	"github.com/noah-isme/yoga-booking-api/internal/models"
	appErrors "github.com/noah-isme/yoga-booking-api/pkg/errors"
)

type profileReader interface {
	FindByID(ctx context.Context, id string) (*models.Profile, error)
}

type studentEnrollmentLister interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error)
}

type dashboardLimitReader interface {
	ListAllowances(ctx context.Context, studentID string) ([]models.Allowance, error)
	ListSummaries(ctx context.Context, teacherID string) ([]models.LimitSummary, error)
}

type teacherClassLister interface {
	ListOwn(ctx context.Context, identity models.Identity) ([]models.TeacherClass, error)
}

type studentCounter interface {
	CountStudents(ctx context.Context, teacherID string) (int, error)
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Profiles    profileReader
	Enrollments studentEnrollmentLister
	Limits      dashboardLimitReader
	Classes     teacherClassLister
	Students    studentCounter
	Logger      *zap.Logger
}

// DashboardService composes the landing payload for the caller's role.
type DashboardService struct {
	profiles    profileReader
	enrollments studentEnrollmentLister
	limits      dashboardLimitReader
	classes     teacherClassLister
	students    studentCounter
	logger      *zap.Logger
}

// NewDashboardService constructs a DashboardService.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		profiles:    params.Profiles,
		enrollments: params.Enrollments,
		limits:      params.Limits,
		classes:     params.Classes,
		students:    params.Students,
		logger:      logger,
	}
}

// Get returns the student or teacher dashboard depending on the caller's role.
func (s *DashboardService) Get(ctx context.Context, identity models.Identity) (*dto.DashboardResponse, error) {
	profile, err := s.profiles.FindByID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "profile not found")
		}
		return nil, storeFailure(err, "load profile")
	}

	switch profile.Role {
	case models.RoleStudent:
		student, err := s.student(ctx, profile)
		if err != nil {
			return nil, err
		}
		return &dto.DashboardResponse{Role: profile.Role, Student: student}, nil
	case models.RoleTeacher:
		teacher, err := s.teacher(ctx, profile)
		if err != nil {
			return nil, err
		}
		return &dto.DashboardResponse{Role: profile.Role, Teacher: teacher}, nil
	default:
		s.logger.Warn("profile with unknown role", zap.String("user_id", profile.ID), zap.String("role", string(profile.Role)))
		return nil, appErrors.Clone(appErrors.ErrForbidden, "unsupported role")
	}
}

func (s *DashboardService) student(ctx context.Context, profile *models.Profile) (*dto.StudentDashboard, error) {
	enrollments, err := s.enrollments.ListByStudent(ctx, profile.ID)
	if err != nil {
		return nil, storeFailure(err, "list enrollments")
	}
	allowances, err := s.limits.ListAllowances(ctx, profile.ID)
	if err != nil {
		return nil, storeFailure(err, "list allowances")
	}
	if enrollments == nil {
		enrollments = []models.EnrollmentDetail{}
	}
	if allowances == nil {
		allowances = []models.Allowance{}
	}
	return &dto.StudentDashboard{Profile: profile.Info(), Enrollments: enrollments, Allowances: allowances}, nil
}

func (s *DashboardService) teacher(ctx context.Context, profile *models.Profile) (*dto.TeacherDashboard, error) {
	identity := models.Identity{UserID: profile.ID, Role: profile.Role}
	classes, err := s.classes.ListOwn(ctx, identity)
	if err != nil {
		return nil, err
	}
	total, err := s.students.CountStudents(ctx, profile.ID)
	if err != nil {
		return nil, storeFailure(err, "count students")
	}
	limits, err := s.limits.ListSummaries(ctx, profile.ID)
	if err != nil {
		return nil, storeFailure(err, "list weekly limits")
	}
	if limits == nil {
		limits = []models.LimitSummary{}
	}
	return &dto.TeacherDashboard{Profile: profile.Info(), Classes: classes, TotalStudents: total, Limits: limits}, nil
}
