package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/yoga-booking-api/internal/dto"
	"github.com/noah-isme/yoga-booking-api/internal/models"
	appErrors "github.com/noah-isme/yoga-booking-api/pkg/errors"
)

type mockLimitRepo struct {
	limits  map[string]*models.WeeklyLimit
	deleted []string
}

func (m *mockLimitRepo) Upsert(ctx context.Context, limit *models.WeeklyLimit) error {
	for _, existing := range m.limits {
		if existing.TeacherID == limit.TeacherID && existing.StudentID == limit.StudentID {
			existing.WeeklyClassLimit = limit.WeeklyClassLimit
			*limit = *existing
			return nil
		}
	}
	limit.ID = "limit-" + limit.StudentID
	cp := *limit
	m.limits[limit.ID] = &cp
	return nil
}

func (m *mockLimitRepo) UpdateLimit(ctx context.Context, id, teacherID string, weeklyLimit int) (*models.WeeklyLimit, error) {
	existing, ok := m.limits[id]
	if !ok || existing.TeacherID != teacherID {
		return nil, sql.ErrNoRows
	}
	existing.WeeklyClassLimit = weeklyLimit
	cp := *existing
	return &cp, nil
}

func (m *mockLimitRepo) DeleteByStudent(ctx context.Context, teacherID, studentID string) (bool, error) {
	m.deleted = append(m.deleted, studentID)
	for id, existing := range m.limits {
		if existing.TeacherID == teacherID && existing.StudentID == studentID {
			delete(m.limits, id)
			return true, nil
		}
	}
	return false, nil
}

func (m *mockLimitRepo) ListSummaries(ctx context.Context, teacherID string) ([]models.LimitSummary, error) {
	return nil, nil
}

type mockStudentFinder struct {
	profiles []models.Profile
}

func (m *mockStudentFinder) FindStudents(ctx context.Context, identifier string) ([]models.Profile, error) {
	var out []models.Profile
	for _, p := range m.profiles {
		if p.Email == identifier || p.FullName == identifier {
			out = append(out, p)
		}
	}
	return out, nil
}

func newLimitFixture() (*LimitService, *mockLimitRepo, *auditEventsStub) {
	repo := &mockLimitRepo{limits: map[string]*models.WeeklyLimit{}}
	finder := &mockStudentFinder{profiles: []models.Profile{
		{ID: "s1", Email: "bea@example.com", FullName: "Bea"},
		{ID: "s2", Email: "sam1@example.com", FullName: "Sam"},
		{ID: "s3", Email: "sam2@example.com", FullName: "Sam"},
	}}
	audit := &auditEventsStub{}
	return NewLimitService(repo, finder, audit, nil, nil), repo, audit
}

func TestLimitServiceAssignUpserts(t *testing.T) {
	svc, repo, audit := newLimitFixture()

	limit, err := svc.Assign(context.Background(), teacherIdentity, dto.AssignLimitRequest{Student: " bea@example.com ", WeeklyClassLimit: intPtr(2)})
	require.NoError(t, err)
	assert.Equal(t, "s1", limit.StudentID)
	assert.Equal(t, "t1", limit.TeacherID)

	again, err := svc.Assign(context.Background(), teacherIdentity, dto.AssignLimitRequest{Student: "Bea", WeeklyClassLimit: intPtr(3)})
	require.NoError(t, err)
	assert.Equal(t, limit.ID, again.ID)
	assert.Len(t, repo.limits, 1)
	assert.Equal(t, 3, repo.limits[limit.ID].WeeklyClassLimit)
	assert.Len(t, audit.events, 2)
}

func TestLimitServiceAssignStudentLookup(t *testing.T) {
	svc, _, _ := newLimitFixture()

	_, err := svc.Assign(context.Background(), teacherIdentity, dto.AssignLimitRequest{Student: "nobody", WeeklyClassLimit: intPtr(1)})
	require.True(t, errors.Is(err, appErrors.ErrNotFound))
	assert.Equal(t, "student not found", appErrors.FromError(err).Message)

	_, err = svc.Assign(context.Background(), teacherIdentity, dto.AssignLimitRequest{Student: "Sam", WeeklyClassLimit: intPtr(1)})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
}

func TestLimitServiceAssignValidation(t *testing.T) {
	svc, _, _ := newLimitFixture()

	_, err := svc.Assign(context.Background(), teacherIdentity, dto.AssignLimitRequest{Student: "Bea"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	_, err = svc.Assign(context.Background(), teacherIdentity, dto.AssignLimitRequest{Student: "Bea", WeeklyClassLimit: intPtr(-1)})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	_, err = svc.Assign(context.Background(), studentIdentity, dto.AssignLimitRequest{Student: "Bea", WeeklyClassLimit: intPtr(1)})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestLimitServiceUpdateOwnership(t *testing.T) {
	svc, _, _ := newLimitFixture()
	limit, err := svc.Assign(context.Background(), teacherIdentity, dto.AssignLimitRequest{Student: "Bea", WeeklyClassLimit: intPtr(1)})
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), teacherIdentity, limit.ID, dto.UpdateLimitRequest{WeeklyClassLimit: intPtr(5)})
	require.NoError(t, err)
	assert.Equal(t, 5, updated.WeeklyClassLimit)

	other := models.Identity{UserID: "t2", Role: models.RoleTeacher}
	_, err = svc.Update(context.Background(), other, limit.ID, dto.UpdateLimitRequest{WeeklyClassLimit: intPtr(9)})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestLimitServiceDeleteAndList(t *testing.T) {
	svc, repo, audit := newLimitFixture()
	repo.limits["limit-s1"] = &models.WeeklyLimit{ID: "limit-s1", TeacherID: teacherIdentity.UserID, StudentID: "s1", WeeklyClassLimit: 2}

	require.NoError(t, svc.Delete(context.Background(), teacherIdentity, "s1"))
	require.NoError(t, svc.Delete(context.Background(), teacherIdentity, "s1"))
	assert.Equal(t, []string{"s1", "s1"}, repo.deleted)
	assert.Empty(t, repo.limits)
	require.Len(t, audit.events, 1)
	assert.Equal(t, models.AuditActionLimitDelete, audit.events[0].Action)

	items, err := svc.List(context.Background(), teacherIdentity)
	require.NoError(t, err)
	assert.NotNil(t, items)
}
