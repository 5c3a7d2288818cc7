package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/yoga-booking-api/internal/dto"
	"github.com/noah-isme/yoga-booking-api/internal/models"
	"github.com/noah-isme/yoga-booking-api/internal/repository"
	appErrors "github.com/noah-isme/yoga-booking-api/pkg/errors"
)

type mockClassRepo struct {
	classes    map[string]*models.ClassSlot
	enrolled   map[string]int
	roster     []models.RosterEntry
	lastFilter models.ClassFilter
	listErr    error
}

func newMockClassRepo() *mockClassRepo {
	return &mockClassRepo{classes: map[string]*models.ClassSlot{}, enrolled: map[string]int{}}
}

func (m *mockClassRepo) List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, error) {
	m.lastFilter = filter
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []models.ClassDetail
	for _, c := range m.classes {
		if filter.TeacherID != "" && c.TeacherID != filter.TeacherID {
			continue
		}
		out = append(out, models.ClassDetail{ClassSlot: *c, CurrentEnrollments: m.enrolled[c.ID], AvailableSpots: c.MaxCapacity - m.enrolled[c.ID]})
	}
	return out, nil
}

func (m *mockClassRepo) ListByTeacher(ctx context.Context, teacherID string) ([]models.ClassDetail, error) {
	return m.List(ctx, models.ClassFilter{TeacherID: teacherID})
}

func (m *mockClassRepo) FindByID(ctx context.Context, id string) (*models.ClassSlot, error) {
	c, ok := m.classes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *c
	return &cp, nil
}

func (m *mockClassRepo) FindDetailByID(ctx context.Context, id, viewerID string) (*models.ClassDetail, error) {
	c, ok := m.classes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.ClassDetail{ClassSlot: *c, AvailableSpots: c.MaxCapacity - m.enrolled[id]}, nil
}

func (m *mockClassRepo) Roster(ctx context.Context, classID string) ([]models.RosterEntry, error) {
	var out []models.RosterEntry
	for _, r := range m.roster {
		if r.ClassID == classID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockClassRepo) RostersByTeacher(ctx context.Context, teacherID string) ([]models.RosterEntry, error) {
	return m.roster, nil
}

func (m *mockClassRepo) Create(ctx context.Context, class *models.ClassSlot) error {
	class.ID = "class-" + class.Title
	cp := *class
	m.classes[class.ID] = &cp
	return nil
}

func (m *mockClassRepo) Update(ctx context.Context, class *models.ClassSlot) error {
	existing, ok := m.classes[class.ID]
	if !ok || existing.TeacherID != class.TeacherID {
		return sql.ErrNoRows
	}
	if class.MaxCapacity < m.enrolled[class.ID] {
		return &repository.CapacityError{Enrolled: m.enrolled[class.ID]}
	}
	cp := *class
	m.classes[class.ID] = &cp
	return nil
}

func (m *mockClassRepo) Delete(ctx context.Context, id, teacherID string) error {
	existing, ok := m.classes[id]
	if !ok || existing.TeacherID != teacherID {
		return sql.ErrNoRows
	}
	delete(m.classes, id)
	return nil
}

func intPtr(v int) *int { return &v }

func validClassRequest() dto.ClassRequest {
	return dto.ClassRequest{Title: "Vinyasa", DayOfWeek: intPtr(1), StartTime: "07:30", EndTime: "08:30", MaxCapacity: 10}
}

var (
	teacherIdentity = models.Identity{UserID: "t1", Role: models.RoleTeacher}
	studentIdentity = models.Identity{UserID: "s1", Role: models.RoleStudent}
)

func newClassFixture() (*ClassService, *mockClassRepo, *invalidatorStub, *auditEventsStub) {
	repo := newMockClassRepo()
	cache := &invalidatorStub{}
	audit := &auditEventsStub{}
	return NewClassService(ClassServiceParams{Repo: repo, Cache: cache, Audit: audit}), repo, cache, audit
}

func TestClassServiceCreate(t *testing.T) {
	svc, repo, cache, audit := newClassFixture()

	class, err := svc.Create(context.Background(), teacherIdentity, validClassRequest())
	require.NoError(t, err)
	assert.Equal(t, "t1", class.TeacherID)
	assert.Contains(t, repo.classes, class.ID)
	assert.Equal(t, []string{teacherDirectoryCachePattern}, cache.patterns)
	require.Len(t, audit.events, 1)
	assert.Equal(t, models.AuditActionClassCreate, audit.events[0].Action)
}

func TestClassServiceCreateValidation(t *testing.T) {
	svc, repo, _, _ := newClassFixture()
	cases := map[string]func(r *dto.ClassRequest){
		"missing day":        func(r *dto.ClassRequest) { r.DayOfWeek = nil },
		"day too large":      func(r *dto.ClassRequest) { r.DayOfWeek = intPtr(7) },
		"bad time":           func(r *dto.ClassRequest) { r.StartTime = "7:30" },
		"hour overflow":      func(r *dto.ClassRequest) { r.EndTime = "25:00" },
		"end before":         func(r *dto.ClassRequest) { r.EndTime = "07:00" },
		"equal times":        func(r *dto.ClassRequest) { r.EndTime = r.StartTime },
		"zero capacity":      func(r *dto.ClassRequest) { r.MaxCapacity = 0 },
		"missing title":      func(r *dto.ClassRequest) { r.Title = "" },
		"blank title":        func(r *dto.ClassRequest) { r.Title = "    " },
		"padded short title": func(r *dto.ClassRequest) { r.Title = "  a  " },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := validClassRequest()
			mutate(&req)
			_, err := svc.Create(context.Background(), teacherIdentity, req)
			assert.True(t, errors.Is(err, appErrors.ErrValidation))
		})
	}
	assert.Empty(t, repo.classes)
}

func TestClassServiceCreateStoresTrimmedText(t *testing.T) {
	svc, _, _, _ := newClassFixture()
	req := validClassRequest()
	req.Title = "  Yin  "
	req.Description = " slow evening flow \n"

	class, err := svc.Create(context.Background(), teacherIdentity, req)
	require.NoError(t, err)
	assert.Equal(t, "Yin", class.Title)
	assert.Equal(t, "slow evening flow", class.Description)
}

func TestClassServiceCreateSundayIsValid(t *testing.T) {
	svc, _, _, _ := newClassFixture()
	req := validClassRequest()
	req.DayOfWeek = intPtr(0)
	class, err := svc.Create(context.Background(), teacherIdentity, req)
	require.NoError(t, err)
	assert.Equal(t, 0, class.DayOfWeek)
}

func TestClassServiceCreateRequiresTeacher(t *testing.T) {
	svc, _, _, _ := newClassFixture()
	_, err := svc.Create(context.Background(), studentIdentity, validClassRequest())
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestClassServiceUpdateCapacityBelowEnrollments(t *testing.T) {
	svc, repo, _, _ := newClassFixture()
	class, err := svc.Create(context.Background(), teacherIdentity, validClassRequest())
	require.NoError(t, err)
	repo.enrolled[class.ID] = 4

	req := validClassRequest()
	req.MaxCapacity = 3
	_, err = svc.Update(context.Background(), teacherIdentity, class.ID, req)
	require.True(t, errors.Is(err, appErrors.ErrPreconditionFailed))
	appErr := appErrors.FromError(err)
	assert.Contains(t, appErr.Message, "(4)")
	assert.Equal(t, 4, appErr.Details["current_enrollments"])

	req.MaxCapacity = 4
	updated, err := svc.Update(context.Background(), teacherIdentity, class.ID, req)
	require.NoError(t, err)
	assert.Equal(t, 4, updated.MaxCapacity)
}

func TestClassServiceUpdateOtherTeachersClass(t *testing.T) {
	svc, _, _, _ := newClassFixture()
	class, err := svc.Create(context.Background(), teacherIdentity, validClassRequest())
	require.NoError(t, err)

	other := models.Identity{UserID: "t2", Role: models.RoleTeacher}
	_, err = svc.Update(context.Background(), other, class.ID, validClassRequest())
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	err = svc.Delete(context.Background(), other, class.ID)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestClassServiceDelete(t *testing.T) {
	svc, repo, cache, _ := newClassFixture()
	class, err := svc.Create(context.Background(), teacherIdentity, validClassRequest())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), teacherIdentity, class.ID))
	assert.Empty(t, repo.classes)
	assert.Len(t, cache.patterns, 2)
}

func TestClassServiceCatalog(t *testing.T) {
	svc, repo, _, _ := newClassFixture()
	_, err := svc.Create(context.Background(), teacherIdentity, validClassRequest())
	require.NoError(t, err)

	items, err := svc.Catalog(context.Background(), studentIdentity, dto.CatalogQuery{Filter: "available", Day: intPtr(1)})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, models.CatalogAvailable, repo.lastFilter.View)
	assert.Equal(t, "s1", repo.lastFilter.ViewerID)
	require.NotNil(t, repo.lastFilter.DayOfWeek)
	assert.Equal(t, 1, *repo.lastFilter.DayOfWeek)

	_, err = svc.Catalog(context.Background(), studentIdentity, dto.CatalogQuery{Filter: "nope"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Catalog(context.Background(), teacherIdentity, dto.CatalogQuery{Filter: "mine"})
	require.NoError(t, err)
	assert.Equal(t, "t1", repo.lastFilter.TeacherID)
}

func TestClassServiceCatalogDefaultsToAll(t *testing.T) {
	svc, repo, _, _ := newClassFixture()
	items, err := svc.Catalog(context.Background(), studentIdentity, dto.CatalogQuery{})
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Equal(t, models.CatalogAll, repo.lastFilter.View)
}

func TestClassServiceCatalogStoreFailure(t *testing.T) {
	svc, repo, _, _ := newClassFixture()
	repo.listErr = errors.New("timeout")
	_, err := svc.Catalog(context.Background(), studentIdentity, dto.CatalogQuery{})
	assert.True(t, errors.Is(err, appErrors.ErrStoreUnavailable))
}

func TestClassServiceListOwnGroupsRosters(t *testing.T) {
	svc, repo, _, _ := newClassFixture()
	class, err := svc.Create(context.Background(), teacherIdentity, validClassRequest())
	require.NoError(t, err)
	req := validClassRequest()
	req.Title = "Yin"
	empty, err := svc.Create(context.Background(), teacherIdentity, req)
	require.NoError(t, err)
	repo.roster = []models.RosterEntry{
		{ClassID: class.ID, StudentID: "s1", FullName: "Bea"},
		{ClassID: class.ID, StudentID: "s2", FullName: "Cid"},
	}

	items, err := svc.ListOwn(context.Background(), teacherIdentity)
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, item := range items {
		switch item.ID {
		case class.ID:
			assert.Len(t, item.Students, 2)
		case empty.ID:
			assert.NotNil(t, item.Students)
			assert.Empty(t, item.Students)
		}
	}
}

func TestClassServiceGetMissing(t *testing.T) {
	svc, _, _, _ := newClassFixture()
	_, err := svc.Get(context.Background(), studentIdentity, "missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestClassServiceExportRoster(t *testing.T) {
	svc, repo, _, _ := newClassFixture()
	class, err := svc.Create(context.Background(), teacherIdentity, validClassRequest())
	require.NoError(t, err)
	repo.roster = []models.RosterEntry{{ClassID: class.ID, FullName: "Bea", Email: "bea@example.com", EnrolledAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}}

	file, err := svc.ExportRoster(context.Background(), teacherIdentity, class.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "text/csv; charset=utf-8", file.ContentType)
	assert.Equal(t, "roster-"+class.ID+".csv", file.Filename)
	assert.Contains(t, string(file.Body), "bea@example.com")

	pdf, err := svc.ExportRoster(context.Background(), teacherIdentity, class.ID, "pdf")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf.Body, []byte("%PDF")))

	_, err = svc.ExportRoster(context.Background(), teacherIdentity, class.ID, "xlsx")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	other := models.Identity{UserID: "t2", Role: models.RoleTeacher}
	_, err = svc.ExportRoster(context.Background(), other, class.ID, "csv")
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}
