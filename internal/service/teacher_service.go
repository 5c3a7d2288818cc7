package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/yoga-booking-api/internal/models"
)

// teacherDirectoryCachePattern matches every cached directory page.
const teacherDirectoryCachePattern = "teachers:*"

type teacherRepository interface {
	List(ctx context.Context, filter models.TeacherFilter) ([]models.TeacherSummary, int, error)
}

type directoryCache interface {
	Get(ctx context.Context, key string, dest interface{}) bool
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration)
}

type teacherDirectoryPage struct {
	Items []models.TeacherSummary `json:"items"`
	Total int                     `json:"total"`
}

// TeacherService serves the public teacher directory.
type TeacherService struct {
	repo   teacherRepository
	cache  directoryCache
	ttl    time.Duration
	logger *zap.Logger
}

// NewTeacherService constructs a TeacherService. cache may be nil.
func NewTeacherService(repo teacherRepository, cache directoryCache, ttl time.Duration, logger *zap.Logger) *TeacherService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeacherService{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

// List returns teachers plus pagination data. Pages are cached until a class or enrollment changes;
// the boolean reports whether the page came from cache.
func (s *TeacherService) List(ctx context.Context, filter models.TeacherFilter) ([]models.TeacherSummary, *models.Pagination, bool, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	key := fmt.Sprintf("teachers:%s:%d:%d", strings.ToLower(filter.Search), filter.Page, filter.PageSize)

	var page teacherDirectoryPage
	hit := s.cache != nil && s.cache.Get(ctx, key, &page)
	if !hit {
		items, total, err := s.repo.List(ctx, filter)
		if err != nil {
			return nil, nil, false, storeFailure(err, "list teachers")
		}
		if items == nil {
			items = []models.TeacherSummary{}
		}
		page = teacherDirectoryPage{Items: items, Total: total}
		if s.cache != nil {
			s.cache.Set(ctx, key, page, s.ttl)
		}
	}

	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: page.Total}
	return page.Items, pagination, hit, nil
}
