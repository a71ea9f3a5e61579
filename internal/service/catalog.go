package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"seminarbuchung/internal/logger"
	"seminarbuchung/internal/models"
	"seminarbuchung/internal/search"
)

const seminarListTTL = 5 * time.Minute

// CatalogService serves the read-only public seminar catalog
type CatalogService struct {
	catalog  Catalog
	cache    SeminarCache
	searcher SessionSearcher
}

// NewCatalogService creates the service. cache and searcher may be nil.
func NewCatalogService(catalog Catalog, cache SeminarCache, searcher SessionSearcher) *CatalogService {
	return &CatalogService{catalog: catalog, cache: cache, searcher: searcher}
}

// List returns active courses by name with their planned sessions
func (s *CatalogService) List(ctx context.Context) ([]models.SeminarWithSessions, error) {
	if s.cache != nil {
		data, err := s.cache.GetSeminarList(ctx)
		if err != nil {
			logger.WithContext(ctx).Warn("Seminar cache lookup failed", "error", err)
		} else if data != nil {
			var cached []models.SeminarWithSessions
			if err := json.Unmarshal(data, &cached); err == nil {
				return cached, nil
			}
		}
	}

	courses, err := s.catalog.ListActiveCourses(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}

	sessions, err := s.catalog.ListPlannedSessions(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	byCourse := make(map[int64][]models.Session)
	for _, session := range sessions {
		byCourse[session.CourseID] = append(byCourse[session.CourseID], session)
	}

	result := make([]models.SeminarWithSessions, 0, len(courses))
	for _, course := range courses {
		courseSessions := byCourse[course.ID]
		if courseSessions == nil {
			courseSessions = []models.Session{}
		}
		result = append(result, models.SeminarWithSessions{Course: course, Sessions: courseSessions})
	}

	if s.cache != nil {
		if data, err := json.Marshal(result); err == nil {
			if err := s.cache.SetSeminarList(ctx, data, seminarListTTL); err != nil {
				logger.WithContext(ctx).Warn("Failed to cache seminar list", "error", err)
			}
		}
	}

	return result, nil
}

// Detail returns one active course with planned sessions, or nil when unknown
func (s *CatalogService) Detail(ctx context.Context, slug string) (*models.SeminarWithSessions, error) {
	course, err := s.catalog.GetCourseBySlug(ctx, strings.TrimSpace(slug))
	if err != nil {
		return nil, fmt.Errorf("failed to get course: %w", err)
	}
	if course == nil {
		return nil, nil
	}

	sessions, err := s.catalog.ListPlannedSessions(ctx, course.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	if sessions == nil {
		sessions = []models.Session{}
	}

	return &models.SeminarWithSessions{Course: *course, Sessions: sessions}, nil
}

// Search queries the session index. Without a search backend it returns an empty list.
func (s *CatalogService) Search(ctx context.Context, query string, page, pageSize int) ([]search.SessionDocument, error) {
	if s.searcher == nil {
		return []search.SessionDocument{}, nil
	}

	docs, err := s.searcher.Search(ctx, query, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to search sessions: %w", err)
	}
	return docs, nil
}
