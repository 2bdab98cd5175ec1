// Package courses serves cached course reads for the CLI.
package courses

import (
	"context"
	"fmt"
	"strings"

	"moodle-assistant/internal/cache"
	"moodle-assistant/internal/common/errors"
	"moodle-assistant/internal/common/logger"
	"moodle-assistant/internal/models"

	"golang.org/x/sync/errgroup"
)

// Cache keys. Per-course keys append ":<id>".
const (
	KeyCourses        = "courses"
	KeyCourse         = "course"
	KeyCourseContents = "course-contents"
	KeyCourseFiles    = "course-files"
)

// API is the read side of api.Client used here.
type API interface {
	Courses(ctx context.Context) ([]models.Course, error)
	Course(ctx context.Context, courseID int64) (*models.Course, error)
	CourseContents(ctx context.Context, courseID int64) ([]models.CourseContent, error)
	CourseFiles(ctx context.Context, courseID int64, fileType string) (*models.DownloadInfo, error)
}

// SuggestionSource supplies the chat prompts shown on the dashboard.
type SuggestionSource interface {
	Suggestions(ctx context.Context) ([]string, error)
}

type Service struct {
	api         API
	cache       *cache.Cache
	suggestions SuggestionSource
	logger      logger.Logger
}

// NewService builds the service. suggestions may be nil, in which case the
// overview carries none.
func NewService(api API, queryCache *cache.Cache, suggestions SuggestionSource, log logger.Logger) *Service {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Service{
		api:         api,
		cache:       queryCache,
		suggestions: suggestions,
		logger:      log.WithFields(map[string]interface{}{"component": "courses"}),
	}
}

func (s *Service) Courses(ctx context.Context) ([]models.Course, error) {
	return cache.Fetch(ctx, s.cache, KeyCourses, s.api.Courses)
}

// Search returns the cached course list filtered by term. A blank term matches
// every course.
func (s *Service) Search(ctx context.Context, term string) ([]models.Course, error) {
	list, err := s.Courses(ctx)
	if err != nil {
		return nil, err
	}
	return FilterCourses(list, term), nil
}

// FilterCourses keeps the courses whose full or short name contains term,
// ignoring case.
func FilterCourses(list []models.Course, term string) []models.Course {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return list
	}

	out := make([]models.Course, 0, len(list))
	for _, c := range list {
		if strings.Contains(strings.ToLower(c.Fullname), term) ||
			strings.Contains(strings.ToLower(c.Shortname), term) {
			out = append(out, c)
		}
	}
	return out
}

func (s *Service) Course(ctx context.Context, courseID int64) (*models.Course, error) {
	if err := validateCourseID(courseID); err != nil {
		return nil, err
	}
	return cache.Fetch(ctx, s.cache, courseKey(KeyCourse, courseID), func(ctx context.Context) (*models.Course, error) {
		return s.api.Course(ctx, courseID)
	})
}

func (s *Service) Contents(ctx context.Context, courseID int64) ([]models.CourseContent, error) {
	if err := validateCourseID(courseID); err != nil {
		return nil, err
	}
	return cache.Fetch(ctx, s.cache, courseKey(KeyCourseContents, courseID), func(ctx context.Context) ([]models.CourseContent, error) {
		return s.api.CourseContents(ctx, courseID)
	})
}

// Files lists downloadable files, optionally only those with the given extension.
func (s *Service) Files(ctx context.Context, courseID int64, fileType string) (*models.DownloadInfo, error) {
	if err := validateCourseID(courseID); err != nil {
		return nil, err
	}
	fileType = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(fileType), "."))

	key := fmt.Sprintf("%s:%d:%s", KeyCourseFiles, courseID, fileType)
	return cache.Fetch(ctx, s.cache, key, func(ctx context.Context) (*models.DownloadInfo, error) {
		return s.api.CourseFiles(ctx, courseID, fileType)
	})
}

// Overview is the dashboard summary.
type Overview struct {
	User         *models.UserInfo
	Courses      []models.Course
	Suggestions  []string
	CourseCount  int
	VisibleCount int
}

// Overview loads courses and suggestions concurrently.
func (s *Service) Overview(ctx context.Context, user *models.UserInfo) (*Overview, error) {
	out := &Overview{User: user}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		list, err := s.Courses(gctx)
		if err != nil {
			return err
		}
		out.Courses = list
		return nil
	})

	if s.suggestions != nil {
		g.Go(func() error {
			list, err := s.suggestions.Suggestions(gctx)
			if err != nil {
				return err
			}
			out.Suggestions = list
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out.CourseCount = len(out.Courses)
	for i := range out.Courses {
		if out.Courses[i].IsVisible() {
			out.VisibleCount++
		}
	}
	return out, nil
}

func courseKey(prefix string, courseID int64) string {
	return fmt.Sprintf("%s:%d", prefix, courseID)
}

func validateCourseID(courseID int64) error {
	if courseID <= 0 {
		return errors.NewValidationError("course_id", fmt.Sprintf("course id must be positive, got %d", courseID))
	}
	return nil
}
