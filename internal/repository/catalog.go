package repository

import (
	"context"
	"database/sql"
	"fmt"

	"seminarbuchung/internal/database"
	"seminarbuchung/internal/models"

	"github.com/lib/pq"
)

const courseColumns = `
		id, name, slug, short_description, description, info, default_price,
		vat_applicable, active, created_at, updated_at`

const sessionColumns = `
		s.id, s.course_id, s.title, s.price, s.capacity, s.status, s.location_id,
		COALESCE(l.standort, ''), COALESCE(l.type, ''), COALESCE(l.venue, ''), COALESCE(l.city, ''),
		s.created_at, s.updated_at`

// CatalogRepository reads courses, sessions, locations and session days.
// Catalog CRUD lives outside this service; only session titles are written.
type CatalogRepository struct {
	db *database.DB
}

func NewCatalogRepository(db *database.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func scanCourse(row rowScanner) (*models.Course, error) {
	c := &models.Course{}
	var shortDescription, description, info sql.NullString
	var defaultPrice sql.NullFloat64
	err := row.Scan(
		&c.ID, &c.Name, &c.Slug, &shortDescription, &description, &info, &defaultPrice,
		&c.VATApplicable, &c.Active, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.ShortDescription = stringPtr(shortDescription)
	c.Description = stringPtr(description)
	c.Info = stringPtr(info)
	if defaultPrice.Valid {
		price := defaultPrice.Float64
		c.DefaultPrice = &price
	}
	return c, nil
}

func scanSession(row rowScanner) (*models.Session, error) {
	s := &models.Session{}
	var price sql.NullFloat64
	var locationID sql.NullInt64
	var loc models.Location
	err := row.Scan(
		&s.ID, &s.CourseID, &s.Title, &price, &s.Capacity, &s.Status, &locationID,
		&loc.Standort, &loc.Type, &loc.Venue, &loc.City,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if price.Valid {
		p := price.Float64
		s.Price = &p
	}
	if locationID.Valid {
		id := locationID.Int64
		loc.ID = id
		s.LocationID = &id
		s.Location = &loc
	}
	return s, nil
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// GetCourse returns nil, nil when the course does not exist
func (r *CatalogRepository) GetCourse(ctx context.Context, id int64) (*models.Course, error) {
	query := `SELECT` + courseColumns + ` FROM courses WHERE id = $1`

	course, err := scanCourse(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return course, err
}

func (r *CatalogRepository) GetCourseBySlug(ctx context.Context, slug string) (*models.Course, error) {
	query := `SELECT` + courseColumns + ` FROM courses WHERE slug = $1 AND active`

	course, err := scanCourse(r.db.QueryRowContext(ctx, query, slug))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return course, err
}

func (r *CatalogRepository) ListActiveCourses(ctx context.Context) ([]models.Course, error) {
	query := `SELECT` + courseColumns + ` FROM courses WHERE active ORDER BY name, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var courses []models.Course
	for rows.Next() {
		course, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		courses = append(courses, *course)
	}

	return courses, rows.Err()
}

// GetSession returns the session with its location and days, or nil, nil
func (r *CatalogRepository) GetSession(ctx context.Context, id int64) (*models.Session, error) {
	query := `SELECT` + sessionColumns + `
		FROM sessions s
		LEFT JOIN locations l ON l.id = s.location_id
		WHERE s.id = $1`

	session, err := scanSession(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := r.attachDays(ctx, []*models.Session{session}); err != nil {
		return nil, err
	}
	return session, nil
}

// ListPlannedSessions returns planned sessions of a course. A zero courseID lists all courses.
func (r *CatalogRepository) ListPlannedSessions(ctx context.Context, courseID int64) ([]models.Session, error) {
	query := `SELECT` + sessionColumns + `
		FROM sessions s
		LEFT JOIN locations l ON l.id = s.location_id
		WHERE s.status = $1 AND ($2::bigint = 0 OR s.course_id = $2::bigint)
		ORDER BY s.id`

	return r.listSessions(ctx, query, models.SessionStatusPlanned, courseID)
}

// ListSessions returns every session regardless of status
func (r *CatalogRepository) ListSessions(ctx context.Context) ([]models.Session, error) {
	query := `SELECT` + sessionColumns + `
		FROM sessions s
		LEFT JOIN locations l ON l.id = s.location_id
		ORDER BY s.id`

	return r.listSessions(ctx, query)
}

func (r *CatalogRepository) listSessions(ctx context.Context, query string, args ...any) ([]models.Session, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.attachDays(ctx, sessions); err != nil {
		return nil, err
	}

	result := make([]models.Session, len(sessions))
	for i, s := range sessions {
		result[i] = *s
	}
	return result, nil
}

func (r *CatalogRepository) attachDays(ctx context.Context, sessions []*models.Session) error {
	if len(sessions) == 0 {
		return nil
	}

	ids := make([]int64, len(sessions))
	byID := make(map[int64]*models.Session, len(sessions))
	for i, s := range sessions {
		ids[i] = s.ID
		byID[s.ID] = s
		s.Days = []models.SessionDay{}
	}

	query := `
		SELECT session_id, to_char(day_date, 'YYYY-MM-DD'),
		       COALESCE(to_char(start_time, 'HH24:MI:SS'), ''),
		       COALESCE(to_char(end_time, 'HH24:MI:SS'), '')
		FROM session_days
		WHERE session_id = ANY($1)
		ORDER BY session_id, day_date, start_time NULLS FIRST, id`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to load session days: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sessionID int64
		var day models.SessionDay
		if err := rows.Scan(&sessionID, &day.Date, &day.StartTime, &day.EndTime); err != nil {
			return err
		}
		if s, ok := byID[sessionID]; ok {
			s.Days = append(s.Days, day)
		}
	}

	return rows.Err()
}

// SetTitleIfEmpty writes a session title only while it is still empty.
// It reports whether the row changed.
func (r *CatalogRepository) SetTitleIfEmpty(ctx context.Context, sessionID int64, title string) (bool, error) {
	query := `
		UPDATE sessions
		SET title = $2, updated_at = NOW()
		WHERE id = $1 AND title = ''`

	result, err := r.db.ExecContext(ctx, query, sessionID, title)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected == 1, nil
}
