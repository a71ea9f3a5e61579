package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"seminarbuchung/internal/logger"
	"seminarbuchung/internal/models"
)

const titleSeparator = " – "

// SessionTitler fills empty session titles from first day, course and location
type SessionTitler struct {
	catalog   Catalog
	publisher Publisher
}

func NewSessionTitler(catalog Catalog, publisher Publisher) *SessionTitler {
	return &SessionTitler{catalog: catalog, publisher: publisher}
}

// BuildSessionTitle returns "<YYYY-DD-MM> – <course> – <location>" for the
// earliest day, skipping empty parts. Sessions without a dated day get "".
func BuildSessionTitle(session *models.Session, course *models.Course) string {
	type dayKey struct {
		date string
		key  string
	}

	var days []dayKey
	for _, d := range session.Days {
		if strings.TrimSpace(d.Date) == "" {
			continue
		}
		start := d.StartTime
		if start == "" {
			start = "00:00:00"
		}
		if len(start) > 8 {
			start = start[:8]
		}
		days = append(days, dayKey{date: d.Date, key: d.Date + "T" + start})
	}
	if len(days) == 0 {
		return ""
	}
	sort.SliceStable(days, func(i, j int) bool { return days[i].key < days[j].key })

	var parts []string
	if ydm := yearDayMonth(days[0].date); ydm != "" {
		parts = append(parts, ydm)
	}
	if course != nil && strings.TrimSpace(course.Name) != "" {
		parts = append(parts, course.Name)
	}
	if name := session.Location.DisplayName(); strings.TrimSpace(name) != "" {
		parts = append(parts, name)
	}

	return strings.Join(parts, titleSeparator)
}

// yearDayMonth turns YYYY-MM-DD into YYYY-DD-MM
func yearDayMonth(date string) string {
	segments := strings.SplitN(date, "-", 3)
	var out []string
	for _, i := range []int{0, 2, 1} {
		if i < len(segments) && segments[i] != "" {
			out = append(out, segments[i])
		}
	}
	return strings.Join(out, "-")
}

// FillIfEmpty writes a generated title when the session has none.
// It returns the title and whether it was written.
func (t *SessionTitler) FillIfEmpty(ctx context.Context, sessionID int64) (string, bool, error) {
	session, err := t.catalog.GetSession(ctx, sessionID)
	if err != nil {
		return "", false, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil || strings.TrimSpace(session.Title) != "" {
		return "", false, nil
	}

	course, err := t.catalog.GetCourse(ctx, session.CourseID)
	if err != nil {
		return "", false, fmt.Errorf("failed to get course: %w", err)
	}

	title := BuildSessionTitle(session, course)
	if title == "" {
		return "", false, nil
	}

	written, err := t.catalog.SetTitleIfEmpty(ctx, sessionID, title)
	if err != nil {
		return "", false, fmt.Errorf("failed to set session title: %w", err)
	}
	if !written {
		return "", false, nil
	}

	logger.WithContext(ctx).Info("Session title filled", "session_id", sessionID, "title", title)

	if t.publisher != nil {
		event := models.SessionTitleChangedEvent{SessionID: sessionID, Title: title, Timestamp: time.Now()}
		if err := t.publisher.Publish(models.EventSessionTitleChanged, event); err != nil {
			logger.WithContext(ctx).Error("Failed to publish session title event", "session_id", sessionID, "error", err)
		}
	}

	return title, true, nil
}
