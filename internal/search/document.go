package search

import (
	"seminarbuchung/internal/models"
)

// NewSessionDocument flattens a session with its course for indexing
func NewSessionDocument(session *models.Session, course *models.Course) *SessionDocument {
	doc := &SessionDocument{
		ID:       session.ID,
		CourseID: session.CourseID,
		Title:    session.Title,
		Status:   session.Status,
		Price:    session.Price,
		Capacity: session.Capacity,
	}

	if course != nil {
		doc.CourseName = course.Name
		doc.CourseSlug = course.Slug
		if course.ShortDescription != nil {
			doc.Description = *course.ShortDescription
		}
		if doc.Price == nil {
			doc.Price = course.DefaultPrice
		}
	}

	if session.Location != nil {
		doc.Location = session.Location.DisplayName()
		doc.City = session.Location.City
	}

	for _, day := range session.Days {
		if doc.FirstDay == "" || day.Date < doc.FirstDay {
			doc.FirstDay = day.Date
		}
	}

	return doc
}
