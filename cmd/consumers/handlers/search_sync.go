package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"seminarbuchung/internal/models"
	"seminarbuchung/internal/search"
)

type SessionReader interface {
	GetSession(ctx context.Context, id int64) (*models.Session, error)
	GetCourse(ctx context.Context, id int64) (*models.Course, error)
}

type SessionIndex interface {
	IndexSession(ctx context.Context, doc *search.SessionDocument) error
	DeleteSession(ctx context.Context, id int64) error
}

type CatalogCache interface {
	InvalidateSeminarList(ctx context.Context) error
}

// SearchSyncHandler keeps the session search index and the cached
// public seminar list in line with the catalog
type SearchSyncHandler struct {
	catalog SessionReader
	index   SessionIndex
	cache   CatalogCache
}

// NewSearchSyncHandler creates a new search sync handler; cache may be nil
func NewSearchSyncHandler(catalog SessionReader, index SessionIndex, cache CatalogCache) *SearchSyncHandler {
	return &SearchSyncHandler{
		catalog: catalog,
		index:   index,
		cache:   cache,
	}
}

// SyncSession reindexes one session. Sessions that disappeared or are no
// longer planned are removed from the index.
func (h *SearchSyncHandler) SyncSession(ctx context.Context, sessionID int64) error {
	session, err := h.catalog.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	if session == nil || session.Status != models.SessionStatusPlanned {
		slog.Debug("Removing session from search index", "session_id", sessionID)
		if err := h.index.DeleteSession(ctx, sessionID); err != nil {
			return err
		}
		h.invalidate(ctx, sessionID)
		return nil
	}

	course, err := h.catalog.GetCourse(ctx, session.CourseID)
	if err != nil {
		return fmt.Errorf("failed to load course: %w", err)
	}

	if err := h.index.IndexSession(ctx, search.NewSessionDocument(session, course)); err != nil {
		return err
	}

	slog.Info("Session reindexed", "session_id", sessionID, "title", session.Title)
	h.invalidate(ctx, sessionID)
	return nil
}

// кэш истечёт сам по TTL, ошибка не критична
func (h *SearchSyncHandler) invalidate(ctx context.Context, sessionID int64) {
	if h.cache == nil {
		return
	}
	if err := h.cache.InvalidateSeminarList(ctx); err != nil {
		slog.Warn("Failed to invalidate seminar list cache", "session_id", sessionID, "error", err)
	}
}
