package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// ListSeminars - GET /public/seminars
// Без query отдает каталог, с query ищет по индексу терминов
func (h *Handlers) ListSeminars(c *gin.Context) {
	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		seminars, err := h.catalog.List(c.Request.Context())
		if err != nil {
			respondError(c, err, "Failed to list seminars")
			return
		}
		c.JSON(http.StatusOK, seminars)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))

	if page < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page must be >= 1"})
		return
	}

	if pageSize < 1 || pageSize > 50 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pageSize must be between 1 and 50"})
		return
	}

	docs, err := h.catalog.Search(c.Request.Context(), query, page, pageSize)
	if err != nil {
		respondError(c, err, "Failed to search seminars")
		return
	}

	c.JSON(http.StatusOK, docs)
}

// GetSeminar - GET /public/seminars/:slug
func (h *Handlers) GetSeminar(c *gin.Context) {
	seminar, err := h.catalog.Detail(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, err, "Failed to get seminar")
		return
	}
	if seminar == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Seminar not found"})
		return
	}

	c.JSON(http.StatusOK, seminar)
}
