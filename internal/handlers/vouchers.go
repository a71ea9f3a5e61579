package handlers

import (
	"net/http"

	"seminarbuchung/internal/models"

	"github.com/gin-gonic/gin"
)

// ValidateVoucher - POST /public/vouchers/validate
// Всегда 200: невалидный код означает просто отсутствие скидки
func (h *Handlers) ValidateVoucher(c *gin.Context) {
	var req models.VoucherValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		req = models.VoucherValidateRequest{}
	}

	c.JSON(http.StatusOK, h.vouchers.Validate(c.Request.Context(), &req))
}
