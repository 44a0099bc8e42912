package handler

import (
	"net/http"

	"github.com/assacalos/megvie/internal/middleware"
	"github.com/assacalos/megvie/internal/model"
	"github.com/assacalos/megvie/internal/service"
	"github.com/gin-gonic/gin"
)

type SmsHandler struct{ svc *service.SmsService }

func NewSmsHandler(svc *service.SmsService) *SmsHandler { return &SmsHandler{svc: svc} }

// POST /api/sms/bulk  body: {"member_ids":[1,2],"message":"..."}
func (h *SmsHandler) Bulk(c *gin.Context) {
	var req model.BulkSmsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}
	res, err := h.svc.SendBulk(c.Request.Context(), middleware.CurrentUser(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
