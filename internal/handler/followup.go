package handler

import (
	"net/http"

	"github.com/assacalos/megvie/internal/service"
	"github.com/gin-gonic/gin"
)

type FollowUpHandler struct{ svc *service.FollowUpService }

func NewFollowUpHandler(svc *service.FollowUpService) *FollowUpHandler {
	return &FollowUpHandler{svc: svc}
}

// POST /api/followups
func (h *FollowUpHandler) Create(c *gin.Context) {
	v, _, done, ok := values(c)
	defer done()
	if !ok {
		return
	}
	f, err := h.svc.Create(c.Request.Context(), v)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, f)
}

// PUT /api/followups/:id
func (h *FollowUpHandler) Update(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	v, _, done, ok := values(c)
	defer done()
	if !ok {
		return
	}
	f, err := h.svc.Update(c.Request.Context(), id, v)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

// DELETE /api/followups/:id
func (h *FollowUpHandler) Delete(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Suivi supprimé avec succès"})
}
