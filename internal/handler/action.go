package handler

import (
	"net/http"

	"github.com/assacalos/megvie/internal/service"
	"github.com/gin-gonic/gin"
)

type ActionHandler struct{ svc *service.ActionService }

func NewActionHandler(svc *service.ActionService) *ActionHandler { return &ActionHandler{svc: svc} }

// POST /api/actions
func (h *ActionHandler) Create(c *gin.Context) {
	v, _, done, ok := values(c)
	defer done()
	if !ok {
		return
	}
	a, err := h.svc.Create(c.Request.Context(), v)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

// PUT /api/actions/:id
func (h *ActionHandler) Update(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	v, _, done, ok := values(c)
	defer done()
	if !ok {
		return
	}
	a, err := h.svc.Update(c.Request.Context(), id, v)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// DELETE /api/actions/:id
func (h *ActionHandler) Delete(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Action supprimée avec succès"})
}
