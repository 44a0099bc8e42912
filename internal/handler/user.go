package handler

import (
	"net/http"
	"strconv"

	"github.com/assacalos/megvie/internal/form"
	"github.com/assacalos/megvie/internal/service"
	"github.com/gin-gonic/gin"
)

type UserHandler struct{ svc *service.UserService }

func NewUserHandler(svc *service.UserService) *UserHandler { return &UserHandler{svc: svc} }

// GET /api/users?role=parrain&famille_id=3
func (h *UserHandler) List(c *gin.Context) {
	f := service.UserFilter{Role: c.Query("role")}
	if raw := c.Query("famille_id"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			fail(c, &service.ValidationError{Fields: form.Errors{"famille_id": {"The famille_id field must be an integer."}}})
			return
		}
		id := uint(n)
		f.FamilleID = &id
	}
	users, err := h.svc.List(c.Request.Context(), f)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// GET /api/users/:id
func (h *UserHandler) Show(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	u, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// POST /api/users
func (h *UserHandler) Create(c *gin.Context) {
	v, _, done, ok := values(c)
	defer done()
	if !ok {
		return
	}
	u, err := h.svc.Create(c.Request.Context(), v)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

// PUT /api/users/:id
func (h *UserHandler) Update(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	v, _, done, ok := values(c)
	defer done()
	if !ok {
		return
	}
	u, err := h.svc.Update(c.Request.Context(), id, v)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// DELETE /api/users/:id
func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Utilisateur supprimé avec succès"})
}
