package handler

import (
	"net/http"

	"github.com/assacalos/megvie/internal/model"
	"github.com/assacalos/megvie/internal/service"
	"github.com/gin-gonic/gin"
)

// ReferenceHandler serves the lookup lists the front-end uses for its pickers.
type ReferenceHandler struct {
	users  *service.UserService
	crafts *service.CraftService
}

func NewReferenceHandler(users *service.UserService, crafts *service.CraftService) *ReferenceHandler {
	return &ReferenceHandler{users: users, crafts: crafts}
}

// ListRole returns a handler for GET /api/pastors, /api/families, ...
func (h *ReferenceHandler) ListRole(role model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := h.users.ListByRole(c.Request.Context(), role)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, users)
	}
}

// CreateRole returns a handler for POST /api/pastors, /api/families, /api/sponsors.
func (h *ReferenceHandler) CreateRole(role model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, _, done, ok := values(c)
		defer done()
		if !ok {
			return
		}
		u, err := h.users.CreateWithRole(c.Request.Context(), role, v)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, u)
	}
}

// GET /api/crafts
func (h *ReferenceHandler) ListCrafts(c *gin.Context) {
	crafts, err := h.crafts.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, crafts)
}

// POST /api/crafts
func (h *ReferenceHandler) CreateCraft(c *gin.Context) {
	v, _, done, ok := values(c)
	defer done()
	if !ok {
		return
	}
	craft, err := h.crafts.Create(c.Request.Context(), v)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, craft)
}

// PUT /api/crafts/:id
func (h *ReferenceHandler) UpdateCraft(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	v, _, done, ok := values(c)
	defer done()
	if !ok {
		return
	}
	craft, err := h.crafts.Update(c.Request.Context(), id, v)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, craft)
}
