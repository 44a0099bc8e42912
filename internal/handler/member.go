package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/assacalos/megvie/internal/form"
	"github.com/assacalos/megvie/internal/middleware"
	"github.com/assacalos/megvie/internal/service"
	"github.com/gin-gonic/gin"
)

type MemberHandler struct{ svc *service.MemberService }

func NewMemberHandler(svc *service.MemberService) *MemberHandler { return &MemberHandler{svc: svc} }

// GET /api/members?search=&tranche_age=&date_debut=&date_fin=&corps_metier_id=&page=
func (h *MemberHandler) List(c *gin.Context) {
	f, err := memberFilter(c)
	if err != nil {
		fail(c, err)
		return
	}
	page, err := h.svc.List(c.Request.Context(), middleware.CurrentUser(c), f)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GET /api/members/:id
func (h *MemberHandler) Show(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	m, err := h.svc.Get(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// POST /api/members  (JSON or multipart with a "photo" file)
func (h *MemberHandler) Create(c *gin.Context) {
	v, photo, done, ok := values(c)
	defer done()
	if !ok {
		return
	}
	m, err := h.svc.Create(c.Request.Context(), v, photo)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

// PUT /api/members/:id, also POST for multipart clients
func (h *MemberHandler) Update(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	v, photo, done, ok := values(c)
	defer done()
	if !ok {
		return
	}
	m, err := h.svc.Update(c.Request.Context(), id, v, photo)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// DELETE /api/members/:id
func (h *MemberHandler) Delete(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Fidèle supprimé avec succès"})
}

// GET /api/members/stats
func (h *MemberHandler) Stats(c *gin.Context) {
	st, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// GET /api/members/export
func (h *MemberHandler) Export(c *gin.Context) {
	rows, err := h.svc.Export(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func memberFilter(c *gin.Context) (service.MemberFilter, error) {
	f := service.MemberFilter{
		Search:     c.Query("search"),
		TrancheAge: c.Query("tranche_age"),
	}
	errs := form.Errors{}
	if p := c.Query("page"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			errs.Add("page", "The page field must be an integer.")
		}
		f.Page = n
	}
	f.DateDebut = queryDate(c, "date_debut", errs)
	f.DateFin = queryDate(c, "date_fin", errs)
	if raw := c.Query("corps_metier_id"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			errs.Add("corps_metier_id", "The corps_metier_id field must be an integer.")
		}
		id := uint(n)
		f.CorpsMetierID = &id
	}
	if len(errs) > 0 {
		return f, &service.ValidationError{Fields: errs}
	}
	return f, nil
}

func queryDate(c *gin.Context, key string, errs form.Errors) *time.Time {
	raw := c.Query(key)
	if raw == "" {
		return nil
	}
	d, err := form.ParseDate(raw)
	if err != nil {
		errs.Add(key, "The "+key+" field must be a valid date.")
		return nil
	}
	return &d
}
