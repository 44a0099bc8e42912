package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/assacalos/megvie/internal/form"
	"github.com/assacalos/megvie/internal/logger"
	"github.com/assacalos/megvie/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// fail writes err as a {message} JSON body with the matching status code.
func fail(c *gin.Context, err error) {
	var verr *service.ValidationError
	var ferr *service.ForbiddenError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": verr.Message(), "errors": verr.Fields})
	case errors.As(err, &ferr):
		c.JSON(http.StatusForbidden, gin.H{"message": ferr.Reason})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Les identifiants fournis sont incorrects."})
	case errors.Is(err, service.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthenticated."})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "Ressource introuvable."})
	default:
		logger.From(c.Request.Context()).Error("request.failed", "method", c.Request.Method, "path", c.FullPath(), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server Error"})
	}
}

// bindFailed turns a gin binding error into a 422 response.
func bindFailed(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		fail(c, &service.ValidationError{Fields: form.Errors{"body": {"The request body is malformed."}}})
		return
	}
	errs := form.Errors{}
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			errs.Add(field, fmt.Sprintf("The %s field is required.", field))
		case "email":
			errs.Add(field, fmt.Sprintf("The %s field must be a valid email address.", field))
		default:
			errs.Add(field, fmt.Sprintf("The %s field is invalid.", field))
		}
	}
	fail(c, &service.ValidationError{Fields: errs})
}

func paramID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusNotFound, gin.H{"message": "Ressource introuvable."})
		return 0, false
	}
	return uint(id), true
}

// readValues decodes a JSON, urlencoded or multipart body. The returned
// photo, if any, must be closed by the caller through done.
func readValues(c *gin.Context) (v form.Values, photo *service.Photo, done func(), err error) {
	done = func() {}
	ct := c.ContentType()
	switch ct {
	case "multipart/form-data":
		mf, err := c.MultipartForm()
		if err != nil {
			return nil, nil, done, fmt.Errorf("parse multipart: %w", err)
		}
		v = form.FromURLValues(mf.Value)
		if files := mf.File["photo"]; len(files) > 0 {
			photo, done, err = openPhoto(files[0])
			if err != nil {
				return nil, nil, done, err
			}
		}
		return v, photo, done, nil
	case "application/x-www-form-urlencoded":
		if err := c.Request.ParseForm(); err != nil {
			return nil, nil, done, fmt.Errorf("parse form: %w", err)
		}
		return form.FromURLValues(c.Request.PostForm), nil, done, nil
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, nil, done, fmt.Errorf("read body: %w", err)
	}
	v, err = form.FromJSON(body)
	return v, nil, done, err
}

func openPhoto(fh *multipart.FileHeader) (*service.Photo, func(), error) {
	f, err := fh.Open()
	if err != nil {
		return nil, func() {}, fmt.Errorf("open upload: %w", err)
	}
	return &service.Photo{Filename: fh.Filename, Body: f}, func() { f.Close() }, nil
}

// values reads the body, answering 422 itself when it cannot be decoded.
func values(c *gin.Context) (form.Values, *service.Photo, func(), bool) {
	v, photo, done, err := readValues(c)
	if err != nil {
		logger.From(c.Request.Context()).Debug("request.malformed", "path", c.FullPath(), "err", err)
		fail(c, &service.ValidationError{Fields: form.Errors{"body": {"The request body is malformed."}}})
		return nil, nil, done, false
	}
	return v, photo, done, true
}
