package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"filescan-service/internal/model"
	"filescan-service/pkg/errors"
)

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, model.Response{Success: true, Data: data})
}

func bad(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, model.Response{Success: false, Error: message})
}

func notFound(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, model.Response{Success: false, Error: message})
}

func failure(c *gin.Context, message string) {
	c.JSON(http.StatusInternalServerError, model.Response{Success: false, Error: message})
}

// respondError maps domain errors onto the envelope: validation → 400,
// unknown id → 404, anything else → 500 with a generic message.
func respondError(c *gin.Context, err error, notFoundMessage string) {
	switch {
	case errors.IsNotFound(err):
		notFound(c, notFoundMessage)
	case errors.IsConflict(err):
		c.JSON(http.StatusConflict, model.Response{Success: false, Error: "Record already exists"})
	default:
		if verr, ok := err.(errors.ValidationError); ok {
			bad(c, verr.Error())
			return
		}
		failure(c, "Internal server error")
	}
}
