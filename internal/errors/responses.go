package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// BadRequest sends a 400 Bad Request response.
func BadRequest(c *gin.Context, message string, details map[string]interface{}) {
	c.JSON(http.StatusBadRequest, NewAPIError(message, details))
}

// NotFound sends a 404 Not Found response.
func NotFound(c *gin.Context, message string, details map[string]interface{}) {
	c.JSON(http.StatusNotFound, NewAPIError(message, details))
}

// Internal sends a 500 Internal Server Error response.
func Internal(c *gin.Context, message string, details map[string]interface{}) {
	c.JSON(http.StatusInternalServerError, NewAPIError(message, details))
}
