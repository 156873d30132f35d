package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error represents a standard structure for error responses.
type Error struct {
	Error string `json:"error"`
}

// JSON sends a JSON response with the specified HTTP status code and data.
func JSON(c *gin.Context, status int, data interface{}) {
	c.JSON(status, data)
}

// OK sends a 200 OK JSON response.
func OK(c *gin.Context, data interface{}) {
	JSON(c, http.StatusOK, data)
}

// Accepted sends a 202 Accepted JSON response.
func Accepted(c *gin.Context, data interface{}) {
	JSON(c, http.StatusAccepted, data)
}

// Fail sends an error JSON response with the specified HTTP status code.
func Fail(c *gin.Context, status int, err error) {
	JSON(c, status, Error{Error: err.Error()})
}
