package restapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the standard envelope for every handler on this surface.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, &Response{Success: true, Data: data})
}

func createdResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, &Response{Success: true, Data: data})
}

func errorResponse(c *gin.Context, code int, message string) {
	c.JSON(code, &Response{Success: false, Message: message})
}

func badRequestError(c *gin.Context, message string) {
	errorResponse(c, http.StatusBadRequest, message)
}

func notFoundError(c *gin.Context, message string) {
	errorResponse(c, http.StatusNotFound, message)
}

func internalError(c *gin.Context, message string) {
	errorResponse(c, http.StatusInternalServerError, message)
}

func tooManyRequestsError(c *gin.Context, message string) {
	errorResponse(c, http.StatusTooManyRequests, message)
}

func payloadTooLargeError(c *gin.Context, message string) {
	errorResponse(c, http.StatusRequestEntityTooLarge, message)
}
