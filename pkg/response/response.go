// Package response writes the JSON envelope shared by every API endpoint.
package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the envelope. Code is 0 on success and mirrors the HTTP status otherwise.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// AppError is an error with a client-facing status and message.
type AppError struct {
	HTTPStatus int
	Message    string
}

func (e *AppError) Error() string {
	return e.Message
}

func NewBadRequest(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusBadRequest, Message: msg}
}

func NewNotFound(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusNotFound, Message: msg}
}

func NewUnavailable(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusServiceUnavailable, Message: msg}
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: 0, Message: "ok", Data: data})
}

// Error writes err. Anything that is not an *AppError becomes an opaque 500
// so internal details never reach the client.
func Error(c *gin.Context, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		abort(c, appErr.HTTPStatus, appErr.Message)
		return
	}
	_ = c.Error(err)
	abort(c, http.StatusInternalServerError, "internal server error")
}

func BadRequest(c *gin.Context, msg string) {
	abort(c, http.StatusBadRequest, msg)
}

func NotFound(c *gin.Context, msg string) {
	abort(c, http.StatusNotFound, msg)
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, Response{Code: status, Message: msg})
}
