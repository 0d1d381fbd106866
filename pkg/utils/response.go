package utils

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Response standard response structure
type Response struct {
	Code      int         `json:"code"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// SuccessResponse returns success response
func SuccessResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:      int(CodeSuccess),
		Message:   "success",
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}

// ErrorResponse returns error response
func ErrorResponse(c *gin.Context, httpCode int, message string) {
	c.JSON(httpCode, Response{
		Code:      httpCode,
		Message:   message,
		Timestamp: time.Now().Unix(),
	})
}

// FailedResponse returns failed response with custom code
func FailedResponse(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:      int(CodeFailed),
		Message:   message,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}

// Error writes a business error code with its mapped HTTP status.
func Error(c *gin.Context, code ResponseCode, message string) {
	c.JSON(code.HTTPStatus(), Response{
		Code:      int(code),
		Message:   message,
		Timestamp: time.Now().Unix(),
	})
}

// ErrorWithData writes a business error code with a payload, used when the
// caller needs the data to recover (for example failed checkout lines).
func ErrorWithData(c *gin.Context, code ResponseCode, message string, data interface{}) {
	c.JSON(code.HTTPStatus(), Response{
		Code:      int(code),
		Message:   message,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}

// AppErrorResponse writes err using its AppError code when it has one.
func AppErrorResponse(c *gin.Context, err error) {
	if appErr, ok := IsAppError(err); ok {
		Error(c, appErr.Code, appErr.Message)
		return
	}
	Error(c, CodeInternalError, "internal server error")
}
