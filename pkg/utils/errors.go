package utils

import (
	"errors"
	"fmt"
)

// AppError application error structure
type AppError struct {
	Code    ResponseCode `json:"code"`
	Message string       `json:"message"`
	Err     error        `json:"-"`
}

// Error implement error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("code: %d, message: %s, error: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("code: %d, message: %s", e.Code, e.Message)
}

// Unwrap implement errors.Unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an AppError with the same code, so wrapped
// instances match the predefined errors below.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewError create new application error
func NewError(code ResponseCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// NewErrorWithErr create application error with original error
func NewErrorWithErr(code ResponseCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WrapError wrap error
func WrapError(err error, code ResponseCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Predefined errors
var (
	// ValidationError
	ErrInvalidParam = NewError(CodeInvalidParam, "invalid parameter")

	// AuthFailure
	ErrUnauthorized = NewError(CodeUnauthorized, "unauthorized")
	ErrForbidden    = NewError(CodeForbidden, "insufficient permissions")
	ErrRateLimit    = NewError(CodeRateLimit, "rate limit exceeded")

	// NotFoundError / StockConflict
	ErrProductNotFound = NewError(CodeProductNotFound, "product not found")
	ErrStockConflict   = NewError(CodeStockConflict, "stock conflict")

	ErrOrderNotFound = NewError(CodeOrderNotFound, "order not found")

	// System errors
	ErrInternalError = NewError(CodeInternalError, "internal server error")
	ErrServiceError  = NewError(CodeServiceError, "service error")
	ErrStorage       = NewError(CodeStorageError, "storage error")
	ErrTimeout       = NewError(CodeTimeout, "operation timed out")
)

// IsAppError check if it's an application error
func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetErrorCode get error code
func GetErrorCode(err error) ResponseCode {
	if appErr, ok := IsAppError(err); ok {
		return appErr.Code
	}
	return CodeInternalError
}

// GetErrorMessage get error message
func GetErrorMessage(err error) string {
	if appErr, ok := IsAppError(err); ok {
		return appErr.Message
	}
	return err.Error()
}
