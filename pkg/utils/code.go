package utils

// ResponseCode business response code
type ResponseCode int

const (
	CodeSuccess ResponseCode = 0
	CodeFailed  ResponseCode = 1

	// Parameter errors
	CodeInvalidParam ResponseCode = 1001

	// Auth errors
	CodeUnauthorized ResponseCode = 2001
	CodeForbidden    ResponseCode = 2003
	CodeRateLimit    ResponseCode = 2029

	// Catalog errors
	CodeProductNotFound ResponseCode = 3001
	CodeStockConflict   ResponseCode = 3002

	// Order errors
	CodeOrderNotFound ResponseCode = 4001

	// System errors
	CodeInternalError ResponseCode = 5000
	CodeServiceError  ResponseCode = 5001
	CodeStorageError  ResponseCode = 5002
	CodeTimeout       ResponseCode = 5004
)

// HTTPStatus maps a response code to the HTTP status handlers should write.
func (c ResponseCode) HTTPStatus() int {
	switch c {
	case CodeSuccess, CodeFailed:
		return 200
	case CodeInvalidParam:
		return 400
	case CodeUnauthorized:
		return 401
	case CodeForbidden:
		return 403
	case CodeProductNotFound, CodeOrderNotFound:
		return 404
	case CodeStockConflict:
		return 409
	case CodeRateLimit:
		return 429
	case CodeTimeout:
		return 504
	default:
		return 500
	}
}
