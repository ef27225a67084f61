package middleware

import "github.com/gin-gonic/gin"

// ErrorBody is the error half of the response envelope.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorEnvelope is the JSON body returned for every non-2xx response.
type ErrorEnvelope struct {
	Error     ErrorBody `json:"error"`
	RequestID string    `json:"requestId,omitempty"`
}

// Error codes used across handlers and middleware.
const (
	CodeUnauthorized  = "UNAUTHORIZED"
	CodeTokenExpired  = "TOKEN_EXPIRED"
	CodeForbidden     = "FORBIDDEN"
	CodeBadRequest    = "BAD_REQUEST"
	CodeNotFound      = "NOT_FOUND"
	CodeInternal      = "INTERNAL_ERROR"
	CodeLoginFailed   = "LOGIN_FAILED"
	CodeAccountLocked = "ACCOUNT_DEACTIVATED"
)

// RespondError writes the error envelope with the request ID and the given
// status. It does not abort; callers abort when ending a middleware chain.
func RespondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, ErrorEnvelope{
		Error:     ErrorBody{Code: code, Message: message},
		RequestID: RequestIDFrom(c),
	})
}

// AbortError writes the error envelope and stops the handler chain.
func AbortError(c *gin.Context, status int, code, message string) {
	RespondError(c, status, code, message)
	c.Abort()
}
