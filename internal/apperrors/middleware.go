package apperrors

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/logintel/backend/internal/observability"
)

// ErrorHandler logs the last error recorded on the context and, when no
// response body has been written yet, writes it as the HTTP envelope.
// HandleError, AbortWithError and WriteError write the body themselves, so
// for errors raised through them this middleware only logs.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last()
		if appErr, ok := err.Err.(*AppError); ok {
			logger := observability.HTTP()
			if appErr.StatusCode >= 500 {
				logger.Error().Str("code", appErr.Code).Str("details", appErr.Details).Msg(appErr.Message)
			} else {
				logger.Warn().Str("code", appErr.Code).Msg(appErr.Message)
			}
			if !c.Writer.Written() {
				writeError(c, appErr.StatusCode, appErr.ToResponse())
			}
			return
		}

		observability.HTTP().Error().Err(err.Err).Msg("unhandled error")
		if c.Writer.Written() {
			return
		}
		writeError(c, http.StatusInternalServerError, ErrorResponse{
			Error:   CodeInternalError,
			Message: "an unexpected error occurred",
			Code:    CodeInternalError,
		})
	}
}

// Recovery turns a panic anywhere downstream into a 500 response instead of
// killing the connection.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				observability.HTTP().Error().Interface("panic", r).Msg("recovered from panic")
				writeError(c, http.StatusInternalServerError, ErrorResponse{
					Error:   CodeInternalError,
					Message: "an unexpected error occurred",
					Code:    CodeInternalError,
				})
				c.Abort()
			}
		}()
		c.Next()
	}
}

// HandleError records err on the gin context and writes its response body.
func HandleError(c *gin.Context, err error) {
	if appErr, ok := err.(*AppError); ok {
		c.Error(appErr)
		writeError(c, appErr.StatusCode, appErr.ToResponse())
		return
	}
	internalErr := Internal(err.Error())
	c.Error(internalErr)
	writeError(c, internalErr.StatusCode, internalErr.ToResponse())
}

// AbortWithError aborts the request chain immediately with err's response.
func AbortWithError(c *gin.Context, err *AppError) {
	c.Error(err)
	writeError(c, err.StatusCode, err.ToResponse())
	c.Abort()
}
