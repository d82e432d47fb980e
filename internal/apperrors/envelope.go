package apperrors

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// successEnvelope is the wire shape of every successful response, per spec
// §4.H: {success, data, timestamp}.
type successEnvelope struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// errorEnvelope is the wire shape of every failed response, per spec §4.H:
// {success: false, error: {code, message, details}, timestamp}.
type errorEnvelope struct {
	Success   bool          `json:"success"`
	Error     ErrorResponse `json:"error"`
	Timestamp time.Time     `json:"timestamp"`
}

// Success writes a 200 response carrying data in the standard envelope.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, successEnvelope{Success: true, Data: data, Timestamp: time.Now()})
}

// Created writes a 201 response carrying data in the standard envelope.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, successEnvelope{Success: true, Data: data, Timestamp: time.Now()})
}

func writeError(c *gin.Context, statusCode int, resp ErrorResponse) {
	c.JSON(statusCode, errorEnvelope{Success: false, Error: resp, Timestamp: time.Now()})
}

// WriteError writes an error envelope for a status code outside the closed
// taxonomy (method-not-allowed, request-too-large — middleware responses
// that reject a request before it reaches a handler).
func WriteError(c *gin.Context, statusCode int, code, message string) {
	c.Error(New(code, message))
	writeError(c, statusCode, ErrorResponse{Error: code, Message: message, Code: code})
	c.Abort()
}
