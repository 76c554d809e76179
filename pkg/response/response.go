package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// APIResponse is the envelope every REST endpoint answers with.
type APIResponse[T any] struct {
	Status    int       `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Data      T         `json:"data,omitempty"`
	Meta      any       `json:"meta,omitempty"`
	Error     any       `json:"error,omitempty"`
}

func write[T any](ctx *gin.Context, resp APIResponse[T]) APIResponse[T] {
	resp.Timestamp = time.Now()
	resp.RequestID = ctx.GetString("request_id")
	ctx.JSON(resp.Status, resp)
	return resp
}

// Success writes a success envelope and returns it. A zero status means 200.
func Success[T any](ctx *gin.Context, status int, data T, message string, meta any) APIResponse[T] {
	if status == 0 {
		status = http.StatusOK
	}
	return write(ctx, APIResponse[T]{Status: status, Success: true, Message: message, Data: data, Meta: meta})
}

// Error writes an error envelope and returns it without aborting the chain. A zero
// status means 400.
func Error[T any](ctx *gin.Context, status int, message string, err any) APIResponse[T] {
	if status == 0 {
		status = http.StatusBadRequest
	}
	return write(ctx, APIResponse[T]{Status: status, Message: message, Error: err})
}

// Abort writes an error envelope and stops the handler chain.
func Abort(ctx *gin.Context, status int, message string, err any) {
	Error[any](ctx, status, message, err)
	ctx.Abort()
}
