package errors

import "net/http"

var ErrInvalidStatusTransition = &Exception{
	Message:    "invalid status transition",
	StatusCode: http.StatusConflict,
}
