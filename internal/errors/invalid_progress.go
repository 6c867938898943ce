package errors

import "net/http"

var ErrInvalidProgress = &Exception{
	Message:    "progress must be between 0.0 and 1.0",
	StatusCode: http.StatusBadRequest,
}
