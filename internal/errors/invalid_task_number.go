package errors

import "net/http"

var ErrInvalidTaskNumber = &Exception{
	Message:    "invalid task number",
	StatusCode: http.StatusBadRequest,
}
