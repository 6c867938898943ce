package errors

import "net/http"

var ErrTaskNotStartable = &Exception{
	Message:    "task is not in 'created' status",
	StatusCode: http.StatusBadRequest,
}
