package errors

import "net/http"

var ErrTaskNotFinishable = &Exception{
	Message:    "task is not in 'started' status",
	StatusCode: http.StatusBadRequest,
}
