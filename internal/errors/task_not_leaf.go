package errors

import "net/http"

var ErrTaskNotLeaf = &Exception{
	Message:    "task is not a leaf",
	StatusCode: http.StatusBadRequest,
}
