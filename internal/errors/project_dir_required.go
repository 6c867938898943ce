package errors

import "net/http"

var ErrProjectDirRequired = &Exception{
	Message:    "project dir is required",
	StatusCode: http.StatusBadRequest,
}
