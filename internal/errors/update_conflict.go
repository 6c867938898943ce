package errors

import "net/http"

// ErrUpdateConflict covers both causes of a failed versioned update: the row
// is gone or the caller's version is stale. The two are not distinguished.
var ErrUpdateConflict = &Exception{
	Message:    "task update failed (id not found or version mismatch)",
	StatusCode: http.StatusConflict,
}
