package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/tendant/page-modules/pkg/pagemodules"
)

// ErrorBody is the payload of every error response
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes one failure. Tree is set for reorder_failed and holds
// the tree resynchronized from storage.
type ErrorDetail struct {
	Code    string                    `json:"code"`
	Message string                    `json:"message"`
	Tree    *pagemodules.TreeSnapshot `json:"tree,omitempty"`
}

// statusFor maps the engine error taxonomy onto HTTP. A reorder failure wraps
// its cause, so it is matched first.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, pagemodules.ErrReorderFailed):
		return http.StatusConflict, "reorder_failed"
	case errors.Is(err, pagemodules.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, pagemodules.ErrInvalidType):
		return http.StatusUnprocessableEntity, "invalid_type"
	case errors.Is(err, pagemodules.ErrInvalidParent):
		return http.StatusUnprocessableEntity, "invalid_parent"
	case errors.Is(err, pagemodules.ErrInvalidData):
		return http.StatusUnprocessableEntity, "invalid_data"
	case errors.Is(err, pagemodules.ErrTreeBusy):
		return http.StatusConflict, "tree_busy"
	case errors.Is(err, pagemodules.ErrPersistenceUnavailable):
		return http.StatusServiceUnavailable, "persistence_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	body := ErrorBody{Error: ErrorDetail{Code: code, Message: err.Error()}}

	var reorderErr *pagemodules.ReorderError
	if errors.As(err, &reorderErr) && reorderErr.Tree != nil {
		body.Error.Tree = reorderErr.Tree.Snapshot()
	}

	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		slog.Warn("Request rejected", "method", r.Method, "path", r.URL.Path, "code", code, "error", err)
	}
	render.Status(r, status)
	render.JSON(w, r, body)
}

func badRequest(w http.ResponseWriter, r *http.Request, message string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, ErrorBody{Error: ErrorDetail{Code: "bad_request", Message: message}})
}
