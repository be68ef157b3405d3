package httpserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/GoCodeAlone/colibri"
	"github.com/GoCodeAlone/colibri/routing"
)

// AttrRequestID is the request attribute holding the chi request ID, so
// callbacks can declare a "request_id" parameter.
const AttrRequestID = "request_id"

// Handler serves requests through router. Responses are written as the
// route produced them. When no route accepts a request the answer is 405
// with an Allow header if routes match the path for other methods, and 404
// otherwise. Dispatch errors are logged and answered with 500.
func Handler(router *routing.Router, logger colibri.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := routing.FromHTTP(r)
		if id := middleware.GetReqID(r.Context()); id != "" {
			req.SetAttribute(AttrRequestID, id)
		}

		res, err := router.Dispatch(r.Context(), req)
		if err != nil {
			logDispatchError(logger, r, err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		if res == nil {
			allowed, notAllowed, err := router.MethodNotAllowed(req)
			if err != nil {
				logDispatchError(logger, r, err)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if notAllowed {
				w.Header().Set("Allow", strings.Join(allowed, ", "))
				http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
				return
			}
			http.NotFound(w, r)
			return
		}

		if err := res.WriteTo(w); err != nil {
			logger.Debug("Failed to write response", "path", r.URL.Path, "error", err)
		}
	})
}

func logDispatchError(logger colibri.Logger, r *http.Request, err error) {
	args := []any{"method", r.Method, "path", r.URL.Path, "error", err}
	var arg *routing.ArgumentResolutionError
	if errors.As(err, &arg) {
		args = append(args, "parameter", arg.Param)
	}
	logger.Error("Request dispatch failed", args...)
}
