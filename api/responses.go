package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	deliciousfood "github.com/AUrban/DeliciousFood"
)

// endpointFunc is the shape of every handler body: it returns the status and
// response body, or an error to be translated into an error response. The
// wrapper runs it inside one top-most unit of work, so a returned error
// discards everything the handler wrote to the database.
type endpointFunc func(req *http.Request) (int, any, error)

func (api *API) ep(fn endpointFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var status int
		var body any

		err := api.provider.Run(req.Context(), func(ctx context.Context) error {
			var err error
			status, body, err = fn(req.WithContext(ctx))
			return err
		})
		if err != nil {
			api.writeErr(w, req, err)
			return
		}
		writeJSON(w, status, body)
	}
}

// writeErr translates an error into its response. Field-carrying errors map
// to a {field: [message]} body the way a model-validation failure does;
// anything outside the error taxonomy is logged and reported as a 500.
func (api *API) writeErr(w http.ResponseWriter, req *http.Request, err error) {
	field := "error"
	message := err.Error()
	var valErr deliciousfood.ValidationError
	var nfErr deliciousfood.NotFoundError
	if errors.As(err, &valErr) {
		field = valErr.Field
		message = valErr.Message
	} else if errors.As(err, &nfErr) {
		field = nfErr.Key
		message = nfErr.Error()
	}

	switch {
	case errors.Is(err, deliciousfood.ErrNotFound):
		writeFieldError(w, http.StatusNotFound, field, message)
	case errors.Is(err, deliciousfood.ErrValidation):
		writeFieldError(w, http.StatusBadRequest, field, message)
	case errors.Is(err, deliciousfood.ErrUnauthorized):
		writeUnauthorized(w)
	case errors.Is(err, deliciousfood.ErrPermission):
		writeForbidden(w)
	default:
		api.log.Errorf("(%s) %s %s: %v", requestID(req.Context()), req.Method, req.URL.Path, err)
		writeFieldError(w, http.StatusInternalServerError, "error", "An internal server error occurred")
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="DeliciousFood"`)
	writeFieldError(w, http.StatusUnauthorized, "error", "Valid credentials are required")
}

func writeForbidden(w http.ResponseWriter) {
	writeFieldError(w, http.StatusForbidden, "error", "You don't have permission to do that")
}

func writeFieldError(w http.ResponseWriter, status int, field string, message string) {
	writeJSON(w, status, map[string][]string{field: {message}})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	if body == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
