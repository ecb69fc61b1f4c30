// Package httpx adapts error-returning handlers to net/http. Handlers
// receive a per-request environment and return an error; the adapter
// maps the error to a JSON response and a status code.
package httpx

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-json-experiment/json"
)

// StatusError carries an HTTP status code across the handler boundary.
type StatusError struct {
	Code int
	Err  error
}

func (se *StatusError) Error() string { return se.Err.Error() }

func (se *StatusError) Status() int { return se.Code }

// Error wraps err with the given HTTP status code.
func Error(code int, err error) error {
	return &StatusError{Code: code, Err: err}
}

// HandlerFunc turns an error-returning handler into an http.HandlerFunc.
// A returned StatusError sets the response status; any other error is a
// 500. The error text is written as a JSON body either way.
func HandlerFunc[E any](envFn func(r *http.Request) *E, fn func(*E, http.ResponseWriter, *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := fn(envFn(r), w, r)
		if err == nil {
			return
		}
		code := http.StatusInternalServerError
		if se := new(StatusError); errors.As(err, &se) {
			code = se.Status()
		}
		log.Printf("HTTP: method: %s, path: %s, status: %d, error: %s", r.Method, r.URL.Path, code, err)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(code)
		json.MarshalFull(w, map[string]any{
			"error": err.Error(),
		})
	}
}
