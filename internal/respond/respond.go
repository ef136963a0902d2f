// internal/respond/respond.go
//
// JSON response helpers shared by every API handler.
//
// Context
// -------
// Handlers never build error bodies by hand.  They pass the error they got
// to Error, which:
//
//   - maps form validation failures to 422 {error, fields},
//   - honours an explicit status pinned with WithStatus (unknown site,
//     unknown entity, bad upload),
//   - classifies everything else with database.Classify and writes the fixed
//     user message with its status.
//
// Every non-validation error is logged through the request logger before
// the body is written, so nothing is silently dropped.
//
// Notes
// -----
// • Oxford commas, two spaces after periods.
package respond

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/yanizio/siteadmin/internal/database"
	"github.com/yanizio/siteadmin/internal/form"
	"github.com/yanizio/siteadmin/internal/logger"
)

// ValidationMessage heads every 422 body.
const ValidationMessage = "Please correct the highlighted fields."

// Body is the error envelope.
type Body struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// StatusError pins an explicit status and message to an error.
type StatusError struct {
	Code int
	Msg  string
	Err  error
}

func (e *StatusError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *StatusError) Unwrap() error { return e.Err }

// WithStatus wraps err so Error writes code and msg instead of classifying.
func WithStatus(code int, msg string, err error) error {
	return &StatusError{Code: code, Msg: msg, Err: err}
}

// JSON writes v with status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are gone; the log is all that is left.
		zap.S().Errorw("response encode failed", "status", status, "err", err)
	}
}

// Message writes {error: msg} with status.
func Message(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, Body{Error: msg})
}

// Validation writes a 422 with per-field messages.
func Validation(w http.ResponseWriter, ve form.ValidationError) {
	JSON(w, http.StatusUnprocessableEntity, Body{Error: ValidationMessage, Fields: ve.Map()})
}

// Error logs err and writes the matching status and body.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	if ve, ok := form.AsValidationError(err); ok {
		Validation(w, ve)
		return
	}

	status, msg := Classify(err)
	log := logger.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Errorw("request failed", "status", status, "err", err)
	} else {
		log.Warnw("request rejected", "status", status, "err", err)
	}
	Message(w, status, msg)
}

// Classify returns the status and user message for err.
func Classify(err error) (int, string) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code, se.Msg
	}
	return database.Status(err), database.Message(err)
}
