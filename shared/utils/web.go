package utils

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"

	sharederrors "github.com/itchan-dev/crosspost/shared/errors"
	"github.com/itchan-dev/crosspost/shared/logger"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type errorResponse struct {
	Error string `json:"error"`
}

// WriteErrorAndStatusCode answers with a JSON error body. Errors that are
// not ErrorWithStatusCode become 500.
func WriteErrorAndStatusCode(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var e *sharederrors.ErrorWithStatusCode
	if errors.As(err, &e) {
		status = e.StatusCode
	} else {
		logger.Log.Error("request failed", "component", "http", "error", err)
	}
	WriteJSON(w, status, errorResponse{Error: err.Error()})
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Warn("failed to write response", "component", "http", "error", err)
	}
}

func DecodeValidate(r io.Reader, body any) error {
	if err := Decode(r, body); err != nil {
		return err
	}
	if err := validate.Struct(body); err != nil {
		logger.Log.Debug("request validation failed", "component", "http", "error", err)
		return sharederrors.BadRequest("Required fields missing")
	}
	return nil
}

func Decode(r io.Reader, body any) error {
	if err := json.NewDecoder(r).Decode(body); err != nil {
		logger.Log.Debug("invalid request body", "component", "http", "error", err)
		return sharederrors.BadRequest("Body is invalid json")
	}
	return nil
}
