package httpserver

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"

	"github.com/and161185/library-circulation/internal/errs"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxBodyBytes = 1 << 20

type apiError struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, statusCode int, data any) {
	writeJSON(w, statusCode, map[string]any{
		"status": "success",
		"data":   data,
	})
}

func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, apiError{
		Status:  "error",
		Code:    code,
		Message: message,
	})
}

// decodeBody reads exactly one JSON value into dst and validates it.
// Malformed bodies, unknown fields and failed validation all become ErrInvalidInput.
func decodeBody(r *http.Request, v *validator.Validate, dst any) error {
	present, err := decodeOptionalBody(r, v, dst)
	if err == nil && !present {
		return errs.Invalid("empty body")
	}
	return err
}

// decodeOptionalBody is decodeBody for endpoints whose body may be omitted.
// It reports false when there was nothing to decode, chunked or not.
func decodeOptionalBody(r *http.Request, v *validator.Validate, dst any) (bool, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return false, nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return true, errs.Invalid("malformed json")
	}
	if dec.More() {
		return true, errs.Invalid("request body must contain a single JSON value")
	}
	if err := v.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return true, errs.Invalid(verrs[0].Field() + " failed " + verrs[0].Tag())
		}
		return true, errs.Invalid(err.Error())
	}
	return true, nil
}
