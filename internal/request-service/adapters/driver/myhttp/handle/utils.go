package handle

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"

	"blood-link/internal/mylogger"
	"blood-link/internal/request-service/core/myerrors"
)

const (
	// UserHeader carries the authenticated user id set by the auth middleware.
	UserHeader = "X-UserId"

	maxBodyBytes = 1 << 20
)

// jsonResponse writes the given data as a JSON-encoded HTTP response.
func jsonResponse(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(data)
}

// JsonError writes an error response as JSON with the specified HTTP status code.
func JsonError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": err.Error(),
		"code":  code,
	})
}

type errorBody struct {
	Error         string `json:"error"`
	Code          int    `json:"code"`
	Kind          string `json:"kind"`
	RemainingDays int    `json:"remaining_days,omitempty"`
}

// StatusFor maps an error kind to its HTTP status; infrastructure errors are 500.
func StatusFor(kind myerrors.Kind) int {
	switch kind {
	case myerrors.KindValidation:
		return http.StatusBadRequest
	case myerrors.KindRateLimit:
		return http.StatusTooManyRequests
	case myerrors.KindPermission:
		return http.StatusForbidden
	case myerrors.KindNotFound:
		return http.StatusNotFound
	case myerrors.KindInvalidState, myerrors.KindAlreadyAccepted, myerrors.KindFulfilled, myerrors.KindConflict:
		return http.StatusConflict
	case myerrors.KindCompatibility, myerrors.KindCooldown:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// domainError renders service errors. Details of infrastructure failures stay in the log.
func domainError(w http.ResponseWriter, log mylogger.Logger, err error) {
	kind := myerrors.KindOf(err)
	code := StatusFor(kind)
	if kind == "" {
		log.Error("request failed", err)
		jsonResponse(w, code, errorBody{Error: myerrors.ErrDBConnClosedMsg.Error(), Code: code, Kind: "internal"})
		return
	}
	jsonResponse(w, code, errorBody{
		Error:         err.Error(),
		Code:          code,
		Kind:          string(kind),
		RemainingDays: myerrors.RemainingDays(err),
	})
}

func userID(r *http.Request) string {
	return r.Header.Get(UserHeader)
}

// decode fills v from the body; an empty body is allowed when optional is set.
func decode(w http.ResponseWriter, r *http.Request, v any, optional bool) error {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) && optional {
		return nil
	}
	if err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func queryFloat(r *http.Request, key string) (*float64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("query %s: %q is not a number", key, raw)
	}
	return &v, nil
}
