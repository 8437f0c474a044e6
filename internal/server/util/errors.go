package util

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/NimaFathima/astrobiomers/pkg/logger"
	"github.com/NimaFathima/astrobiomers/pkg/query/rag"
	"github.com/NimaFathima/astrobiomers/pkg/store"

	"github.com/labstack/echo/v4"
)

var ErrFeatureDisabled = errors.New("feature not configured")

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// ErrorStatus maps a service error to its HTTP status. Absent records are
// 404, unreachable backends 503.
func ErrorStatus(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, rag.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrUnavailable), errors.Is(err, ErrFeatureDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorJSON writes err with the status chosen by ErrorStatus. Internal
// details are only exposed for client errors.
func ErrorJSON(c echo.Context, err error) error {
	status := ErrorStatus(err)
	switch status {
	case http.StatusNotFound:
		return c.JSON(status, ErrorResponse{Error: "Not found", Details: err.Error()})
	case http.StatusServiceUnavailable:
		logger.Warn("[Server] Backend unavailable", "path", c.Path(), "err", err)
		return c.JSON(status, ErrorResponse{Error: "Service unavailable"})
	default:
		logger.Error("[Server] Request failed", "path", c.Path(), "err", err)
		return c.JSON(status, ErrorResponse{Error: "Internal server error"})
	}
}

func BadRequest(c echo.Context, err error) error {
	res := ErrorResponse{Error: "Invalid request body"}
	if err != nil {
		res.Details = err.Error()
	}
	return c.JSON(http.StatusBadRequest, res)
}

// IntQueryParam reads an integer query parameter. A missing value yields
// def; values outside [lo, hi] are an error.
func IntQueryParam(c echo.Context, name string, def, lo, hi int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New(name + " must be an integer")
	}
	if v < lo || v > hi {
		return 0, errors.New(name + " must be between " + strconv.Itoa(lo) + " and " + strconv.Itoa(hi))
	}
	return v, nil
}

const maxQueryText = 200

// TextQueryParam reads a trimmed free text query parameter of at most
// maxQueryText characters.
func TextQueryParam(c echo.Context, name string, required bool) (string, error) {
	v := strings.TrimSpace(c.QueryParam(name))
	if v == "" && required {
		return "", errors.New(name + " is required")
	}
	if len([]rune(v)) > maxQueryText {
		return "", errors.New(name + " must be at most " + strconv.Itoa(maxQueryText) + " characters")
	}
	return v, nil
}
