package util

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/NimaFathima/astrobiomers/pkg/query/rag"
	"github.com/NimaFathima/astrobiomers/pkg/store"

	"github.com/labstack/echo/v4"
)

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: fmt.Errorf("%w: read: %w", store.ErrUnavailable, errors.New("dial tcp")), want: http.StatusServiceUnavailable},
		{err: fmt.Errorf("paper 1: %w", store.ErrNotFound), want: http.StatusNotFound},
		{err: rag.ErrSessionNotFound, want: http.StatusNotFound},
		{err: ErrFeatureDisabled, want: http.StatusServiceUnavailable},
		{err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, test := range tests {
		if got := ErrorStatus(test.err); got != test.want {
			t.Errorf("ErrorStatus(%v) = %d, want %d", test.err, got, test.want)
		}
	}
}

func TestIntQueryParam(t *testing.T) {
	tests := []struct {
		query   string
		want    int
		wantErr bool
	}{
		{query: "", want: 100},
		{query: "limit=5", want: 5},
		{query: "limit=500", want: 500},
		{query: "limit=0", wantErr: true},
		{query: "limit=501", wantErr: true},
		{query: "limit=ten", wantErr: true},
	}

	e := echo.New()
	for _, test := range tests {
		req := httptest.NewRequest(http.MethodGet, "/?"+test.query, nil)
		c := e.NewContext(req, httptest.NewRecorder())
		got, err := IntQueryParam(c, "limit", 100, 1, 500)
		if test.wantErr {
			if err == nil {
				t.Errorf("%q: expected an error", test.query)
			}
			continue
		}
		if err != nil || got != test.want {
			t.Errorf("%q: got %d, %v, want %d", test.query, got, err, test.want)
		}
	}
}

func TestTextQueryParam(t *testing.T) {
	tests := []struct {
		query    string
		required bool
		want     string
		wantErr  bool
	}{
		{query: "q=+bone+loss+", want: "bone loss"},
		{query: "", want: ""},
		{query: "", required: true, wantErr: true},
		{query: "q=+++", required: true, wantErr: true},
		{query: "q=" + strings.Repeat("a", maxQueryText+1), wantErr: true},
	}
	e := echo.New()
	for _, test := range tests {
		req := httptest.NewRequest(http.MethodGet, "/?"+test.query, nil)
		c := e.NewContext(req, httptest.NewRecorder())
		got, err := TextQueryParam(c, "q", test.required)
		if test.wantErr {
			if err == nil {
				t.Errorf("%q: expected an error", test.query)
			}
			continue
		}
		if err != nil || got != test.want {
			t.Errorf("%q: got %q, %v, want %q", test.query, got, err, test.want)
		}
	}
}
