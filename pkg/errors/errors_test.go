package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"app error wins", New(ErrInvalidInput, http.StatusTeapot, "x"), http.StatusTeapot},
		{"unavailable", Unavailable(errors.New("no feed")), http.StatusServiceUnavailable},
		{"wrapped sentinel", fmt.Errorf("loading: %w", ErrDataUnavailable), http.StatusServiceUnavailable},
		{"filter value", ErrInvalidFilterValue, http.StatusBadRequest},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatusCode(tt.err); got != tt.want {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestResponse(t *testing.T) {
	body := Response(Unavailable(errors.New("primary and fallback feeds missing")))
	if body.Error != "data unavailable" {
		t.Errorf("expected error=data unavailable, got %q", body.Error)
	}
	if body.Message != "primary and fallback feeds missing" {
		t.Errorf("unexpected message %q", body.Message)
	}

	plain := Response(errors.New("boom"))
	if plain.Error != "internal error" || plain.Message != "boom" {
		t.Errorf("unexpected plain body %+v", plain)
	}
}

func TestResponseWrappedSentinel(t *testing.T) {
	body := Response(fmt.Errorf("search: %w", ErrTimeout))
	if body.Error != "operation timed out" {
		t.Errorf("expected sentinel text, got %q", body.Error)
	}
	if body.Message != "search: operation timed out" {
		t.Errorf("unexpected message %q", body.Message)
	}
}
