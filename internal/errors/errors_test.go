package errors

import (
	stderrors "errors"
	"io"
	"net/http"
	"testing"
)

func TestAPIError(t *testing.T) {
	tests := []struct {
		name   string
		err    *APIError
		status int
		code   ErrorCode
		msg    string
	}{
		{"not found", NotFound("subject"), http.StatusNotFound, ErrNotFound, "subject not found"},
		{"bad request", BadRequest("nope"), http.StatusBadRequest, ErrValidationFailed, "nope"},
		{"invalid", InvalidFormat("id", "x"), http.StatusBadRequest, ErrInvalidFormat, "Invalid id"},
		{"not ready", NotReady(), http.StatusServiceUnavailable, ErrNotReady, "Archive not ingested yet"},
		{"rate limited", RateLimited(), http.StatusTooManyRequests, ErrRateLimited, "Rate limit exceeded"},
		{"wrapped", Internal("boom").Wrap(io.EOF), http.StatusInternalServerError, ErrInternal, "boom: EOF"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ews ErrorWithStatus = tt.err
			if ews.StatusCode() != tt.status {
				t.Errorf("StatusCode() = %d, want %d", ews.StatusCode(), tt.status)
			}
			if ews.Code() != tt.code {
				t.Errorf("Code() = %q, want %q", ews.Code(), tt.code)
			}
			if ews.Error() != tt.msg {
				t.Errorf("Error() = %q, want %q", ews.Error(), tt.msg)
			}
		})
	}

	t.Run("unwrap", func(t *testing.T) {
		if err := Internal("boom").Wrap(io.EOF); !stderrors.Is(err, io.EOF) {
			t.Error("errors.Is(err, io.EOF) = false")
		}
	})

	t.Run("details", func(t *testing.T) {
		if got := InvalidFormat("id", "abc").Details()["id"]; got != "abc" {
			t.Errorf("Details()[id] = %v, want abc", got)
		}
		if got := NotFound("x").Details(); got != nil {
			t.Errorf("Details() = %v, want nil", got)
		}
	})
}
