package util

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestToDomainErrorPassthrough(t *testing.T) {
	original := NewForbidden("nope")
	wrapped := fmt.Errorf("handler: %w", original)

	got := ToDomainError(wrapped)
	if got.Code != "FORBIDDEN" || got.HTTPStatus != http.StatusForbidden {
		t.Fatalf("ToDomainError = %+v, want the wrapped FORBIDDEN error", got)
	}
}

func TestToDomainErrorNoRows(t *testing.T) {
	got := ToDomainError(sql.ErrNoRows)
	if got.Code != "NOT_FOUND" || got.HTTPStatus != http.StatusNotFound {
		t.Fatalf("ToDomainError(ErrNoRows) = %+v, want NOT_FOUND", got)
	}
}

func TestToDomainErrorUnknown(t *testing.T) {
	got := ToDomainError(errors.New("boom"))
	if got.Code != "INTERNAL_ERROR" || got.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("ToDomainError = %+v, want INTERNAL_ERROR", got)
	}
}

func TestDomainErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewStoreUnavailable(cause)
	if !errors.Is(err, cause) {
		t.Fatal("NewStoreUnavailable does not unwrap to its cause")
	}
}

func TestConstructorCodes(t *testing.T) {
	cases := map[string]struct {
		err    error
		code   string
		status int
	}{
		"validation": {NewValidationError("bad", nil), "VALIDATION_FAILED", http.StatusBadRequest},
		"invalid":    {NewInvalidCredential("bad"), "INVALID_CREDENTIAL", http.StatusUnauthorized},
		"expired":    {NewExpiredCredential("old"), "EXPIRED", http.StatusUnauthorized},
		"forbidden":  {NewForbidden("no"), "FORBIDDEN", http.StatusForbidden},
		"not found":  {NewNotFound("ticket", nil), "NOT_FOUND", http.StatusNotFound},
		"conflict":   {NewConflict("dup", nil), "CONFLICT", http.StatusConflict},
		"store":      {NewStoreUnavailable(nil), "STORE_UNAVAILABLE", http.StatusServiceUnavailable},
	}
	for name, tc := range cases {
		var domainErr *DomainError
		if !errors.As(tc.err, &domainErr) {
			t.Errorf("%s: not a DomainError", name)
			continue
		}
		if domainErr.Code != tc.code || domainErr.HTTPStatus != tc.status {
			t.Errorf("%s: got (%s, %d), want (%s, %d)", name, domainErr.Code, domainErr.HTTPStatus, tc.code, tc.status)
		}
	}
}
