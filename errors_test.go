package unifs

import (
	"strings"
	"testing"

	"emperror.dev/errors"
)

func TestPathError(t *testing.T) {
	if NewPathError("read", "/a", nil) != nil {
		t.Error("NewPathError with nil error must return nil")
	}

	err := NewPathError("read", "ftp://host/a.txt", ErrNotExist)
	if !IsNotExist(err) {
		t.Errorf("IsNotExist(%v) = false", err)
	}
	if err.Error() != "read ftp://host/a.txt: file does not exist" {
		t.Errorf("Error() = %q", err.Error())
	}

	var pathErr *PathError
	if !errors.As(err, &pathErr) || pathErr.Op != "read" {
		t.Errorf("errors.As failed for %v", err)
	}

	wrapped := NewPathError("copy", "/src", err)
	if !IsNotExist(wrapped) {
		t.Error("nested path errors must keep the sentinel")
	}
}

func TestStatusError(t *testing.T) {
	tests := []struct {
		code  int
		check func(error) bool
	}{
		{404, IsNotExist},
		{410, IsNotExist},
		{401, IsPermission},
		{403, IsPermission},
		{412, IsExist},
	}
	for _, tt := range tests {
		err := NewPathError("get", "http://x", &StatusError{Method: "GET", URL: "http://x", StatusCode: tt.code})
		if !tt.check(err) {
			t.Errorf("status %d not mapped: %v", tt.code, err)
		}
	}

	err := &StatusError{Method: "GET", URL: "http://x", StatusCode: 500, Status: "500 Internal Server Error"}
	if IsNotExist(err) || IsPermission(err) || IsExist(err) {
		t.Error("500 must not map to a sentinel")
	}
	if !strings.Contains(err.Error(), "500 Internal Server Error") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestProviderNotFoundError(t *testing.T) {
	err := errors.WithStack(&ProviderNotFoundError{Path: "gopher://x"})
	if !IsProviderNotFound(err) {
		t.Error("IsProviderNotFound() = false")
	}
	if !strings.Contains(err.Error(), `"gopher://x"`) {
		t.Errorf("Error() = %q", err.Error())
	}
}
