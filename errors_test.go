package opensandbox

import (
	"errors"
	"fmt"
	"testing"

	"connectrpc.com/connect"
)

func TestAPIErrorMessage(t *testing.T) {
	// Constructed directly, Message is empty and the body format applies.
	err := &APIError{StatusCode: 404, Body: []byte(`{"message":"not found"}`)}
	if msg := err.Error(); msg != `api error: status 404, body: {"message":"not found"}` {
		t.Errorf("unexpected error message: %s", msg)
	}

	// The factory parses code and message out of a JSON body.
	err2 := newAPIError(404, []byte(`{"code":"not_found","message":"resource not found"}`))
	if err2.Code != "not_found" {
		t.Errorf("expected code 'not_found', got %q", err2.Code)
	}
	if err2.Message != "resource not found" {
		t.Errorf("expected message 'resource not found', got %q", err2.Message)
	}
	if msg := err2.Error(); msg != "api error: status 404: resource not found" {
		t.Errorf("unexpected error message: %s", msg)
	}

	// A non-JSON body falls back to the body format.
	err3 := newAPIError(500, []byte("internal error"))
	if err3.Code != "" || err3.Message != "" {
		t.Errorf("expected empty code/message for non-JSON body, got code=%q message=%q", err3.Code, err3.Message)
	}
	if msg := err3.Error(); msg != "api error: status 500, body: internal error" {
		t.Errorf("unexpected error message: %s", msg)
	}

	// Empty body.
	err4 := newAPIError(502, nil)
	if err4.Code != "" || err4.Message != "" {
		t.Errorf("expected empty code/message for nil body, got code=%q message=%q", err4.Code, err4.Message)
	}
}

func TestIsNotFound(t *testing.T) {
	if !IsNotFound(&APIError{StatusCode: 404}) {
		t.Error("expected true for 404 APIError")
	}
	if IsNotFound(&APIError{StatusCode: 500}) {
		t.Error("expected false for 500 APIError")
	}
	if !IsNotFound(fmt.Errorf("delete sandbox: %w", &APIError{StatusCode: 404})) {
		t.Error("expected true for wrapped 404 APIError")
	}
	if !IsNotFound(connect.NewError(connect.CodeNotFound, errors.New("no such process"))) {
		t.Error("expected true for connect not-found error")
	}
	if !IsNotFound(fmt.Errorf("stat: %w", connect.NewError(connect.CodeNotFound, errors.New("missing")))) {
		t.Error("expected true for wrapped connect not-found error")
	}
	if IsNotFound(connect.NewError(connect.CodePermissionDenied, errors.New("denied"))) {
		t.Error("expected false for connect permission error")
	}
	if IsNotFound(errors.New("plain error")) {
		t.Error("expected false for plain error")
	}
	if IsNotFound(nil) {
		t.Error("expected false for nil")
	}
}
