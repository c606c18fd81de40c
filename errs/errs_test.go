// errs_test.go: Tests for the error-handling surface
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package errs

import (
	"testing"

	goerrors "github.com/agilira/go-errors"
)

func TestNewCellErrorCarriesCode(t *testing.T) {
	err := NewCellError(ErrCodeInvalidWriteLine, "boom")
	if err.Code != ErrCodeInvalidWriteLine {
		t.Fatalf("Code = %v, want %v", err.Code, ErrCodeInvalidWriteLine)
	}
	if err.Message != "boom" {
		t.Fatalf("Message = %q, want %q", err.Message, "boom")
	}
}

func TestSetErrorHandlerRoutesFatalInvariant(t *testing.T) {
	defer SetErrorHandler(nil)

	var got *goerrors.Error
	SetErrorHandler(func(err *goerrors.Error) {
		got = err
	})

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected FatalInvariant to panic")
		}
		if got == nil {
			t.Fatal("handler was never invoked before the panic")
		}
	}()
	FatalInvariant(ErrCodePoisoned, "test poison")
}

func TestSetErrorHandlerNilRestoresDefault(t *testing.T) {
	custom := func(err *goerrors.Error) {}
	SetErrorHandler(custom)
	SetErrorHandler(nil)

	if GetErrorHandler() == nil {
		t.Fatal("GetErrorHandler() returned nil after reset")
	}
}
