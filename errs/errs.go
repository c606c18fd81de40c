// errs.go: Error handling surface for the atomic-ref library
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

// Package errs is the error-handling surface for atomic-ref: an error
// taxonomy built on github.com/agilira/go-errors, a pluggable handler hook
// for the cases the access controllers treat as fatal (an invariant proven
// impossible by the admission algorithm turning out false, or a poisoned
// primitive), and the constructors the rest of the module uses to raise
// them.
//
// Transaction.Execute's logical abort is deliberately NOT represented here:
// it is a plain bool, never an error.
package errs

import (
	"fmt"
	"os"
	"runtime"
	"time"

	goerrors "github.com/agilira/go-errors"
)

// Error codes, namespaced with an ATOMICREF_ prefix.
const (
	// ErrCodeInvalidWriteLine is the configuration error: max_write_line == 0.
	ErrCodeInvalidWriteLine goerrors.ErrorCode = "ATOMICREF_INVALID_WRITE_LINE"

	// ErrCodePoisoned marks a controller permanently unusable after a writer
	// panicked while holding its write permit. Raised only by the RW-Lock
	// controller variant.
	ErrCodePoisoned goerrors.ErrorCode = "ATOMICREF_POISONED"

	// ErrCodeInvariantViolation marks a CAS bookkeeping state the admission
	// algorithm proves cannot occur — e.g. a reader/writer counter
	// underflowing past zero.
	ErrCodeInvariantViolation goerrors.ErrorCode = "ATOMICREF_INVARIANT_VIOLATION"
)

// ErrorHandler observes fatal errors before they abort the process,
// letting diagnostics be routed anywhere (stderr, a metrics sink, a test
// harness) without the core depending on any of them directly.
type ErrorHandler func(err *goerrors.Error)

var defaultErrorHandler ErrorHandler = func(err *goerrors.Error) {
	fmt.Fprintf(os.Stderr, "[atomic-ref] %s: %s\n", err.Code, err.Message)
	if err.Cause != nil {
		fmt.Fprintf(os.Stderr, "[atomic-ref] caused by: %v\n", err.Cause)
	}
}

var currentErrorHandler = defaultErrorHandler

// SetErrorHandler installs a custom handler for fatal errors. Passing nil
// restores the default stderr handler.
func SetErrorHandler(h ErrorHandler) {
	if h == nil {
		currentErrorHandler = defaultErrorHandler
		return
	}
	currentErrorHandler = h
}

// GetErrorHandler returns the handler currently installed.
func GetErrorHandler() ErrorHandler {
	return currentErrorHandler
}

// NewCellError builds a taxonomy error with caller context attached, for
// recoverable construction-time failures (e.g. invalid configuration).
func NewCellError(code goerrors.ErrorCode, message string) *goerrors.Error {
	err := goerrors.New(code, message).
		WithSeverity("error").
		WithContext("component", "atomic_ref_cell").
		WithContext("timestamp", time.Now().UTC())

	if pc, file, line, ok := runtime.Caller(1); ok {
		if fn := runtime.FuncForPC(pc); fn != nil {
			_ = err.WithContext("caller_func", fn.Name())
		}
		_ = err.WithContext("caller_file", file)
		_ = err.WithContext("caller_line", line)
	}
	return err
}

// FatalInvariant routes an unrecoverable controller failure through the
// installed handler and then panics. Both fatal cases (invariant
// violation, poisoned primitive) go through here: neither is ever
// surfaced to callers of Read/Update/Snapshot as a recoverable error.
func FatalInvariant(code goerrors.ErrorCode, message string) {
	err := NewCellError(code, message)
	currentErrorHandler(err)
	panic(err)
}
