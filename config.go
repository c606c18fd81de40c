// config.go: Construction-time configuration for the atomic reference cell
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package atomicref

import (
	"github.com/manuelgdlvh/atomic-ref/access"
	"github.com/manuelgdlvh/atomic-ref/errs"
)

// defaultMaxWriteLine is a small constant recommended as a starting point
// for bounding writer-phase length.
const defaultMaxWriteLine uint16 = 16

// CellConfig collects the knobs NewCell needs to build a Cell: which
// controller variant to use, the phased variant's write-line bound, and
// where fatal errors get reported. Built with the usual config struct +
// functional-options shape.
type CellConfig struct {
	Variant      access.Kind
	MaxWriteLine uint16
	OnError      errs.ErrorHandler
}

// Option mutates a CellConfig under construction.
type Option func(*CellConfig)

// WithPhased selects the Phased-CAS controller with the given write-line
// bound.
func WithPhased(maxWriteLine uint16) Option {
	return func(c *CellConfig) {
		c.Variant = access.Phased
		c.MaxWriteLine = maxWriteLine
	}
}

// WithRWLock selects the RW-Lock controller.
func WithRWLock() Option {
	return func(c *CellConfig) {
		c.Variant = access.RWLock
	}
}

// WithErrorHandler installs h as the process-wide fatal-error handler
// (errs.SetErrorHandler has no per-cell scope to hook into). Unset,
// NewCell leaves whatever handler is already installed alone.
func WithErrorHandler(h errs.ErrorHandler) Option {
	return func(c *CellConfig) {
		c.OnError = h
	}
}

// withDefaults fills in zero-valued fields: Phased with the default
// write-line bound. An unset Variant defaults to Phased.
func (c *CellConfig) withDefaults() *CellConfig {
	if c.Variant == access.RWLock {
		return c
	}
	c.Variant = access.Phased
	if c.MaxWriteLine == 0 {
		c.MaxWriteLine = defaultMaxWriteLine
	}
	return c
}

// Validate rejects the configuration error: a Phased variant with
// MaxWriteLine == 0.
func (c *CellConfig) Validate() error {
	if c.Variant == access.Phased && c.MaxWriteLine == 0 {
		return errs.NewCellError(errs.ErrCodeInvalidWriteLine, "max_write_line must be >= 1 for the phased controller")
	}
	return nil
}

// NewCell is the configuration-driven constructor: unlike NewPhasedCell,
// an invalid MaxWriteLine is a recoverable error here rather than a panic,
// reflecting the distinction between a programmer error at a direct
// constructor and a validated configuration path.
func NewCell[T any](initial T, opts ...Option) (*Cell[T], error) {
	// Defaults are filled before the options run, so an explicit
	// WithPhased(0) reaches Validate as 0 instead of being defaulted away.
	cfg := (&CellConfig{}).withDefaults()
	for _, opt := range opts {
		opt(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.OnError != nil {
		errs.SetErrorHandler(cfg.OnError)
	}

	if cfg.Variant == access.RWLock {
		return NewRWCell[T](initial), nil
	}
	return newCell[T](initial, access.NewPhasedController(cfg.MaxWriteLine)), nil
}
