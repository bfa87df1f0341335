// Copyright 2026 The go-boot Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nvm

import (
	"log"

	"github.com/go-boot/stml0/irq"
)

type config struct {
	swap   bool // invert byte order before word stores
	budget int  // max SR polls per flag before ErrTimeout

	irq    irq.Controller
	report func(sr uint32) // fault diagnostic sink
	halt   func()          // terminal halt, never returns
	msg    *log.Logger
}

func newConfig() config {
	return config{
		budget: 1000000,
		irq:    irq.NewSoft(),
		halt:   halt,
	}
}

// halt spins forever. A corrupted in-progress flash write must never
// fall through to possibly-executable code.
func halt() {
	select {}
}

// Option configures an NVM device.
type Option func(*config)

// WithByteSwap inverts the byte order of values before they are stored
// by ProgramWord. Needed when the transport delivering the firmware
// does not already match the native word layout of the target.
func WithByteSwap(swap bool) Option {
	return func(cfg *config) {
		cfg.swap = swap
	}
}

// WithPollBudget bounds how many times each of the BSY and EOP flags
// is polled before an operation gives up with ErrTimeout. The hardware
// contract has no such bound: a stuck flag hangs the caller forever.
// The budget trades that hang for an explicit error.
func WithPollBudget(n int) Option {
	return func(cfg *config) {
		if n > 0 {
			cfg.budget = n
		}
	}
}

// WithIRQ sets the interrupt controller used for the fault interrupt
// and for the global critical section around half-page bursts.
func WithIRQ(ctl irq.Controller) Option {
	return func(cfg *config) {
		if ctl != nil {
			cfg.irq = ctl
		}
	}
}

// WithFaultReporter sets the diagnostic sink called by the fault trap
// with the status register content, before the system halts.
func WithFaultReporter(report func(sr uint32)) Option {
	return func(cfg *config) {
		cfg.report = report
	}
}

// WithLogger sets the logger used by the device.
func WithLogger(msg *log.Logger) Option {
	return func(cfg *config) {
		if msg != nil {
			cfg.msg = msg
		}
	}
}
