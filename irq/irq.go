// Copyright 2026 The go-boot Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package irq models the interrupt controller the NVM driver runs
// against: line enable and priority configuration, plus the global
// interrupt mask used as a critical section around half-page bursts.
package irq // import "github.com/go-boot/stml0/irq"

// Line is the position of an interrupt in the vector table.
type Line int16

// Controller configures interrupt lines and the global interrupt mask.
//
// MaskAll and UnmaskAll are the PRIMASK-style critical section: while
// masked, raised lines are held pending and delivered on unmask.
type Controller interface {
	Enable(l Line)
	Disable(l Line)
	SetPriority(l Line, prio uint8)

	// Handle registers h as the service routine for line l.
	Handle(l Line, h func())

	MaskAll()
	UnmaskAll()
}
