// Copyright 2026 The go-boot Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package irq

import (
	"sort"
	"sync"
)

// Soft is a software interrupt controller. Raised lines run their
// handler synchronously when unmasked and enabled; otherwise they are
// held pending and drained, in priority order, on UnmaskAll.
type Soft struct {
	mu       sync.Mutex
	masked   int // mask nesting depth
	enabled  map[Line]bool
	prio     map[Line]uint8
	handlers map[Line]func()
	pending  []Line

	nMask   int
	nUnmask int
}

// NewSoft returns a software interrupt controller with all lines
// disabled and interrupts unmasked.
func NewSoft() *Soft {
	return &Soft{
		enabled:  make(map[Line]bool),
		prio:     make(map[Line]uint8),
		handlers: make(map[Line]func()),
	}
}

func (c *Soft) Enable(l Line)  { c.mu.Lock(); c.enabled[l] = true; c.mu.Unlock() }
func (c *Soft) Disable(l Line) { c.mu.Lock(); c.enabled[l] = false; c.mu.Unlock() }

func (c *Soft) SetPriority(l Line, prio uint8) {
	c.mu.Lock()
	c.prio[l] = prio
	c.mu.Unlock()
}

func (c *Soft) Handle(l Line, h func()) {
	c.mu.Lock()
	c.handlers[l] = h
	c.mu.Unlock()
}

func (c *Soft) MaskAll() {
	c.mu.Lock()
	c.masked++
	c.nMask++
	c.mu.Unlock()
}

func (c *Soft) UnmaskAll() {
	c.mu.Lock()
	c.nUnmask++
	if c.masked > 0 {
		c.masked--
	}
	var run []func()
	if c.masked == 0 && len(c.pending) > 0 {
		lines := c.pending
		c.pending = nil
		sort.SliceStable(lines, func(i, j int) bool {
			return c.prio[lines[i]] < c.prio[lines[j]]
		})
		for _, l := range lines {
			if c.enabled[l] && c.handlers[l] != nil {
				run = append(run, c.handlers[l])
			}
		}
	}
	c.mu.Unlock()

	for _, h := range run {
		h()
	}
}

// Raise asserts line l. The handler runs before Raise returns unless
// interrupts are masked or the line is disabled.
func (c *Soft) Raise(l Line) {
	c.mu.Lock()
	if c.masked > 0 {
		c.pending = append(c.pending, l)
		c.mu.Unlock()
		return
	}
	h := c.handlers[l]
	ok := c.enabled[l] && h != nil
	c.mu.Unlock()

	if ok {
		h()
	}
}

// Masked reports whether interrupts are currently masked.
func (c *Soft) Masked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.masked > 0
}

// Stats returns how many times MaskAll and UnmaskAll were called.
func (c *Soft) Stats() (masks, unmasks int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nMask, c.nUnmask
}

var _ Controller = (*Soft)(nil)
