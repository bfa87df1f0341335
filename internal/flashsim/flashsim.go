// Copyright 2026 The go-boot Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package flashsim simulates the STM32L0x3 NVM controller and its
// flash bank: the two-stage key unlock state machine, BSY/EOP flag
// timing, erase-to-ones and program-by-OR semantics, and the error
// interrupt. It stands in for the memory-mapped hardware in tests and
// in the -sim mode of the programming tools.
package flashsim // import "github.com/go-boot/stml0/internal/flashsim"

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/go-boot/stml0/internal/regs"
	"github.com/go-boot/stml0/irq"
)

// Controller simulates the NVM interface register block together with
// the flash bank it controls.
type Controller struct {
	mu    sync.Mutex
	pecr  uint32
	sr    uint32
	flash []byte

	pekey  int // unlock stages: 0 idle, 1 first key matched
	prgkey int

	busy   int  // SR reads left reporting BSY for the pending operation
	opDone bool // assert EOP once busy drains

	hp struct {
		n    int
		addr int64
		buf  [regs.HPAGE_WORDS]uint32
	}

	irqc *irq.Soft
	line irq.Line

	latency    int    // BSY polls per operation
	stuck      bool   // operations never complete
	denyUnlock bool   // key sequences are ignored
	failMask   uint32 // one-shot error flags for the next operation
}

// Option configures a simulated controller.
type Option func(*Controller)

// WithLatency sets how many SR reads report BSY before an operation
// completes.
func WithLatency(n int) Option {
	return func(c *Controller) { c.latency = n }
}

// WithFlashSize sets the size of the simulated flash bank, in bytes.
func WithFlashSize(n int) Option {
	return func(c *Controller) { c.flash = make([]byte, n) }
}

// WithDenyUnlock makes the controller ignore all key sequences, so the
// lock bits never clear.
func WithDenyUnlock() Option {
	return func(c *Controller) { c.denyUnlock = true }
}

// WithStuckBusy makes every operation hang with BSY asserted forever.
func WithStuckBusy() Option {
	return func(c *Controller) { c.stuck = true }
}

// New returns a simulated controller with a blank (all-ones) flash
// bank and both lock bits set.
func New(opts ...Option) *Controller {
	c := &Controller{
		pecr:    regs.PECR_PELOCK | regs.PECR_PRGLOCK | regs.PECR_OPTLOCK,
		latency: 3,
		flash:   make([]byte, regs.FLASH_BANK_SPAN),
	}
	for _, opt := range opts {
		opt(c)
	}
	for i := range c.flash {
		c.flash[i] = 0xFF
	}
	return c
}

// AttachIRQ routes the controller error interrupt to line l of ctl.
func (c *Controller) AttachIRQ(ctl *irq.Soft, l irq.Line) {
	c.mu.Lock()
	c.irqc = ctl
	c.line = l
	c.mu.Unlock()
}

// InjectFault arms a one-shot hardware fault: the next triggered
// operation does not complete, raises the given error flags and
// asserts the error interrupt.
func (c *Controller) InjectFault(mask uint32) {
	c.mu.Lock()
	c.failMask = mask & regs.SR_ERR_MASK
	c.mu.Unlock()
}

// Regs returns the register-block view of the controller.
func (c *Controller) Regs() *RegFile { return &RegFile{c} }

// Bank returns the flash-bank view of the controller.
func (c *Controller) Bank() *Bank { return &Bank{c} }

// Locked reports whether PELOCK is set.
func (c *Controller) Locked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pecr&regs.PECR_PELOCK != 0
}

// ProgramLocked reports whether PRGLOCK is set.
func (c *Controller) ProgramLocked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pecr&regs.PECR_PRGLOCK != 0
}

// PECR returns the current value of the program/erase control register.
func (c *Controller) PECR() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pecr
}

// SR returns the current value of the status register, without the
// side effects of a bus read.
func (c *Controller) SR() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sr
}

// trigger starts the completion timing of an accepted operation.
// The caller holds c.mu.
func (c *Controller) trigger() {
	if c.stuck {
		c.busy = int(^uint(0) >> 1)
		return
	}
	c.busy = c.latency
	c.opDone = true
}

// fail aborts the pending operation with the armed error flags.
// The caller holds c.mu; fail reports whether the interrupt must be
// raised once the lock is released.
func (c *Controller) fail() bool {
	c.sr |= c.failMask
	c.failMask = 0
	c.busy = c.latency
	c.opDone = false
	return c.pecr&regs.PECR_ERRIE != 0 && c.irqc != nil
}

// RegFile exposes the NVM interface registers as a 32-bit bus.
type RegFile struct {
	c *Controller
}

func (r *RegFile) ReadAt(p []byte, off int64) (int, error) {
	if len(p) != 4 {
		return 0, fmt.Errorf("flashsim: invalid register read size %d", len(p))
	}
	c := r.c
	c.mu.Lock()
	defer c.mu.Unlock()

	var v uint32
	switch off {
	case regs.PECR:
		v = c.pecr
	case regs.SR:
		v = c.sr
		switch {
		case c.busy > 0:
			c.busy--
			v |= regs.SR_BSY
		case c.opDone:
			c.opDone = false
			c.sr |= regs.SR_EOP
			v = c.sr
		}
	case regs.ACR, regs.OPTR:
		// reset values are irrelevant to the driver
	default:
		// key registers read as zero
	}
	binary.LittleEndian.PutUint32(p, v)
	return 4, nil
}

func (r *RegFile) WriteAt(p []byte, off int64) (int, error) {
	if len(p) != 4 {
		return 0, fmt.Errorf("flashsim: invalid register write size %d", len(p))
	}
	v := binary.LittleEndian.Uint32(p)

	c := r.c
	c.mu.Lock()
	defer c.mu.Unlock()

	switch off {
	case regs.PEKEYR:
		switch {
		case c.denyUnlock:
			// keys silently ignored
		case v == regs.PEKEY1:
			c.pekey = 1
		case c.pekey == 1 && v == regs.PEKEY2:
			c.pecr &^= regs.PECR_PELOCK
			c.pekey = 0
		default:
			c.pekey = 0
		}

	case regs.PRGKEYR:
		switch {
		case c.denyUnlock || c.pecr&regs.PECR_PELOCK != 0:
			// PRGKEYR only opens once PELOCK is clear
		case v == regs.PRGKEY1:
			c.prgkey = 1
		case c.prgkey == 1 && v == regs.PRGKEY2:
			c.pecr &^= regs.PECR_PRGLOCK
			c.prgkey = 0
		default:
			c.prgkey = 0
		}

	case regs.PECR:
		if c.pecr&regs.PECR_PELOCK != 0 {
			// writes while locked are discarded by hardware
			break
		}
		if v&regs.PECR_PELOCK != 0 {
			// setting PELOCK re-arms PRGLOCK as well
			v |= regs.PECR_PRGLOCK
			c.hp.n = 0
		}
		c.pecr = v

	case regs.SR:
		// write 1 to clear: EOP and the error group
		c.sr &^= v & (regs.SR_EOP | regs.SR_ERR_MASK)
	}
	return 4, nil
}

// Bank exposes the flash bank. Offsets are relative to the bank base.
type Bank struct {
	c *Controller
}

func (b *Bank) ReadAt(p []byte, off int64) (int, error) {
	c := b.c
	c.mu.Lock()
	defer c.mu.Unlock()
	if off < 0 || off >= int64(len(c.flash)) {
		return 0, fmt.Errorf("flashsim: invalid flash read offset 0x%x", off)
	}
	n := copy(p, c.flash[off:])
	return n, nil
}

func (b *Bank) WriteAt(p []byte, off int64) (int, error) {
	if len(p) != regs.WORD_SIZE {
		return 0, fmt.Errorf("flashsim: invalid flash write size %d", len(p))
	}
	v := binary.LittleEndian.Uint32(p)

	c := b.c
	c.mu.Lock()
	if off < 0 || off+regs.WORD_SIZE > int64(len(c.flash)) {
		c.mu.Unlock()
		return 0, fmt.Errorf("flashsim: invalid flash write offset 0x%x", off)
	}

	if c.pecr&(regs.PECR_PELOCK|regs.PECR_PRGLOCK) != 0 {
		// locked: the store is silently discarded
		c.mu.Unlock()
		return len(p), nil
	}

	raise := false
	switch {
	case c.pecr&regs.PECR_ERASE != 0 && c.pecr&regs.PECR_PROG != 0:
		// page erase: the store is a trigger, the value is discarded
		if c.failMask != 0 {
			raise = c.fail()
			break
		}
		page := off &^ (regs.PAGE_SIZE - 1)
		for i := int64(0); i < regs.PAGE_SIZE; i++ {
			c.flash[page+i] = 0xFF
		}
		c.trigger()

	case c.pecr&regs.PECR_PROG != 0 && c.pecr&regs.PECR_FPRG != 0:
		// half-page burst: 16 word stores at one address
		if c.hp.n == 0 {
			c.hp.addr = off
		}
		c.hp.buf[c.hp.n] = v
		c.hp.n++
		if c.hp.n < regs.HPAGE_WORDS {
			break
		}
		c.hp.n = 0
		if c.failMask != 0 {
			raise = c.fail()
			break
		}
		for i, w := range c.hp.buf {
			c.merge(c.hp.addr+int64(i*regs.WORD_SIZE), w)
		}
		c.trigger()

	default:
		// single word program
		if c.failMask != 0 {
			raise = c.fail()
			break
		}
		c.merge(off, v)
		c.trigger()
	}

	irqc, line := c.irqc, c.line
	c.mu.Unlock()

	if raise {
		irqc.Raise(line)
	}
	return len(p), nil
}

// merge programs one word. A blank (erased) cell takes the value as
// is; a non-blank one ORs the value into the resident content, the
// corruption this part family performs when the target was not erased
// first. The caller holds c.mu.
func (c *Controller) merge(off int64, v uint32) {
	cur := binary.LittleEndian.Uint32(c.flash[off:])
	if cur != 0xFFFFFFFF {
		v |= cur
	}
	binary.LittleEndian.PutUint32(c.flash[off:], v)
}
