// Copyright 2026 The go-boot Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nvm

import (
	"fmt"
	"math/bits"

	"github.com/go-boot/stml0/internal/regs"
	"github.com/go-boot/stml0/irq"
)

// Init configures the controller the way the bootloader wants it:
// end-of-operation interrupt off, error interrupt on, fault trap
// registered at the interrupt controller. Must run once before any
// programming operation, so faults are caught instead of silently
// ignored.
func (dev *Device) Init() error {
	dev.regs.pekeyr.w(regs.PEKEY1)
	dev.regs.pekeyr.w(regs.PEKEY2)

	pecr := dev.regs.pecr.r()
	if dev.err != nil {
		return dev.err
	}
	if pecr&regs.PECR_PELOCK != 0 {
		return fmt.Errorf("nvm: could not unlock PECR (pecr=0x%08x): %w", pecr, ErrLocked)
	}

	pecr &^= regs.PECR_EOPIE
	pecr |= regs.PECR_ERRIE
	dev.regs.pecr.w(pecr)
	dev.regs.pecr.w(pecr | regs.PECR_PELOCK)

	line := irq.Line(regs.FLASH_IRQ)
	dev.cfg.irq.Handle(line, dev.ServeFault)
	dev.cfg.irq.SetPriority(line, regs.FLASH_IRQ_PRIO)
	dev.cfg.irq.Enable(line)

	return dev.err
}

// unlock runs both two-stage key sequences: PEKEYR to open the PECR
// register, then PRGKEYR to allow program/erase. The hardware gives no
// feedback on a rejected sequence, so the lock bits are read back and
// checked before proceeding.
func (dev *Device) unlock() error {
	dev.regs.pekeyr.w(regs.PEKEY1)
	dev.regs.pekeyr.w(regs.PEKEY2)

	dev.regs.prgkeyr.w(regs.PRGKEY1)
	dev.regs.prgkeyr.w(regs.PRGKEY2)

	pecr := dev.regs.pecr.r()
	if dev.err != nil {
		return dev.err
	}
	if pecr&(regs.PECR_PELOCK|regs.PECR_PRGLOCK) != 0 {
		return fmt.Errorf("nvm: key sequence rejected (pecr=0x%08x): %w", pecr, ErrLocked)
	}
	return nil
}

// lock clears the mode-select bits and sets PELOCK, re-arming write
// protection. Setting PELOCK re-arms PRGLOCK as well.
func (dev *Device) lock() {
	pecr := dev.regs.pecr.r()
	pecr &^= regs.PECR_PROG | regs.PECR_ERASE | regs.PECR_FPRG | regs.PECR_DATA
	dev.regs.pecr.w(pecr | regs.PECR_PELOCK)
}

// wait polls BSY until it clears, then EOP until it asserts, and
// clears EOP by writing it back. Each flag is given cfg.budget polls;
// the hardware contract itself is unbounded.
func (dev *Device) wait() error {
	for i := 0; ; i++ {
		sr := dev.regs.sr.r()
		if dev.err != nil {
			return dev.err
		}
		if sr&regs.SR_BSY == 0 {
			break
		}
		if i >= dev.cfg.budget {
			return fmt.Errorf("nvm: BSY stuck high after %d polls: %w", i, ErrTimeout)
		}
	}

	for i := 0; ; i++ {
		sr := dev.regs.sr.r()
		if dev.err != nil {
			return dev.err
		}
		if sr&regs.SR_EOP != 0 {
			break
		}
		if i >= dev.cfg.budget {
			return fmt.Errorf("nvm: EOP not asserted after %d polls: %w", i, ErrTimeout)
		}
	}

	dev.regs.sr.w(regs.SR_EOP)
	return dev.err
}

// ErasePage erases the page at the given page-aligned address. After
// a successful return every bit of the page reads as 1.
func (dev *Device) ErasePage(addr uint32) error {
	if addr%PageSize != 0 {
		return fmt.Errorf("nvm: page address 0x%08x: %w", addr, ErrAlign)
	}
	off, err := dev.bankOff(addr)
	if err != nil {
		return err
	}

	err = dev.unlock()
	if err != nil {
		return fmt.Errorf("nvm: could not unlock for page erase at 0x%08x: %w", addr, err)
	}

	pecr := dev.regs.pecr.r()
	dev.regs.pecr.w(pecr | regs.PECR_ERASE | regs.PECR_PROG)

	// the stored value is irrelevant: the store only triggers the erase
	dev.writeU32(dev.bank, off, 0)

	err = dev.wait()
	dev.lock()
	if err != nil {
		return fmt.Errorf("nvm: page erase at 0x%08x failed: %w", addr, err)
	}
	return dev.err
}

// ProgramWord writes one 32-bit word at the given word-aligned
// address. The target must have been erased: the flash cell ORs the
// stored value into the resident one and this part family has no
// not-zero check to refuse the write.
func (dev *Device) ProgramWord(addr, v uint32) error {
	if addr%WordSize != 0 {
		return fmt.Errorf("nvm: word address 0x%08x: %w", addr, ErrAlign)
	}
	off, err := dev.bankOff(addr)
	if err != nil {
		return err
	}

	if dev.cfg.swap {
		v = bits.ReverseBytes32(v)
	}

	err = dev.unlock()
	if err != nil {
		return fmt.Errorf("nvm: could not unlock for word program at 0x%08x: %w", addr, err)
	}

	dev.writeU32(dev.bank, off, v)

	err = dev.wait()
	dev.lock()
	if err != nil {
		return fmt.Errorf("nvm: word program at 0x%08x failed: %w", addr, err)
	}
	return dev.err
}

// ProgramHalfPage burst-programs 16 consecutive words at the given
// half-page-aligned address (low 6 address bits zero). The words come
// from the source buffer installed with SetSource, at slice offset
// 32*block + 16*half.
//
// The whole burst runs with all interrupts masked: a preempted burst
// corrupts the half-page and the hardware offers no rollback. On a
// real part the executing code must also not reside in the flash bank
// being programmed; flash fetches stall while the burst is in
// progress. That is a placement requirement on the compiled routine,
// not something this driver can enforce.
func (dev *Device) ProgramHalfPage(addr uint32, block, half int) error {
	if addr&(HalfPageSize-1) != 0 {
		return fmt.Errorf("nvm: half-page address 0x%08x: %w", addr, ErrAlign)
	}
	off, err := dev.bankOff(addr)
	if err != nil {
		return err
	}

	if block < 0 || half < 0 {
		return fmt.Errorf("nvm: negative source index (block=%d, half=%d): %w", block, half, ErrRange)
	}
	src := 2*HalfPageWords*block + HalfPageWords*half
	if src+HalfPageWords > len(dev.src) {
		return fmt.Errorf("nvm: source slice [%d:%d) exceeds buffer of %d words: %w",
			src, src+HalfPageWords, len(dev.src), ErrRange)
	}

	err = dev.unlock()
	if err != nil {
		return fmt.Errorf("nvm: could not unlock for half-page program at 0x%08x: %w", addr, err)
	}

	pecr := dev.regs.pecr.r()
	dev.regs.pecr.w(pecr | regs.PECR_PROG | regs.PECR_FPRG)

	dev.cfg.irq.MaskAll()
	defer dev.cfg.irq.UnmaskAll()

	// the hardware consumes a fixed-size burst at one address:
	// only the source index advances
	for i := 0; i < HalfPageWords; i++ {
		dev.writeU32(dev.bank, off, dev.src[src+i])
	}

	// EOP asserts only once all 16 words have landed
	err = dev.wait()
	dev.lock()
	if err != nil {
		return fmt.Errorf("nvm: half-page program at 0x%08x failed: %w", addr, err)
	}
	return dev.err
}

// ReadWord reads one word back from the flash bank.
func (dev *Device) ReadWord(addr uint32) (uint32, error) {
	if addr%WordSize != 0 {
		return 0, fmt.Errorf("nvm: word address 0x%08x: %w", addr, ErrAlign)
	}
	off, err := dev.bankOff(addr)
	if err != nil {
		return 0, err
	}
	v := dev.readU32(dev.bank, off)
	return v, dev.err
}

// ReadHalfPage reads the 16 words at the given half-page-aligned
// address.
func (dev *Device) ReadHalfPage(addr uint32) ([]uint32, error) {
	if addr&(HalfPageSize-1) != 0 {
		return nil, fmt.Errorf("nvm: half-page address 0x%08x: %w", addr, ErrAlign)
	}
	words := make([]uint32, HalfPageWords)
	for i := range words {
		v, err := dev.ReadWord(addr + uint32(i*WordSize))
		if err != nil {
			return nil, err
		}
		words[i] = v
	}
	return words, nil
}
