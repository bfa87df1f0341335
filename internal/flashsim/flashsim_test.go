// Copyright 2026 The go-boot Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package flashsim

import (
	"encoding/binary"
	"testing"

	"github.com/go-boot/stml0/internal/regs"
)

func (c *Controller) regWrite(t *testing.T, off int64, v uint32) {
	t.Helper()
	var p [4]byte
	binary.LittleEndian.PutUint32(p[:], v)
	if _, err := c.Regs().WriteAt(p[:], off); err != nil {
		t.Fatalf("could not write register 0x%x: %+v", off, err)
	}
}

func (c *Controller) regRead(t *testing.T, off int64) uint32 {
	t.Helper()
	var p [4]byte
	if _, err := c.Regs().ReadAt(p[:], off); err != nil {
		t.Fatalf("could not read register 0x%x: %+v", off, err)
	}
	return binary.LittleEndian.Uint32(p[:])
}

func (c *Controller) unlock(t *testing.T) {
	t.Helper()
	c.regWrite(t, regs.PEKEYR, regs.PEKEY1)
	c.regWrite(t, regs.PEKEYR, regs.PEKEY2)
	c.regWrite(t, regs.PRGKEYR, regs.PRGKEY1)
	c.regWrite(t, regs.PRGKEYR, regs.PRGKEY2)
}

func (c *Controller) settle(t *testing.T) {
	t.Helper()
	for i := 0; i < 100; i++ {
		sr := c.regRead(t, regs.SR)
		if sr&regs.SR_BSY != 0 {
			continue
		}
		if sr&regs.SR_EOP != 0 {
			c.regWrite(t, regs.SR, regs.SR_EOP)
			return
		}
	}
	t.Fatalf("operation never completed (sr=0x%08x)", c.SR())
}

func (c *Controller) store(t *testing.T, off int64, v uint32) {
	t.Helper()
	var p [4]byte
	binary.LittleEndian.PutUint32(p[:], v)
	if _, err := c.Bank().WriteAt(p[:], off); err != nil {
		t.Fatalf("could not store at 0x%x: %+v", off, err)
	}
}

func (c *Controller) load(t *testing.T, off int64) uint32 {
	t.Helper()
	var p [4]byte
	if _, err := c.Bank().ReadAt(p[:], off); err != nil {
		t.Fatalf("could not load at 0x%x: %+v", off, err)
	}
	return binary.LittleEndian.Uint32(p[:])
}

func TestUnlockSequence(t *testing.T) {
	for _, tc := range []struct {
		name   string
		keys   func(c *Controller, t *testing.T)
		locked bool
	}{
		{
			name: "good-sequence",
			keys: func(c *Controller, t *testing.T) {
				c.regWrite(t, regs.PEKEYR, regs.PEKEY1)
				c.regWrite(t, regs.PEKEYR, regs.PEKEY2)
			},
			locked: false,
		},
		{
			name: "wrong-order",
			keys: func(c *Controller, t *testing.T) {
				c.regWrite(t, regs.PEKEYR, regs.PEKEY2)
				c.regWrite(t, regs.PEKEYR, regs.PEKEY1)
			},
			locked: true,
		},
		{
			name: "wrong-key",
			keys: func(c *Controller, t *testing.T) {
				c.regWrite(t, regs.PEKEYR, regs.PEKEY1)
				c.regWrite(t, regs.PEKEYR, 0xCAFEFADE)
			},
			locked: true,
		},
		{
			name: "interleaved",
			keys: func(c *Controller, t *testing.T) {
				c.regWrite(t, regs.PEKEYR, regs.PEKEY1)
				c.regWrite(t, regs.PEKEYR, 0)
				c.regWrite(t, regs.PEKEYR, regs.PEKEY2)
			},
			locked: true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := New()
			tc.keys(c, t)
			if got, want := c.Locked(), tc.locked; got != want {
				t.Fatalf("invalid lock state: got=%v, want=%v", got, want)
			}
		})
	}
}

func TestPRGKeyNeedsPELOCKClear(t *testing.T) {
	c := New()

	// PRGKEYR sequence with PELOCK still set must not open PRGLOCK
	c.regWrite(t, regs.PRGKEYR, regs.PRGKEY1)
	c.regWrite(t, regs.PRGKEYR, regs.PRGKEY2)
	if !c.ProgramLocked() {
		t.Fatalf("PRGLOCK cleared while PELOCK set")
	}

	c.unlock(t)
	if c.Locked() || c.ProgramLocked() {
		t.Fatalf("controller still locked after full key sequence (pecr=0x%08x)", c.PECR())
	}
}

func TestLockedStoreIsDiscarded(t *testing.T) {
	c := New()

	c.store(t, 0x100, 0x12345678)
	if v := c.load(t, 0x100); v != 0xFFFFFFFF {
		t.Fatalf("locked store reached the flash: 0x%08x", v)
	}
	if sr := c.SR(); sr&regs.SR_ERR_MASK != 0 {
		t.Fatalf("locked store raised an error: sr=0x%08x", sr)
	}
}

func TestEraseFillsOnes(t *testing.T) {
	c := New()
	c.unlock(t)

	// program a word first
	c.store(t, 0x080, 0x00C0FFEE)
	c.settle(t)
	if v := c.load(t, 0x080); v != 0x00C0FFEE {
		t.Fatalf("invalid programmed word: 0x%08x", v)
	}

	pecr := c.PECR()
	c.regWrite(t, regs.PECR, pecr|regs.PECR_ERASE|regs.PECR_PROG)
	c.store(t, 0x080, 0) // trigger
	c.settle(t)

	for off := int64(0x080); off < 0x100; off += 4 {
		if v := c.load(t, off); v != 0xFFFFFFFF {
			t.Fatalf("word at 0x%x not blank: 0x%08x", off, v)
		}
	}
}

func TestHalfPageCommit(t *testing.T) {
	c := New()
	c.unlock(t)

	pecr := c.PECR()
	c.regWrite(t, regs.PECR, pecr|regs.PECR_PROG|regs.PECR_FPRG)

	for i := uint32(0); i < regs.HPAGE_WORDS; i++ {
		// hardware takes the whole burst at one address
		c.store(t, 0x040, 0xB0000000+i)
	}
	c.settle(t)

	for i := int64(0); i < regs.HPAGE_WORDS; i++ {
		if v, want := c.load(t, 0x040+4*i), 0xB0000000+uint32(i); v != want {
			t.Fatalf("invalid word %d: got=0x%08x, want=0x%08x", i, v, want)
		}
	}
}

func TestRelockClearsPRGLOCK(t *testing.T) {
	c := New()
	c.unlock(t)

	c.regWrite(t, regs.PECR, c.PECR()|regs.PECR_PELOCK)
	if !c.Locked() || !c.ProgramLocked() {
		t.Fatalf("relock did not re-arm both locks (pecr=0x%08x)", c.PECR())
	}
}

func TestBusyTiming(t *testing.T) {
	c := New(WithLatency(5))
	c.unlock(t)

	c.store(t, 0x000, 0x1)
	for i := 0; i < 5; i++ {
		if sr := c.regRead(t, regs.SR); sr&regs.SR_BSY == 0 {
			t.Fatalf("BSY clear after %d polls, want 5", i)
		}
	}
	sr := c.regRead(t, regs.SR)
	if sr&regs.SR_BSY != 0 {
		t.Fatalf("BSY still set after latency drained (sr=0x%08x)", sr)
	}
	if sr&regs.SR_EOP == 0 {
		t.Fatalf("EOP not asserted after completion (sr=0x%08x)", sr)
	}

	c.regWrite(t, regs.SR, regs.SR_EOP)
	if sr := c.SR(); sr&regs.SR_EOP != 0 {
		t.Fatalf("EOP not cleared by write-1 (sr=0x%08x)", sr)
	}
}
