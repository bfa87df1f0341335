// Copyright 2026 The go-boot Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nvm

import (
	"github.com/go-boot/stml0/internal/regs"
)

// ServeFault is the terminal handler for the NVM error interrupt
// (protection violation, illegal operation). It clears the whole
// error-flag group, emits a diagnostic and halts forever: a corrupted
// in-progress bootloader write must never be allowed to continue into
// partially-written, possibly-executable code.
//
// ServeFault does not return.
func (dev *Device) ServeFault() {
	sr := dev.regs.sr.r()
	dev.regs.sr.w(regs.SR_ERR_MASK)

	switch {
	case dev.cfg.report != nil:
		dev.cfg.report(sr)
	default:
		dev.msg.Printf("memory error (sr=0x%08x), halting", sr)
	}

	dev.cfg.halt()
}
