// Copyright 2026 The go-boot Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package regs holds the register map of the STM32L0x3 NVM (FLASH)
// interface, as described in RM0367 §3.7.
package regs // import "github.com/go-boot/stml0/internal/regs"

// Memory map of the NVM interface register block and the flash bank.
const (
	FLASH_R_BASE = 0x40022000 // base of the NVM interface registers
	FLASH_R_SPAN = 0x20       // size of the NVM interface register block

	FLASH_BANK_BASE = 0x08000000 // base of the flash bank
	FLASH_BANK_SPAN = 0x00010000 // 64 kB (STM32L053R8)
)

// Register offsets within the NVM interface block.
const (
	ACR     = 0x00 // access control register
	PECR    = 0x04 // program/erase control register
	PDKEYR  = 0x08 // power-down key register
	PEKEYR  = 0x0C // PECR unlock key register
	PRGKEYR = 0x10 // program/erase key register
	OPTKEYR = 0x14 // option-bytes unlock key register
	SR      = 0x18 // status register
	OPTR    = 0x1C // option-bytes register
)

// PECR bits.
const (
	PECR_PELOCK  = 1 << 0  // PECR and flash write protection lock
	PECR_PRGLOCK = 1 << 1  // program/erase protection lock
	PECR_OPTLOCK = 1 << 2  // option-bytes protection lock
	PECR_PROG    = 1 << 3  // flash selected for program/erase
	PECR_DATA    = 1 << 4  // data EEPROM selected
	PECR_FIX     = 1 << 8  // force fixed-time programming
	PECR_ERASE   = 1 << 9  // erase mode
	PECR_FPRG    = 1 << 10 // half-page/fast programming mode
	PECR_EOPIE   = 1 << 16 // end-of-programming interrupt enable
	PECR_ERRIE   = 1 << 17 // error interrupt enable
)

// SR bits.
const (
	SR_BSY    = 1 << 0 // write/erase in progress
	SR_EOP    = 1 << 1 // end of operation, cleared by writing 1
	SR_ENDHV  = 1 << 2 // high-voltage phase done
	SR_READY  = 1 << 3 // flash ready for read/write after power-down
	SR_WRPERR = 1 << 8 // write-protection error

	// SR_ERR_MASK selects the whole error-flag group:
	// WRPERR, PGAERR, SIZERR, OPTVERR, RDERR, NOTZEROERR, FWWERR.
	SR_ERR_MASK = 0x32F << 8
)

// Two-stage unlock key sequences. Writing the pair in order to the
// matching key register clears the corresponding lock bit in PECR;
// any other sequence leaves the controller locked.
const (
	PEKEY1 = 0x89ABCDEF
	PEKEY2 = 0x02030405

	PRGKEY1 = 0x8C9DAEBF
	PRGKEY2 = 0x13141516
)

// Flash geometry (category 3/5 L0 parts).
const (
	WORD_SIZE   = 4   // programmable unit, bytes
	PAGE_SIZE   = 128 // erasable unit: 8 rows of 4 words, bytes
	HPAGE_WORDS = 16  // words per half-page burst
	HPAGE_SIZE  = 64  // half-page, bytes; addresses align on 1<<6
)

// FLASH_IRQ is the position of the NVM interface interrupt in the
// vector table; FLASH_IRQ_PRIO the priority the bootloader runs it at.
const (
	FLASH_IRQ      = 3
	FLASH_IRQ_PRIO = 1
)
