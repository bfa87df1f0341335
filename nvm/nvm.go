// Copyright 2026 The go-boot Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package nvm implements the STM32L0x3 NVM programming protocol used
// by the bootloader: key-based unlock/lock of the controller, page
// erase, single-word program and atomic half-page burst program, plus
// the terminal trap for uncorrectable NVM faults.
//
// All operations are synchronous and busy-poll the controller status
// flags. The driver assumes it is the only owner of the controller:
// callers must never invoke two operations concurrently.
package nvm // import "github.com/go-boot/stml0/nvm"

import (
	"errors"

	"github.com/go-boot/stml0/internal/regs"
)

// Flash geometry of the target part family.
const (
	WordSize      = regs.WORD_SIZE   // programmable unit, bytes
	PageSize      = regs.PAGE_SIZE   // erasable unit, bytes
	HalfPageWords = regs.HPAGE_WORDS // words per burst program
	HalfPageSize  = regs.HPAGE_SIZE  // burst unit, bytes

	// FlashBase is the address the flash bank is mapped at on the
	// target.
	FlashBase = regs.FLASH_BANK_BASE
)

var (
	// ErrLocked reports a lock bit still set after the two-stage key
	// sequence: the controller rejected the keys and every following
	// store would be silently discarded by hardware.
	ErrLocked = errors.New("nvm: controller locked")

	// ErrAlign reports an address that violates the alignment the
	// hardware requires for the requested operation.
	ErrAlign = errors.New("nvm: misaligned address")

	// ErrRange reports an address outside the flash bank or a source
	// slice outside the source buffer.
	ErrRange = errors.New("nvm: out of range")

	// ErrTimeout reports a BSY or EOP flag that did not settle within
	// the configured poll budget.
	ErrTimeout = errors.New("nvm: flag poll timeout")
)
