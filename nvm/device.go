// Copyright 2026 The go-boot Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nvm

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/go-boot/stml0/internal/mmap"
	"github.com/go-boot/stml0/internal/regs"
)

// Device drives one NVM controller. It exclusively owns the
// memory-mapped controller state: no other component may touch the
// register block or store into the flash bank.
type Device struct {
	msg *log.Logger
	buf []byte // scratch for register I/O

	mem struct {
		fd   *os.File
		regs *mmap.Window
		bank *mmap.Window
	}

	ctrl rwer // NVM interface register block
	bank rwer // flash bank, offsets relative to FlashBase

	regs struct {
		pecr    reg32
		pekeyr  reg32
		prgkeyr reg32
		sr      reg32
	}

	src []uint32 // caller-owned source buffer for burst programs

	cfg config
	err error
}

// Open maps the NVM controller register block and the flash bank from
// the given memory device (usually /dev/mem) and returns a driver for
// them.
func Open(devmem string, opts ...Option) (*Device, error) {
	f, err := os.OpenFile(devmem, os.O_RDWR|os.O_SYNC, 0666)
	if err != nil {
		return nil, fmt.Errorf("nvm: could not open %q: %w", devmem, err)
	}
	defer func() {
		if err != nil {
			_ = f.Close()
		}
	}()

	ctrl, err := mmap.Map(f, regs.FLASH_R_BASE, regs.FLASH_R_SPAN)
	if err != nil {
		return nil, fmt.Errorf("nvm: could not map NVM register block: %w", err)
	}
	defer func() {
		if err != nil {
			_ = ctrl.Close()
		}
	}()

	bank, err := mmap.Map(f, regs.FLASH_BANK_BASE, regs.FLASH_BANK_SPAN)
	if err != nil {
		return nil, fmt.Errorf("nvm: could not map flash bank: %w", err)
	}

	dev := New(ctrl, bank, opts...)
	dev.mem.fd = f
	dev.mem.regs = ctrl
	dev.mem.bank = bank
	return dev, nil
}

// New returns a driver for an NVM controller reachable through the
// given register-block and flash-bank buses. Flash-bank offsets are
// relative to FlashBase.
func New(ctrl, bank rwer, opts ...Option) *Device {
	cfg := newConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.msg == nil {
		cfg.msg = log.New(os.Stdout, "nvm: ", 0)
	}

	dev := &Device{
		msg:  cfg.msg,
		buf:  make([]byte, 4),
		ctrl: ctrl,
		bank: bank,
		cfg:  cfg,
	}
	dev.regs.pecr = newReg32(dev, dev.ctrl, regs.PECR)
	dev.regs.pekeyr = newReg32(dev, dev.ctrl, regs.PEKEYR)
	dev.regs.prgkeyr = newReg32(dev, dev.ctrl, regs.PRGKEYR)
	dev.regs.sr = newReg32(dev, dev.ctrl, regs.SR)
	return dev
}

// SetSource hands the driver the caller-owned buffer that burst
// programs read from. The driver never mutates it.
func (dev *Device) SetSource(src []uint32) {
	dev.src = src
}

// Err returns the first register-bus error encountered by the device.
func (dev *Device) Err() error {
	return dev.err
}

// Close unmaps the controller windows, relocking the controller first.
func (dev *Device) Close() error {
	dev.lock()

	if dev.mem.regs != nil {
		if err := dev.mem.regs.Close(); err != nil {
			return fmt.Errorf("nvm: could not unmap register block: %w", err)
		}
	}
	if dev.mem.bank != nil {
		if err := dev.mem.bank.Close(); err != nil {
			return fmt.Errorf("nvm: could not unmap flash bank: %w", err)
		}
	}
	if dev.mem.fd != nil {
		if err := dev.mem.fd.Close(); err != nil {
			return fmt.Errorf("nvm: could not close memory device: %w", err)
		}
	}
	return dev.err
}

func (dev *Device) readU32(r io.ReaderAt, off int64) uint32 {
	if dev.err != nil {
		return 0
	}
	_, dev.err = r.ReadAt(dev.buf[:4], off)
	if dev.err != nil {
		dev.err = fmt.Errorf("nvm: could not read register 0x%x: %w", off, dev.err)
		return 0
	}
	return binary.LittleEndian.Uint32(dev.buf[:4])
}

func (dev *Device) writeU32(w io.WriterAt, off int64, v uint32) {
	if dev.err != nil {
		return
	}
	binary.LittleEndian.PutUint32(dev.buf[:4], v)
	_, dev.err = w.WriteAt(dev.buf[:4], off)
	if dev.err != nil {
		dev.err = fmt.Errorf("nvm: could not write register 0x%x: %w", off, dev.err)
		return
	}
}

// bankOff converts a target flash address into an offset in the bank
// window.
func (dev *Device) bankOff(addr uint32) (int64, error) {
	if addr < FlashBase {
		return 0, fmt.Errorf("nvm: address 0x%08x below flash bank: %w", addr, ErrRange)
	}
	return int64(addr - FlashBase), nil
}
