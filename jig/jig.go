// Copyright 2026 The go-boot Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package jig drives the programming-jig power and reset lines of the
// target board, through a PCA9536-style I2C GPIO expander on the
// station SMBus.
package jig // import "github.com/go-boot/stml0/jig"

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-daq/smbus"
)

// PCA9536 register map.
const (
	regInput  = 0x00
	regOutput = 0x01
	regConfig = 0x03
)

// Expander pin assignment on the jig.
const (
	pinPower = 1 << 0 // target power rail, active high
	pinReset = 1 << 1 // target NRST, active low
)

type conn interface {
	ReadReg(addr, reg uint8) (uint8, error)
	WriteReg(addr, reg, v uint8) error
	Close() error
}

var (
	smbusOpen = smbusOpenImpl
)

func smbusOpenImpl(bus int, addr uint8) (conn, error) {
	c, err := smbus.Open(bus, addr)
	return c, err
}

// Jig controls one target seat on the programming jig.
type Jig struct {
	msg  *log.Logger
	conn conn
	addr uint8
}

// Open connects to the GPIO expander at the given address on the given
// SMBus and configures its pins: target unpowered, reset released.
func Open(bus int, addr uint8) (*Jig, error) {
	c, err := smbusOpen(bus, addr)
	if err != nil {
		return nil, fmt.Errorf("jig: could not open smbus %d (addr=0x%x): %w", bus, addr, err)
	}

	j := &Jig{
		msg:  log.New(os.Stdout, "jig: ", 0),
		conn: c,
		addr: addr,
	}
	err = j.init()
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("jig: could not initialize expander (addr=0x%x): %w", addr, err)
	}
	return j, nil
}

func (j *Jig) init() error {
	// power off, reset deasserted, before switching pins to output
	err := j.conn.WriteReg(j.addr, regOutput, pinReset)
	if err != nil {
		return fmt.Errorf("could not preset outputs: %w", err)
	}
	err = j.conn.WriteReg(j.addr, regConfig, ^uint8(pinPower|pinReset))
	if err != nil {
		return fmt.Errorf("could not configure pins: %w", err)
	}
	return nil
}

// PowerOn switches the target power rail on.
func (j *Jig) PowerOn() error {
	return j.set(pinPower, true)
}

// PowerOff switches the target power rail off.
func (j *Jig) PowerOff() error {
	return j.set(pinPower, false)
}

// Reset pulses the target NRST line low for the given duration.
func (j *Jig) Reset(hold time.Duration) error {
	err := j.set(pinReset, false)
	if err != nil {
		return err
	}
	time.Sleep(hold)
	return j.set(pinReset, true)
}

func (j *Jig) set(pin uint8, hi bool) error {
	v, err := j.conn.ReadReg(j.addr, regOutput)
	if err != nil {
		return fmt.Errorf("jig: could not read outputs: %w", err)
	}
	switch {
	case hi:
		v |= pin
	default:
		v &^= pin
	}
	err = j.conn.WriteReg(j.addr, regOutput, v)
	if err != nil {
		return fmt.Errorf("jig: could not write outputs: %w", err)
	}
	return nil
}

// Close powers the target off and releases the bus.
func (j *Jig) Close() error {
	err := j.PowerOff()
	if err != nil {
		_ = j.conn.Close()
		return err
	}
	return j.conn.Close()
}
