// Copyright 2026 The go-boot Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command nvm-dump prints a hex dump of a range of STM32L0 flash.
package main // import "github.com/go-boot/stml0/cmd/nvm-dump"

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"github.com/go-boot/stml0/internal/flashsim"
	"github.com/go-boot/stml0/internal/regs"
	"github.com/go-boot/stml0/irq"
	"github.com/go-boot/stml0/nvm"
)

func main() {
	var (
		sim    = flag.Bool("sim", false, "dump a simulated NVM controller")
		devmem = flag.String("dev", "/dev/mem", "memory device to map the controller from")
		addr   = flag.String("addr", "0x08000000", "flash address to dump from")
		size   = flag.Int("size", 256, "number of bytes to dump")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: nvm-dump [OPTIONS]

options:
`)
		flag.PrintDefaults()
	}

	flag.Parse()

	log.SetPrefix("nvm-dump: ")
	log.SetFlags(0)

	target, err := strconv.ParseUint(*addr, 0, 32)
	if err != nil {
		log.Fatalf("could not parse flash address %q: %+v", *addr, err)
	}

	err = run(os.Stdout, *sim, *devmem, uint32(target), *size)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(w io.Writer, sim bool, devmem string, addr uint32, size int) error {
	if size <= 0 {
		return fmt.Errorf("invalid dump size %d", size)
	}

	dev, err := openDevice(sim, devmem)
	if err != nil {
		return err
	}
	defer dev.Close()

	nwords := (size + nvm.WordSize - 1) / nvm.WordSize
	for i := 0; i < nwords; i++ {
		cur := addr + uint32(i)*nvm.WordSize
		v, err := dev.ReadWord(cur)
		if err != nil {
			return fmt.Errorf("could not read word at 0x%08x: %w", cur, err)
		}
		switch {
		case i%4 == 0:
			fmt.Fprintf(w, "0x%08x: %08x", cur, v)
		default:
			fmt.Fprintf(w, " %08x", v)
		}
		if i%4 == 3 || i == nwords-1 {
			fmt.Fprintf(w, "\n")
		}
	}
	return nil
}

func openDevice(sim bool, devmem string) (*nvm.Device, error) {
	if !sim {
		dev, err := nvm.Open(devmem)
		if err != nil {
			return nil, fmt.Errorf("could not open NVM device on %q: %w", devmem, err)
		}
		return dev, nil
	}

	ctl := irq.NewSoft()
	fsm := flashsim.New()
	fsm.AttachIRQ(ctl, irq.Line(regs.FLASH_IRQ))
	return nvm.New(fsm.Regs(), fsm.Bank(), nvm.WithIRQ(ctl)), nil
}
