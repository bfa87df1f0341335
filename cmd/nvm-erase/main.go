// Copyright 2026 The go-boot Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command nvm-erase erases a range of flash pages on an STM32L0
// target.
package main // import "github.com/go-boot/stml0/cmd/nvm-erase"

import (
	"flag"
	"fmt"
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
		sim    = flag.Bool("sim", false, "erase a simulated NVM controller")
		devmem = flag.String("dev", "/dev/mem", "memory device to map the controller from")
		addr   = flag.String("addr", "0x08004000", "flash address of the first page to erase")
		npages = flag.Int("n", 1, "number of pages to erase")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: nvm-erase [OPTIONS]

options:
`)
		flag.PrintDefaults()
	}

	flag.Parse()

	log.SetPrefix("nvm-erase: ")
	log.SetFlags(0)

	target, err := strconv.ParseUint(*addr, 0, 32)
	if err != nil {
		log.Fatalf("could not parse flash address %q: %+v", *addr, err)
	}

	err = run(*sim, *devmem, uint32(target), *npages)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(sim bool, devmem string, addr uint32, npages int) error {
	if npages < 1 {
		return fmt.Errorf("invalid page count %d", npages)
	}

	dev, err := openDevice(sim, devmem)
	if err != nil {
		return err
	}
	defer dev.Close()

	err = dev.Init()
	if err != nil {
		return fmt.Errorf("could not initialize NVM controller: %w", err)
	}

	for i := 0; i < npages; i++ {
		page := addr + uint32(i)*nvm.PageSize
		err = dev.ErasePage(page)
		if err != nil {
			return fmt.Errorf("could not erase page 0x%08x: %w", page, err)
		}
	}

	log.Printf("erased %d page(s) at 0x%08x... [done]", npages, addr)
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
