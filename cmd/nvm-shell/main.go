// Copyright 2026 The go-boot Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command nvm-shell is an interactive console to poke at the STM32L0
// NVM controller: erase pages, program words and half-pages, inspect
// flash contents.
package main // import "github.com/go-boot/stml0/cmd/nvm-shell"

import (
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/go-boot/stml0/internal/flashsim"
	"github.com/go-boot/stml0/internal/regs"
	"github.com/go-boot/stml0/irq"
	"github.com/go-boot/stml0/nvm"
)

func main() {
	var (
		sim    = flag.Bool("sim", false, "drive a simulated NVM controller")
		devmem = flag.String("dev", "/dev/mem", "memory device to map the controller from")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: nvm-shell [OPTIONS]

options:
`)
		flag.PrintDefaults()
	}

	flag.Parse()

	log.SetPrefix("nvm-shell: ")
	log.SetFlags(0)

	err := run(*sim, *devmem)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(sim bool, devmem string) error {
	dev, err := openDevice(sim, devmem)
	if err != nil {
		return err
	}
	defer dev.Close()

	err = dev.Init()
	if err != nil {
		return fmt.Errorf("could not initialize NVM controller: %w", err)
	}

	term := liner.NewLiner()
	defer term.Close()
	term.SetCtrlCAborts(true)

	sh := &shell{dev: dev}
	for {
		o, err := term.Prompt("nvm> ")
		if err != nil {
			if err == io.EOF || err == liner.ErrPromptAborted {
				fmt.Fprintf(os.Stdout, "\n")
				return nil
			}
			return fmt.Errorf("could not read prompt line: %w", err)
		}
		if strings.TrimSpace(o) == "" {
			continue
		}
		term.AppendHistory(o)

		quit, err := sh.eval(os.Stdout, o)
		if err != nil {
			log.Printf("%+v", err)
		}
		if quit {
			return nil
		}
	}
}

type shell struct {
	dev *nvm.Device
}

func (sh *shell) eval(w io.Writer, line string) (quit bool, err error) {
	toks := strings.Fields(line)
	cmd, args := toks[0], toks[1:]

	switch cmd {
	case "quit", "exit":
		return true, nil
	case "help":
		fmt.Fprintf(w, `commands:
  erase ADDR             erase the page at ADDR
  pw    ADDR VALUE       program the word VALUE at ADDR
  load  FILE             stage FILE as the half-page source buffer
  php   ADDR BLOCK HALF  program one staged half-page at ADDR
  rd    ADDR             read the word at ADDR
  dump  ADDR N           dump N words from ADDR
  quit                   exit the shell
`)
		return false, nil
	case "erase":
		return false, sh.erase(args)
	case "pw":
		return false, sh.programWord(args)
	case "load":
		return false, sh.load(args)
	case "php":
		return false, sh.programHalfPage(args)
	case "rd":
		return false, sh.read(w, args)
	case "dump":
		return false, sh.dump(w, args)
	}
	return false, fmt.Errorf("unknown command %q (try 'help')", cmd)
}

func (sh *shell) erase(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: erase ADDR")
	}
	addr, err := parseU32(args[0])
	if err != nil {
		return err
	}
	return sh.dev.ErasePage(addr)
}

func (sh *shell) programWord(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: pw ADDR VALUE")
	}
	addr, err := parseU32(args[0])
	if err != nil {
		return err
	}
	v, err := parseU32(args[1])
	if err != nil {
		return err
	}
	return sh.dev.ProgramWord(addr, v)
}

func (sh *shell) load(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: load FILE")
	}
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("could not read %q: %w", args[0], err)
	}
	if len(raw)%nvm.WordSize != 0 {
		return fmt.Errorf("size of %q (%d bytes) not a multiple of %d", args[0], len(raw), nvm.WordSize)
	}
	src := make([]uint32, len(raw)/nvm.WordSize)
	for i := range src {
		src[i] = binary.LittleEndian.Uint32(raw[4*i:])
	}
	sh.dev.SetSource(src)
	return nil
}

func (sh *shell) programHalfPage(args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: php ADDR BLOCK HALF")
	}
	addr, err := parseU32(args[0])
	if err != nil {
		return err
	}
	block, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("could not parse block %q: %w", args[1], err)
	}
	half, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("could not parse half %q: %w", args[2], err)
	}
	return sh.dev.ProgramHalfPage(addr, block, half)
}

func (sh *shell) read(w io.Writer, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: rd ADDR")
	}
	addr, err := parseU32(args[0])
	if err != nil {
		return err
	}
	v, err := sh.dev.ReadWord(addr)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "0x%08x: %08x\n", addr, v)
	return nil
}

func (sh *shell) dump(w io.Writer, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: dump ADDR N")
	}
	addr, err := parseU32(args[0])
	if err != nil {
		return err
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("could not parse word count %q: %w", args[1], err)
	}
	for i := 0; i < n; i++ {
		cur := addr + uint32(i)*nvm.WordSize
		v, err := sh.dev.ReadWord(cur)
		if err != nil {
			return err
		}
		switch {
		case i%4 == 0:
			fmt.Fprintf(w, "0x%08x: %08x", cur, v)
		default:
			fmt.Fprintf(w, " %08x", v)
		}
		if i%4 == 3 || i == n-1 {
			fmt.Fprintf(w, "\n")
		}
	}
	return nil
}

func parseU32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("could not parse address %q: %w", s, err)
	}
	return uint32(v), nil
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
