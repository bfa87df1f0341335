// Copyright 2026 The go-boot Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command nvm-flash programs a firmware image into the on-chip flash
// of an STM32L0 target, either through the memory-mapped NVM
// controller or against a simulated one.
package main // import "github.com/go-boot/stml0/cmd/nvm-flash"

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	mail "gopkg.in/gomail.v2"

	"github.com/go-boot/stml0/internal/flashsim"
	"github.com/go-boot/stml0/internal/regs"
	"github.com/go-boot/stml0/irq"
	"github.com/go-boot/stml0/jig"
	"github.com/go-boot/stml0/loader"
	"github.com/go-boot/stml0/nvm"
	"github.com/go-boot/stml0/proddb"
)

func main() {
	var (
		sim    = flag.Bool("sim", false, "program a simulated NVM controller")
		devmem = flag.String("dev", "/dev/mem", "memory device to map the controller from")
		addr   = flag.String("addr", "0x08004000", "flash address to program the image at")
		swap   = flag.Bool("swap", false, "invert byte order of programmed words")
		verify = flag.Bool("verify", true, "read flash back and compare after programming")

		serial = flag.String("serial", "", "device serial number for the production journal")
		dbname = flag.String("db", "", "production database to journal the session to")
		jigCfg = flag.String("jig", "", "programming jig expander as bus:addr (e.g. 1:0x41)")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: nvm-flash [OPTIONS] image.bin

options:
`)
		flag.PrintDefaults()
	}

	flag.Parse()

	log.SetPrefix("nvm-flash: ")
	log.SetFlags(0)

	if flag.NArg() != 1 {
		flag.Usage()
		log.Fatalf("missing input firmware image")
	}

	target, err := strconv.ParseUint(*addr, 0, 32)
	if err != nil {
		log.Fatalf("could not parse flash address %q: %+v", *addr, err)
	}

	err = run(config{
		sim:    *sim,
		devmem: *devmem,
		addr:   uint32(target),
		swap:   *swap,
		verify: *verify,
		serial: *serial,
		dbname: *dbname,
		jig:    *jigCfg,
		image:  flag.Arg(0),
	})
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

type config struct {
	sim    bool
	devmem string
	addr   uint32
	swap   bool
	verify bool
	serial string
	dbname string
	jig    string
	image  string
}

func run(cfg config) error {
	img, err := os.ReadFile(cfg.image)
	if err != nil {
		return fmt.Errorf("could not read image %q: %w", cfg.image, err)
	}
	sum := fmt.Sprintf("%x", sha256.Sum256(img))
	log.Printf("image %q: %d bytes, sha256=%s", cfg.image, len(img), sum)

	if cfg.jig != "" {
		j, err := openJig(cfg.jig)
		if err != nil {
			return err
		}
		defer j.Close()

		err = j.PowerOn()
		if err != nil {
			return fmt.Errorf("could not power target on: %w", err)
		}
		err = j.Reset(10 * time.Millisecond)
		if err != nil {
			return fmt.Errorf("could not reset target: %w", err)
		}
	}

	dev, err := openDevice(cfg)
	if err != nil {
		return err
	}
	defer dev.Close()

	err = dev.Init()
	if err != nil {
		return fmt.Errorf("could not initialize NVM controller: %w", err)
	}

	var (
		ld     = loader.New(dev)
		start  = time.Now()
		status = "ok"
	)

	_, err = ld.Program(context.Background(), cfg.addr, bytes.NewReader(img))
	if err != nil {
		status = fmt.Sprintf("program: %+v", err)
	}

	if err == nil && cfg.verify {
		err = ld.Verify(cfg.addr, bytes.NewReader(img))
		if err != nil {
			status = fmt.Sprintf("verify: %+v", err)
		}
	}

	if cfg.dbname != "" {
		errdb := journal(cfg, proddb.Session{
			Serial:  cfg.serial,
			Image:   filepath.Base(cfg.image),
			SHA256:  sum,
			Size:    int64(len(img)),
			Status:  status,
			Started: start,
			Elapsed: time.Since(start),
		})
		if errdb != nil {
			log.Printf("could not journal session: %+v", errdb)
		}
	}

	if err != nil {
		return fmt.Errorf("could not program %q: %w", cfg.image, err)
	}

	log.Printf("programming %q at 0x%08x... [done]", cfg.image, cfg.addr)
	return nil
}

func openDevice(cfg config) (*nvm.Device, error) {
	opts := []nvm.Option{
		nvm.WithByteSwap(cfg.swap),
		nvm.WithFaultReporter(alert),
	}

	if !cfg.sim {
		dev, err := nvm.Open(cfg.devmem, opts...)
		if err != nil {
			return nil, fmt.Errorf("could not open NVM device on %q: %w", cfg.devmem, err)
		}
		return dev, nil
	}

	ctl := irq.NewSoft()
	fsm := flashsim.New()
	fsm.AttachIRQ(ctl, irq.Line(regs.FLASH_IRQ))
	opts = append(opts, nvm.WithIRQ(ctl))
	return nvm.New(fsm.Regs(), fsm.Bank(), opts...), nil
}

func openJig(cfg string) (*jig.Jig, error) {
	toks := strings.Split(cfg, ":")
	if len(toks) != 2 {
		return nil, fmt.Errorf("invalid jig configuration %q (want bus:addr)", cfg)
	}
	bus, err := strconv.Atoi(toks[0])
	if err != nil {
		return nil, fmt.Errorf("could not parse jig bus %q: %w", toks[0], err)
	}
	addr, err := strconv.ParseUint(toks[1], 0, 8)
	if err != nil {
		return nil, fmt.Errorf("could not parse jig address %q: %w", toks[1], err)
	}
	j, err := jig.Open(bus, uint8(addr))
	if err != nil {
		return nil, fmt.Errorf("could not open jig: %w", err)
	}
	return j, nil
}

func journal(cfg config, s proddb.Session) error {
	db, err := proddb.Open(cfg.dbname)
	if err != nil {
		return err
	}
	defer db.Close()

	return db.RecordSession(context.Background(), s)
}

var (
	alertMailUsr  = os.Getenv("NVM_ALERT_USR")
	alertMailPwd  = os.Getenv("NVM_ALERT_PWD")
	alertMailSrv  = os.Getenv("NVM_ALERT_SRV")
	alertMailPort = 587
	alertMailTgts = tgtsFromEnv()
)

func tgtsFromEnv() []string {
	v := os.Getenv("NVM_ALERT_TGTS")
	if v == "" {
		return nil
	}
	return strings.Split(v, ",")
}

// alert is the fault-trap diagnostic sink: the station operator gets a
// mail before the process halts for good.
func alert(sr uint32) {
	log.Printf("NVM fault (sr=0x%08x), halting", sr)

	if alertMailUsr == "" || alertMailPwd == "" ||
		alertMailSrv == "" || len(alertMailTgts) == 0 {
		return
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", alertMailUsr)
	msg.SetHeader("Bcc", alertMailTgts...)
	msg.SetHeader("Subject", "[nvm-flash] NVM fault")
	msg.SetBody("text/plain", fmt.Sprintf("status register: 0x%08x\nhost halted, operator action needed", sr))

	dial := mail.NewDialer(alertMailSrv, alertMailPort, alertMailUsr, alertMailPwd)
	dial.TLSConfig = &tls.Config{
		InsecureSkipVerify: true,
	}
	err := dial.DialAndSend(msg)
	if err != nil {
		log.Printf("could not send mail alert: %+v", err)
	}
}
