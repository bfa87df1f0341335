// Copyright 2026 The go-boot Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package loader streams a firmware image into flash through the NVM
// driver: the image is cut into pages, each page erased and then
// burst-programmed as two half-pages. Decoding the byte stream into
// words runs ahead of the programming in a double-buffered pipeline,
// the way the bootloader overlaps reception with programming.
package loader // import "github.com/go-boot/stml0/loader"

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/go-boot/stml0/nvm"
)

// pageWords is the number of words per erase page, i.e. per pipeline
// block: one block of source buffer holds two half-pages.
const pageWords = nvm.PageSize / nvm.WordSize

// Device is the part of the NVM driver the loader needs.
type Device interface {
	SetSource(src []uint32)
	ErasePage(addr uint32) error
	ProgramHalfPage(addr uint32, block, half int) error
	ReadWord(addr uint32) (uint32, error)
}

var _ Device = (*nvm.Device)(nil)

// Loader programs firmware images through an NVM device.
type Loader struct {
	msg *log.Logger
	dev Device
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger used by the loader.
func WithLogger(msg *log.Logger) Option {
	return func(ld *Loader) {
		if msg != nil {
			ld.msg = msg
		}
	}
}

// New returns a loader programming through the given device.
func New(dev Device, opts ...Option) *Loader {
	ld := &Loader{
		msg: log.New(os.Stdout, "loader: ", 0),
		dev: dev,
	}
	for _, opt := range opts {
		opt(ld)
	}
	return ld
}

// Program writes the image read from r into flash starting at the
// given page-aligned address. The last page is padded with 0xFF, the
// erased state, so padding never flips programmed bits. It returns the
// number of image bytes written.
func (ld *Loader) Program(ctx context.Context, addr uint32, r io.Reader) (int, error) {
	if addr%nvm.PageSize != 0 {
		return 0, fmt.Errorf("loader: image address 0x%08x: %w", addr, nvm.ErrAlign)
	}

	var (
		n      int
		blocks = make(chan []uint32, 1)
	)

	grp, ctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		defer close(blocks)
		buf := make([]byte, nvm.PageSize)
		for {
			nr, err := io.ReadFull(r, buf)
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
				return fmt.Errorf("loader: could not read image: %w", err)
			}
			n += nr
			for i := nr; i < len(buf); i++ {
				buf[i] = 0xFF
			}
			words := make([]uint32, pageWords)
			for i := range words {
				words[i] = binary.LittleEndian.Uint32(buf[4*i:])
			}
			select {
			case blocks <- words:
			case <-ctx.Done():
				return ctx.Err()
			}
			if nr < len(buf) {
				return nil
			}
		}
	})
	grp.Go(func() error {
		page := addr
		for words := range blocks {
			if err := ctx.Err(); err != nil {
				return err
			}
			ld.dev.SetSource(words)
			err := ld.dev.ErasePage(page)
			if err != nil {
				return fmt.Errorf("loader: could not erase page 0x%08x: %w", page, err)
			}
			err = ld.dev.ProgramHalfPage(page, 0, 0)
			if err != nil {
				return fmt.Errorf("loader: could not program half-page 0x%08x: %w", page, err)
			}
			err = ld.dev.ProgramHalfPage(page+nvm.HalfPageSize, 0, 1)
			if err != nil {
				return fmt.Errorf("loader: could not program half-page 0x%08x: %w",
					page+nvm.HalfPageSize, err,
				)
			}
			page += nvm.PageSize
		}
		return nil
	})

	err := grp.Wait()
	if err != nil {
		return n, err
	}

	ld.msg.Printf("programmed %d bytes at 0x%08x", n, addr)
	return n, nil
}

// Verify reads flash back and compares it with the image read from r.
// It returns the first mismatch as an error.
func (ld *Loader) Verify(addr uint32, r io.Reader) error {
	if addr%nvm.WordSize != 0 {
		return fmt.Errorf("loader: image address 0x%08x: %w", addr, nvm.ErrAlign)
	}

	var (
		buf [nvm.WordSize]byte
		off uint32
	)
	for {
		n, err := io.ReadFull(r, buf[:])
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("loader: could not read image: %w", err)
		}
		for i := n; i < len(buf); i++ {
			buf[i] = 0xFF
		}

		want := binary.LittleEndian.Uint32(buf[:])
		got, rerr := ld.dev.ReadWord(addr + off)
		if rerr != nil {
			return fmt.Errorf("loader: could not read back 0x%08x: %w", addr+off, rerr)
		}
		if got != want {
			return fmt.Errorf("loader: verify mismatch at 0x%08x: got=0x%08x, want=0x%08x",
				addr+off, got, want,
			)
		}

		if n < len(buf) {
			return nil
		}
		off += nvm.WordSize
	}
}
