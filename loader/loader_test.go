// Copyright 2026 The go-boot Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package loader

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/go-boot/stml0/internal/flashsim"
	"github.com/go-boot/stml0/nvm"
)

func newTestLoader(t *testing.T) (*Loader, *nvm.Device) {
	t.Helper()

	sim := flashsim.New()
	dev := nvm.New(sim.Regs(), sim.Bank(),
		nvm.WithLogger(log.New(io.Discard, "nvm: ", 0)),
	)
	err := dev.Init()
	if err != nil {
		t.Fatalf("could not initialize device: %+v", err)
	}

	ld := New(dev, WithLogger(log.New(io.Discard, "loader: ", 0)))
	return ld, dev
}

func TestProgram(t *testing.T) {
	for _, tc := range []struct {
		name string
		size int
	}{
		{name: "one-page", size: nvm.PageSize},
		{name: "page-and-a-half", size: nvm.PageSize + nvm.HalfPageSize},
		{name: "ragged", size: 3*nvm.PageSize - 17},
		{name: "tiny", size: 5},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ld, dev := newTestLoader(t)

			const addr = 0x08004000

			img := make([]byte, tc.size)
			for i := range img {
				img[i] = byte(3*i + 1)
			}

			n, err := ld.Program(context.Background(), addr, bytes.NewReader(img))
			if err != nil {
				t.Fatalf("could not program image: %+v", err)
			}
			if n != len(img) {
				t.Fatalf("invalid number of bytes: got=%d, want=%d", n, len(img))
			}

			err = ld.Verify(addr, bytes.NewReader(img))
			if err != nil {
				t.Fatalf("could not verify image: %+v", err)
			}

			// padding beyond a ragged image must read as erased
			if pad := tc.size % nvm.WordSize; pad != 0 {
				last, err := dev.ReadWord(addr + uint32(tc.size-pad))
				if err != nil {
					t.Fatalf("could not read last word: %+v", err)
				}
				for i := pad; i < nvm.WordSize; i++ {
					if b := byte(last >> (8 * i)); b != 0xFF {
						t.Fatalf("padding byte %d not blank: 0x%02x", i, b)
					}
				}
			}
		})
	}
}

func TestProgramMisaligned(t *testing.T) {
	ld, _ := newTestLoader(t)

	_, err := ld.Program(context.Background(), 0x08004040, bytes.NewReader(make([]byte, 16)))
	if !errors.Is(err, nvm.ErrAlign) {
		t.Fatalf("invalid error: got=%+v, want=%+v", err, nvm.ErrAlign)
	}
}

func TestVerifyMismatch(t *testing.T) {
	ld, _ := newTestLoader(t)

	const addr = 0x08004000

	img := make([]byte, nvm.PageSize)
	for i := range img {
		img[i] = byte(i)
	}

	_, err := ld.Program(context.Background(), addr, bytes.NewReader(img))
	if err != nil {
		t.Fatalf("could not program image: %+v", err)
	}

	bad := make([]byte, len(img))
	copy(bad, img)
	bad[40] ^= 0xFF

	err = ld.Verify(addr, bytes.NewReader(bad))
	if err == nil {
		t.Fatalf("expected a verify mismatch")
	}
}

func TestProgramCancel(t *testing.T) {
	ld, _ := newTestLoader(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// an already-cancelled context aborts the pipeline; depending on
	// scheduling the first page may or may not land
	_, err := ld.Program(ctx, 0x08004000, bytes.NewReader(make([]byte, 4*nvm.PageSize)))
	if err == nil {
		t.Fatalf("expected an error from a cancelled context")
	}
}
