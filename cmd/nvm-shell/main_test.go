// Copyright 2026 The go-boot Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestShell(t *testing.T) *shell {
	t.Helper()
	dev, err := openDevice(true, "")
	if err != nil {
		t.Fatalf("could not open device: %+v", err)
	}
	t.Cleanup(func() { _ = dev.Close() })

	err = dev.Init()
	if err != nil {
		t.Fatalf("could not initialize device: %+v", err)
	}
	return &shell{dev: dev}
}

func TestEval(t *testing.T) {
	sh := newTestShell(t)

	for _, cmd := range []string{
		"erase 0x08004000",
		"pw 0x08004000 0xdeadbeef",
	} {
		quit, err := sh.eval(io.Discard, cmd)
		if err != nil {
			t.Fatalf("%q: %+v", cmd, err)
		}
		if quit {
			t.Fatalf("%q: unexpected quit", cmd)
		}
	}

	w := new(strings.Builder)
	quit, err := sh.eval(w, "rd 0x08004000")
	if err != nil {
		t.Fatalf("could not read word: %+v", err)
	}
	if quit {
		t.Fatalf("unexpected quit")
	}
	if got, want := w.String(), "0x08004000: deadbeef\n"; got != want {
		t.Fatalf("invalid read: got=%q, want=%q", got, want)
	}
}

func TestEvalHalfPage(t *testing.T) {
	sh := newTestShell(t)

	raw := make([]byte, 128)
	for i := range raw {
		raw[i] = byte(i)
	}
	src := filepath.Join(t.TempDir(), "src.bin")
	err := os.WriteFile(src, raw, 0644)
	if err != nil {
		t.Fatalf("could not create source file: %+v", err)
	}

	for _, cmd := range []string{
		"erase 0x08004000",
		"load " + src,
		"php 0x08004000 0 0",
		"php 0x08004040 0 1",
	} {
		_, err := sh.eval(io.Discard, cmd)
		if err != nil {
			t.Fatalf("%q: %+v", cmd, err)
		}
	}

	v, err := sh.dev.ReadWord(0x08004040)
	if err != nil {
		t.Fatalf("could not read word: %+v", err)
	}
	if got, want := v, uint32(0x43424140); got != want {
		t.Fatalf("invalid word: got=0x%08x, want=0x%08x", got, want)
	}
}

func TestEvalQuit(t *testing.T) {
	sh := newTestShell(t)

	quit, err := sh.eval(io.Discard, "quit")
	if err != nil {
		t.Fatalf("could not quit: %+v", err)
	}
	if !quit {
		t.Fatalf("expected quit")
	}
}

func TestEvalUnknown(t *testing.T) {
	sh := newTestShell(t)

	_, err := sh.eval(io.Discard, "frobnicate")
	if err == nil {
		t.Fatalf("expected an error for an unknown command")
	}
}
