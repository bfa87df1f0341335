// Copyright 2026 The go-boot Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRunSim(t *testing.T) {
	tmp := t.TempDir()
	img := filepath.Join(tmp, "blinky.bin")

	raw := make([]byte, 200) // page and a half, ragged tail
	for i := range raw {
		raw[i] = byte(i)
	}
	err := os.WriteFile(img, raw, 0644)
	if err != nil {
		t.Fatalf("could not create image: %+v", err)
	}

	err = run(config{
		sim:    true,
		addr:   0x08004000,
		verify: true,
		image:  img,
	})
	if err != nil {
		t.Fatalf("could not flash image: %+v", err)
	}
}

func TestRunMisaligned(t *testing.T) {
	tmp := t.TempDir()
	img := filepath.Join(tmp, "blinky.bin")

	err := os.WriteFile(img, make([]byte, 16), 0644)
	if err != nil {
		t.Fatalf("could not create image: %+v", err)
	}

	err = run(config{
		sim:   true,
		addr:  0x08004004,
		image: img,
	})
	if err == nil {
		t.Fatalf("expected an error for a misaligned target address")
	}
}

func TestRunNoImage(t *testing.T) {
	err := run(config{
		sim:   true,
		addr:  0x08004000,
		image: "testdata/does-not-exist.bin",
	})
	if err == nil {
		t.Fatalf("expected an error for a missing image")
	}
}
