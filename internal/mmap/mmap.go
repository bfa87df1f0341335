// Copyright 2026 The go-boot Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mmap maps a physical register block or flash bank into the
// process address space and exposes it as an io.ReaderAt/io.WriterAt.
package mmap // import "github.com/go-boot/stml0/internal/mmap"

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"golang.org/x/sys/unix"
)

var (
	errClosed = errors.New("mmap: closed")
)

// Window is a memory-mapped view of a physical address range.
type Window struct {
	data []byte
}

// Map maps span bytes at physical address base from the given memory
// device (usually /dev/mem).
func Map(f *os.File, base int64, span int) (*Window, error) {
	data, err := unix.Mmap(
		int(f.Fd()),
		base, span,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_SHARED,
	)
	if err != nil {
		return nil, fmt.Errorf("mmap: could not map 0x%x+0x%x: %w", base, span, err)
	}
	if data == nil || len(data) != span {
		return nil, fmt.Errorf("mmap: invalid mmap'd data: %d", len(data))
	}
	return WindowFrom(data), nil
}

// WindowFrom wraps an already mapped byte slice.
func WindowFrom(data []byte) *Window {
	w := &Window{data: data}
	runtime.SetFinalizer(w, (*Window).Close)
	return w
}

// Close unmaps the window.
func (w *Window) Close() error {
	if w == nil {
		return os.ErrInvalid
	}

	if w.data == nil {
		return nil
	}
	data := w.data
	w.data = nil
	runtime.SetFinalizer(w, nil)

	return unix.Munmap(data)
}

// Len returns the length of the underlying mapped region.
func (w *Window) Len() int {
	return len(w.data)
}

// ReadAt implements the io.ReaderAt interface.
func (w *Window) ReadAt(p []byte, off int64) (int, error) {
	if w == nil {
		return 0, os.ErrInvalid
	}

	if w.data == nil {
		return 0, errClosed
	}
	if off < 0 || int64(len(w.data)) < off {
		return 0, fmt.Errorf("mmap: invalid ReadAt offset %d", off)
	}
	n := copy(p, w.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements the io.WriterAt interface.
func (w *Window) WriteAt(p []byte, off int64) (int, error) {
	if w == nil {
		return 0, os.ErrInvalid
	}

	if w.data == nil {
		return 0, errClosed
	}
	if off < 0 || int64(len(w.data)) < off {
		return 0, fmt.Errorf("mmap: invalid WriteAt offset %d", off)
	}
	n := copy(w.data[off:], p)
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

var (
	_ io.ReaderAt = (*Window)(nil)
	_ io.WriterAt = (*Window)(nil)
	_ io.Closer   = (*Window)(nil)
)
