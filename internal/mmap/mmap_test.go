// Copyright 2026 The go-boot Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mmap

import (
	"errors"
	"os"
	"testing"
)

func TestWindow(t *testing.T) {
	t.Run("nil-window", func(t *testing.T) {
		var w *Window

		_, err := w.ReadAt(nil, 0)
		if !errors.Is(err, os.ErrInvalid) {
			t.Fatalf("invalid read-at error: %+v", err)
		}

		_, err = w.WriteAt(nil, 0)
		if !errors.Is(err, os.ErrInvalid) {
			t.Fatalf("invalid write-at error: %+v", err)
		}

		err = w.Close()
		if !errors.Is(err, os.ErrInvalid) {
			t.Fatalf("invalid close error: %+v", err)
		}
	})
	t.Run("nil-data", func(t *testing.T) {
		var w Window

		_, err := w.ReadAt(nil, 0)
		if !errors.Is(err, errClosed) {
			t.Fatalf("invalid read-at error: %+v", err)
		}

		_, err = w.WriteAt(nil, 0)
		if !errors.Is(err, errClosed) {
			t.Fatalf("invalid write-at error: %+v", err)
		}

		err = w.Close()
		if err != nil {
			t.Fatalf("error closing nil-data window: %+v", err)
		}
	})
}

func TestWindowFrom(t *testing.T) {
	w := WindowFrom([]byte{0, 1, 2, 3})

	if got, want := w.Len(), 4; got != want {
		t.Fatalf("invalid len: got=%d, want=%d", got, want)
	}

	buf := make([]byte, 2)
	n, err := w.ReadAt(buf, 1)
	if err != nil {
		t.Fatalf("could not read: %+v", err)
	}
	if n != len(buf) || buf[0] != 1 || buf[1] != 2 {
		t.Fatalf("invalid read: n=%d buf=%v", n, buf)
	}

	n, err = w.WriteAt([]byte{9, 9}, 2)
	if err != nil {
		t.Fatalf("could not write: %+v", err)
	}
	if n != 2 {
		t.Fatalf("invalid write: n=%d", n)
	}

	_, err = w.WriteAt(nil, -1)
	if got, want := err.Error(), "mmap: invalid WriteAt offset -1"; got != want {
		t.Fatalf("invalid error: %+v", err)
	}

	_, err = w.ReadAt(nil, -1)
	if got, want := err.Error(), "mmap: invalid ReadAt offset -1"; got != want {
		t.Fatalf("invalid error: %+v", err)
	}
}
