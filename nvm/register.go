// Copyright 2026 The go-boot Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nvm

import (
	"io"
)

type rwer interface {
	io.ReaderAt
	io.WriterAt
}

type reg32 struct {
	r func() uint32
	w func(v uint32)
}

func newReg32(dev *Device, rw rwer, offset int64) reg32 {
	return reg32{
		r: func() uint32 {
			return dev.readU32(rw, offset)
		},
		w: func(v uint32) {
			dev.writeU32(rw, offset, v)
		},
	}
}
