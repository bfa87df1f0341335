// Copyright 2026 The go-boot Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package irq

import (
	"testing"
)

func TestRaise(t *testing.T) {
	ctl := NewSoft()

	var fired []Line
	ctl.Handle(3, func() { fired = append(fired, 3) })

	// disabled line: nothing happens
	ctl.Raise(3)
	if len(fired) != 0 {
		t.Fatalf("disabled line fired: %v", fired)
	}

	ctl.Enable(3)
	ctl.Raise(3)
	if len(fired) != 1 {
		t.Fatalf("enabled line did not fire: %v", fired)
	}

	ctl.Disable(3)
	ctl.Raise(3)
	if len(fired) != 1 {
		t.Fatalf("re-disabled line fired: %v", fired)
	}
}

func TestMaskPendsLines(t *testing.T) {
	ctl := NewSoft()

	var fired []Line
	for _, l := range []Line{1, 2, 3} {
		l := l
		ctl.Handle(l, func() { fired = append(fired, l) })
		ctl.Enable(l)
	}
	ctl.SetPriority(1, 2)
	ctl.SetPriority(2, 0)
	ctl.SetPriority(3, 1)

	ctl.MaskAll()
	if !ctl.Masked() {
		t.Fatalf("controller not masked")
	}

	ctl.Raise(1)
	ctl.Raise(2)
	ctl.Raise(3)
	if len(fired) != 0 {
		t.Fatalf("lines fired while masked: %v", fired)
	}

	ctl.UnmaskAll()
	if ctl.Masked() {
		t.Fatalf("controller still masked")
	}

	// pending lines drain in priority order
	if got, want := len(fired), 3; got != want {
		t.Fatalf("invalid number of fired lines: got=%d, want=%d", got, want)
	}
	for i, want := range []Line{2, 3, 1} {
		if fired[i] != want {
			t.Fatalf("invalid firing order: got=%v, want=[2 3 1]", fired)
		}
	}
}

func TestMaskNesting(t *testing.T) {
	ctl := NewSoft()

	var fired int
	ctl.Handle(3, func() { fired++ })
	ctl.Enable(3)

	ctl.MaskAll()
	ctl.MaskAll()
	ctl.Raise(3)

	ctl.UnmaskAll()
	if fired != 0 {
		t.Fatalf("nested mask released too early")
	}

	ctl.UnmaskAll()
	if fired != 1 {
		t.Fatalf("pending line not delivered on final unmask: fired=%d", fired)
	}

	masks, unmasks := ctl.Stats()
	if masks != 2 || unmasks != 2 {
		t.Fatalf("invalid stats: masks=%d, unmasks=%d", masks, unmasks)
	}
}
