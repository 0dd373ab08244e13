/*
 * rv64sim - VGA control and framebuffer devices.
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

package device

import (
	"encoding/binary"

	"rv64sim/addr"
)

// VGAControl is an 8-byte register pair. Offset 0 reads (width<<16)|height;
// offset 4 reads and writes a sync flag. Writing offset 4 sets the flag;
// the VGA periodic callback clears it after pushing a frame to the host.
type VGAControl struct {
	width, height uint32
	sync          bool
	fb            *VGAFramebuffer
	sink          HostSink
}

// NewVGAControl creates the control register pair for fb, pushing frames
// to sink when the sync flag fires.
func NewVGAControl(fb *VGAFramebuffer, sink HostSink) *VGAControl {
	if sink == nil {
		sink = NullHostSink{}
	}
	return &VGAControl{width: fb.width, height: fb.height, fb: fb, sink: sink}
}

func (v *VGAControl) Len() uint64 { return 8 }

func (v *VGAControl) Period() uint64 { return 100 }

func (v *VGAControl) Read(offset uint64, w addr.Width) uint64 {
	switch offset {
	case 0:
		return uint64(v.width)<<16 | uint64(v.height)
	case 4:
		if v.sync {
			return 1
		}
		return 0
	default:
		return 0
	}
}

func (v *VGAControl) Write(offset uint64, w addr.Width, val uint64) {
	if offset == 4 {
		v.sync = val != 0
	}
}

// Present pushes the framebuffer to the host and clears the sync flag, if
// set. Registered as the device's periodic clock callback.
func (v *VGAControl) Present(now, scheduledWhen uint64) {
	if !v.sync {
		return
	}
	v.sink.Present(v.fb.Bytes())
	v.sync = false
}

// VGAFramebuffer is a width*height*4-byte pixel buffer addressed as raw
// bytes: reads and writes both respect the requested width (little-endian).
// A read that would run past the end of the buffer returns only the bytes
// that remain, and a read at or past the end returns 0.
type VGAFramebuffer struct {
	width, height uint32
	mem           []byte
}

// NewVGAFramebuffer creates a zero-initialized width*height*4 byte buffer.
func NewVGAFramebuffer(width, height uint32) *VGAFramebuffer {
	return &VGAFramebuffer{width: width, height: height, mem: make([]byte, uint64(width)*uint64(height)*4)}
}

func (f *VGAFramebuffer) Len() uint64 { return uint64(len(f.mem)) }

func (f *VGAFramebuffer) Read(offset uint64, w addr.Width) uint64 {
	if offset >= uint64(len(f.mem)) {
		return 0
	}
	n := uint64(w)
	if offset+n > uint64(len(f.mem)) {
		n = uint64(len(f.mem)) - offset
	}
	switch n {
	case 1:
		return uint64(f.mem[offset])
	case 2:
		return uint64(binary.LittleEndian.Uint16(f.mem[offset:]))
	case 4:
		return uint64(binary.LittleEndian.Uint32(f.mem[offset:]))
	case 8:
		return binary.LittleEndian.Uint64(f.mem[offset:])
	default:
		return uint64(f.mem[offset])
	}
}

func (f *VGAFramebuffer) Write(offset uint64, w addr.Width, v uint64) {
	if offset+uint64(w) > uint64(len(f.mem)) {
		return
	}
	switch w {
	case addr.Byte:
		f.mem[offset] = byte(v)
	case addr.Halfword:
		binary.LittleEndian.PutUint16(f.mem[offset:], uint16(v))
	case addr.Word:
		binary.LittleEndian.PutUint32(f.mem[offset:], uint32(v))
	case addr.Doubleword:
		binary.LittleEndian.PutUint64(f.mem[offset:], v)
	}
}

// Bytes returns the framebuffer's backing storage directly; callers must
// not retain it across a Present that could reallocate. VGAFramebuffer
// never reallocates after construction, so this is safe to hold onto for
// the lifetime of the simulation.
func (f *VGAFramebuffer) Bytes() []byte {
	return f.mem
}
