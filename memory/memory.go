/*
 * rv64sim - Low level memory.
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

package memory

import (
	"encoding/binary"

	"rv64sim/addr"
	"rv64sim/simerr"
)

// RAM is a flat, zero-initialized byte buffer valid over [base, base+len(data)).
type RAM struct {
	base addr.PAddr
	data []byte
}

// New allocates a zero-initialized RAM region of size bytes starting at base.
func New(base addr.PAddr, size uint64) *RAM {
	return &RAM{base: base, data: make([]byte, size)}
}

// Base returns the RAM's starting physical address.
func (m *RAM) Base() addr.PAddr {
	return m.base
}

// Size returns the RAM's length in bytes.
func (m *RAM) Size() uint64 {
	return uint64(len(m.data))
}

// Contains reports whether [a, a+w) lies entirely within the RAM region.
func (m *RAM) Contains(a addr.PAddr, w addr.Width) bool {
	if a < m.base {
		return false
	}
	off := a.Sub(m.base)
	return off+uint64(w) <= uint64(len(m.data))
}

// Read returns the little-endian value at a with the given width. Unaligned
// accesses within range are permitted.
func (m *RAM) Read(a addr.PAddr, w addr.Width) (uint64, error) {
	if !m.Contains(a, w) {
		return 0, &simerr.OutOfBounds{Addr: a, Width: w}
	}
	off := a.Sub(m.base)
	switch w {
	case addr.Byte:
		return uint64(m.data[off]), nil
	case addr.Halfword:
		return uint64(binary.LittleEndian.Uint16(m.data[off:])), nil
	case addr.Word:
		return uint64(binary.LittleEndian.Uint32(m.data[off:])), nil
	case addr.Doubleword:
		return binary.LittleEndian.Uint64(m.data[off:]), nil
	default:
		return 0, &simerr.OutOfBounds{Addr: a, Width: w}
	}
}

// Write stores the low w bytes of v at a, little-endian.
func (m *RAM) Write(a addr.PAddr, w addr.Width, v uint64) error {
	if !m.Contains(a, w) {
		return &simerr.OutOfBounds{Addr: a, Width: w}
	}
	off := a.Sub(m.base)
	switch w {
	case addr.Byte:
		m.data[off] = byte(v)
	case addr.Halfword:
		binary.LittleEndian.PutUint16(m.data[off:], uint16(v))
	case addr.Word:
		binary.LittleEndian.PutUint32(m.data[off:], uint32(v))
	case addr.Doubleword:
		binary.LittleEndian.PutUint64(m.data[off:], v)
	default:
		return &simerr.OutOfBounds{Addr: a, Width: w}
	}
	return nil
}

// LoadBytes copies data into RAM starting at a, byte by byte -- the same
// discipline the MMU's LoadProgram uses to keep the paging seam honest.
func (m *RAM) LoadBytes(a addr.PAddr, data []byte) error {
	for i, b := range data {
		if err := m.Write(a.Add(uint64(i)), addr.Byte, uint64(b)); err != nil {
			return err
		}
	}
	return nil
}
