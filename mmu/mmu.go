/*
 * rv64sim - Memory management unit.
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

package mmu

import (
	"rv64sim/addr"
	"rv64sim/bus"
)

// Mode selects how Translate maps a virtual address to a physical one.
type Mode int

const (
	// Bare performs no translation: VAddr and PAddr share the same
	// numeric space.
	Bare Mode = iota
)

// MMU sits between the interpreter and the bus, translating every access.
// Only Bare mode is implemented; the seam exists so paging can be added
// later without changing any of the interpreter's call sites.
type MMU struct {
	bus  *bus.Bus
	mode Mode
}

// New creates an MMU in Bare mode over bus.
func New(b *bus.Bus) *MMU {
	return &MMU{bus: b, mode: Bare}
}

// Translate maps a virtual address to a physical one under the current
// mode. In Bare mode this is the identity on the underlying integer.
func (m *MMU) Translate(v addr.VAddr) addr.PAddr {
	switch m.mode {
	default:
		return addr.PAddr(v)
	}
}

// Read translates v and reads w bytes from the underlying bus.
func (m *MMU) Read(v addr.VAddr, w addr.Width) (uint64, error) {
	return m.bus.Read(m.Translate(v), w)
}

// Write translates v and writes w bytes of val through the underlying bus.
func (m *MMU) Write(v addr.VAddr, w addr.Width, val uint64) error {
	return m.bus.Write(m.Translate(v), w, val)
}

// LoadProgram copies data into memory starting at v, byte by byte, to keep
// the translation seam honest even for bulk image loads.
func (m *MMU) LoadProgram(v addr.VAddr, data []byte) error {
	for i, b := range data {
		if err := m.Write(v.Add(uint64(i)), addr.Byte, uint64(b)); err != nil {
			return err
		}
	}
	return nil
}
