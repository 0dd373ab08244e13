/*
 * rv64sim - Physical address space bus.
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

package bus

import (
	"rv64sim/addr"
	"rv64sim/memory"
	"rv64sim/simerr"
)

// Peripheral is the MMIO capability a device must implement to be
// addressable on the bus. Width is passed into Write because a compiler may
// coalesce consecutive byte stores (e.g. into the VGA framebuffer) into a
// wider store.
type Peripheral interface {
	Read(offset uint64, w addr.Width) uint64
	Write(offset uint64, w addr.Width, v uint64)
	Len() uint64
}

type entry struct {
	start addr.PAddr
	end   addr.PAddr
	name  string
	dev   Peripheral
}

func (e entry) contains(a addr.PAddr, w addr.Width) bool {
	return a >= e.start && a.Add(uint64(w)) <= e.end
}

// Bus composes one RAM region with an ordered list of MMIO entries.
// Resolution precedence for a given (addr, width): first matching MMIO
// entry wins; otherwise the RAM check; otherwise OutOfBounds. Dispatch is
// a linear scan: the device table holds a single-digit number of ranges.
type Bus struct {
	ram     *memory.RAM
	entries []entry
}

// New creates a Bus backed by ram with no MMIO entries registered yet.
func New(ram *memory.RAM) *Bus {
	return &Bus{ram: ram}
}

// Register adds a half-open MMIO range [start, start+length) named name,
// backed by dev. It is an error for the new range to overlap any range
// already registered.
func (b *Bus) Register(start addr.PAddr, length uint64, name string, dev Peripheral) error {
	end := start.Add(length)
	for _, e := range b.entries {
		if start < e.end && e.start < end {
			return &simerr.Conflict{Start: start, End: end, Name: name, With: e.name}
		}
	}
	b.entries = append(b.entries, entry{start: start, end: end, name: name, dev: dev})
	return nil
}

// find returns the first registered entry whose range contains the access,
// or ok=false if none does.
func (b *Bus) find(a addr.PAddr, w addr.Width) (entry, bool) {
	for _, e := range b.entries {
		if e.contains(a, w) {
			return e, true
		}
	}
	return entry{}, false
}

// Read resolves a width-w read at a against the MMIO map first, then RAM.
func (b *Bus) Read(a addr.PAddr, w addr.Width) (uint64, error) {
	if e, ok := b.find(a, w); ok {
		offset := a.Sub(e.start)
		return e.dev.Read(offset, w), nil
	}
	return b.ram.Read(a, w)
}

// Write resolves a width-w write at a against the MMIO map first, then RAM.
func (b *Bus) Write(a addr.PAddr, w addr.Width, v uint64) error {
	if e, ok := b.find(a, w); ok {
		offset := a.Sub(e.start)
		e.dev.Write(offset, w, v)
		return nil
	}
	return b.ram.Write(a, w, v)
}

// RAM returns the bus's backing RAM region, e.g. for LoadProgram.
func (b *Bus) RAM() *memory.RAM {
	return b.ram
}
