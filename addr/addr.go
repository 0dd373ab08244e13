/*
 * rv64sim - Address and access-width types.
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

package addr

import "fmt"

// PAddr is a physical address: the flat space the bus (RAM + MMIO) resolves.
type PAddr uint64

// VAddr is a virtual address: what the CPU computes and hands to the MMU.
// In Bare mode it carries the same bit pattern as the PAddr it maps to, but
// the distinct type keeps the paging seam honest (see the mmu package).
type VAddr uint64

// Width is an access width in bytes. Only four values are ever valid.
type Width uint8

const (
	Byte       Width = 1
	Halfword   Width = 2
	Word       Width = 4
	Doubleword Width = 8
)

// Valid reports whether w is one of the four supported access widths.
func (w Width) Valid() bool {
	switch w {
	case Byte, Halfword, Word, Doubleword:
		return true
	default:
		return false
	}
}

func (w Width) String() string {
	switch w {
	case Byte:
		return "byte"
	case Halfword:
		return "halfword"
	case Word:
		return "word"
	case Doubleword:
		return "doubleword"
	default:
		return fmt.Sprintf("width(%d)", uint8(w))
	}
}

// Add returns a+n, wrapping per Go's unsigned arithmetic (addresses never fault
// on overflow; only range checks performed by memory/bus reject an access).
func (a PAddr) Add(n uint64) PAddr {
	return a + PAddr(n)
}

// Sub returns the distance in bytes from b to a (a-b); b is expected to be <= a.
func (a PAddr) Sub(b PAddr) uint64 {
	return uint64(a - b)
}

func (a PAddr) String() string {
	return fmt.Sprintf("0x%016x", uint64(a))
}

func (v VAddr) Add(n uint64) VAddr {
	return v + VAddr(n)
}

func (v VAddr) String() string {
	return fmt.Sprintf("0x%016x", uint64(v))
}
