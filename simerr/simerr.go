/*
 * rv64sim - Simulator error kinds.
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

package simerr

import (
	"fmt"

	"rv64sim/addr"
)

// OutOfBounds is returned by the bus and memory when an access falls
// outside both RAM and every registered MMIO range.
type OutOfBounds struct {
	Addr  addr.PAddr
	Width addr.Width
}

func (e *OutOfBounds) Error() string {
	return fmt.Sprintf("out of bounds: %s access at %s", e.Width, e.Addr)
}

// Conflict is returned only at MMIO registration time, when a new entry's
// range overlaps one already registered.
type Conflict struct {
	Start, End addr.PAddr
	Name       string
	With       string
}

func (e *Conflict) Error() string {
	return fmt.Sprintf("mmio range conflict: %s [%s,%s) overlaps %s", e.Name, e.Start, e.End, e.With)
}

// DecodeErrorKind distinguishes the reasons a 32-bit word failed to decode.
type DecodeErrorKind int

const (
	// Unknown means the opcode pattern is not a defined RV64IMA encoding.
	Unknown DecodeErrorKind = iota
	// Reserved means the pattern is reserved for a future standard extension.
	Reserved
	// Truncated means fewer than 4 bytes were available to decode.
	Truncated
	// Unimplemented means the encoding is well-defined but not handled by
	// this core (ecall, csr*, wfi, sfence.vma, privileged returns).
	Unimplemented
)

func (k DecodeErrorKind) String() string {
	switch k {
	case Unknown:
		return "unknown"
	case Reserved:
		return "reserved"
	case Truncated:
		return "truncated"
	case Unimplemented:
		return "unimplemented"
	default:
		return "decode-error"
	}
}

// DecodeError is fatal for the retiring instruction: the interpreter aborts
// the run and records the PC at which it occurred.
type DecodeError struct {
	Kind DecodeErrorKind
	PC   addr.PAddr
	Word uint32
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s instruction %#08x at %s", e.Kind, e.Word, e.PC)
}

// DifftestErrorKind distinguishes difftest transport failures from protocol
// mismatches found while driving the reference simulator.
type DifftestErrorKind int

const (
	ConnectionFailed DifftestErrorKind = iota
	InvalidResponse
	ChecksumMismatch
	IoError
)

func (k DifftestErrorKind) String() string {
	switch k {
	case ConnectionFailed:
		return "connection failed"
	case InvalidResponse:
		return "invalid response"
	case ChecksumMismatch:
		return "checksum mismatch"
	case IoError:
		return "io error"
	default:
		return "difftest error"
	}
}

// DifftestError wraps transport/protocol failures talking to the reference
// simulator. These abort only the difftest session, never the guest
// program's own semantics.
type DifftestError struct {
	Kind DifftestErrorKind
	Err  error
}

func (e *DifftestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("difftest: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("difftest: %s", e.Kind)
}

func (e *DifftestError) Unwrap() error {
	return e.Err
}

// Mismatch records a single register disagreement between the local CPU
// and the reference simulator.
type Mismatch struct {
	Register string
	Local    uint64
	Ref      uint64
	Step     uint64
}

func (e *Mismatch) Error() string {
	return fmt.Sprintf("difftest divergence at step %d: register %s local=%#x ref=%#x",
		e.Step, e.Register, e.Local, e.Ref)
}
