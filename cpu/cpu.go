/*
 * rv64sim - Interpreter core and register file.
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

package cpu

import (
	"log/slog"

	"rv64sim/addr"
	"rv64sim/clock"
	"rv64sim/decode"
	"rv64sim/mmu"
	"rv64sim/simerr"
)

// State is the machine's run state.
type State int

const (
	Running State = iota
	Stopped
	End
	Abort
	Quit
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	case End:
		return "end"
	case Abort:
		return "abort"
	case Quit:
		return "quit"
	default:
		return "unknown"
	}
}

type reservation struct {
	addr  addr.PAddr
	valid bool
}

// CPU holds the full architectural state of one hart: the register file,
// program counter, LR/SC reservation, and run state.
type CPU struct {
	regs        [32]uint64
	pc          addr.VAddr
	reservation reservation
	state       State
	haltPC      addr.VAddr
	haltRet     uint64
	abortErr    error

	mmu *mmu.MMU
	clk *clock.Clock
	log *slog.Logger
}

// New creates a CPU at rest, with PC set to entryPC and Running state.
func New(m *mmu.MMU, clk *clock.Clock, log *slog.Logger, entryPC addr.VAddr) *CPU {
	return &CPU{mmu: m, clk: clk, log: log, pc: entryPC, state: Running}
}

// PC returns the current program counter.
func (c *CPU) PC() addr.VAddr { return c.pc }

// State returns the machine's current run state.
func (c *CPU) State() State { return c.state }

// HaltPC and HaltRet report the PC and a0 value recorded when ebreak
// transitioned the machine to End.
func (c *CPU) HaltPC() addr.VAddr { return c.haltPC }
func (c *CPU) HaltRet() uint64    { return c.haltRet }

// AbortError returns the error that moved the machine to Abort, if any.
func (c *CPU) AbortError() error { return c.abortErr }

// Reg returns the value of general register i (0 for x0).
func (c *CPU) Reg(i uint8) uint64 {
	if i == 0 {
		return 0
	}
	return c.regs[i]
}

// SetReg writes v to general register i; writes to x0 are silently
// dropped.
func (c *CPU) SetReg(i uint8, v uint64) {
	if i == 0 {
		return
	}
	c.regs[i] = v
}

// ReadWord reads a 4-byte value at v through the CPU's MMU, for monitor and
// diagnostic use; it does not affect architectural state.
func (c *CPU) ReadWord(v addr.VAddr) (uint64, error) {
	return c.mmu.Read(v, addr.Word)
}

// ReadByte reads a single byte at v through the CPU's MMU, for monitor and
// diagnostic use; it does not affect architectural state.
func (c *CPU) ReadByte(v addr.VAddr) (byte, error) {
	b, err := c.mmu.Read(v, addr.Byte)
	return byte(b), err
}

// RegByName looks up a register by its ABI name (e.g. "a0", "sp") or its
// numeric name ("x10"); ok is false for an unrecognized name.
func (c *CPU) RegByName(name string) (uint64, bool) {
	i, ok := regIndex(name)
	if !ok {
		return 0, false
	}
	return c.Reg(uint8(i)), true
}

// DumpRegisters returns a snapshot of all 32 general registers plus PC,
// keyed by numeric register name, for abort diagnostics and the
// interactive monitor.
func (c *CPU) DumpRegisters() map[string]uint64 {
	out := make(map[string]uint64, 33)
	for i := 0; i < 32; i++ {
		out[numericNames[i]] = c.Reg(uint8(i))
	}
	out["pc"] = uint64(c.pc)
	return out
}

// Exec retires up to n instructions, stopping early if the machine leaves
// the Running state. It returns the number of instructions retired.
func (c *CPU) Exec(n int) (int, error) {
	for i := 0; i < n; i++ {
		if c.state != Running {
			return i, nil
		}
		if err := c.ExecOnce(); err != nil {
			return i, err
		}
	}
	return n, nil
}

// ExecOnce fetches, decodes, and retires exactly one instruction, then
// advances the virtual clock by one tick. When the instruction stops the
// machine (ebreak), the PC stays on it and the clock is not advanced. It is
// a no-op returning nil if the machine is not Running.
func (c *CPU) ExecOnce() error {
	if c.state != Running {
		return nil
	}

	word, err := c.mmu.Read(c.pc, addr.Word)
	if err != nil {
		c.abort(err)
		return err
	}

	in, err := decode.Decode(addr.PAddr(c.pc), uint32(word))
	if err != nil {
		c.abort(err)
		return err
	}

	nextPC := c.pc.Add(4)
	if err := c.execute(in, &nextPC); err != nil {
		c.abort(err)
		return err
	}

	if c.state == Running {
		c.pc = nextPC
		c.clk.Advance(1)
	}
	return nil
}

func (c *CPU) abort(err error) {
	if c.state == Running {
		c.state = Abort
		c.abortErr = err
		if c.log != nil {
			c.log.Error("cpu aborted", "pc", c.pc.String(), "err", err)
		}
	}
}

func (c *CPU) unimplemented(in decode.Instruction) error {
	return &simerr.DecodeError{Kind: simerr.Unimplemented, PC: addr.PAddr(c.pc), Word: in.Raw}
}

// invalidateReservation clears the LR/SC reservation if a store (from any
// instruction, not only sc) touches the exact reserved word. Tightened
// beyond a bare sc-only check per the LR/SC invalidation decision on file
// in the design notes.
func (c *CPU) invalidateReservation(a addr.PAddr, w addr.Width) {
	if c.reservation.valid && a == c.reservation.addr {
		c.reservation.valid = false
	}
}
