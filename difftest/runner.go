/*
 * rv64sim - Differential test driver.
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

package difftest

import (
	"fmt"

	"rv64sim/cpu"
	"rv64sim/simerr"
)

// regCount is 32 general registers plus PC; this core has no FPU state to
// difftest, but the wire layout still carries fpSlots zero-padded
// floating-point slots after the PC.
const (
	regCount = 33
	fpSlots  = 32
)

const memcpyMTU = 8

// RegBlock is a full register snapshot in the wire order GetRegs/SetRegs
// use: x0..x31, then pc.
type RegBlock [regCount]uint64

// Runner drives one reference simulator over a Conn.
type Runner struct {
	conn *Conn
}

// NewRunner wraps an already-dialed Conn.
func NewRunner(conn *Conn) *Runner {
	return &Runner{conn: conn}
}

// MemcpyTo writes data into the reference's memory starting at dest, in
// memcpyMTU-sized chunks, matching the reference transport's framing
// limit.
func (r *Runner) MemcpyTo(dest uint64, data []byte) error {
	for offset := 0; offset < len(data); offset += memcpyMTU {
		end := offset + memcpyMTU
		if end > len(data) {
			end = len(data)
		}
		chunk := data[offset:end]
		cmd := append([]byte(fmt.Sprintf("M%x,%d:", dest+uint64(offset), len(chunk))), encodeHexBytes(chunk)...)
		if err := r.conn.Send(cmd); err != nil {
			return err
		}
		reply, err := r.conn.Recv()
		if err != nil {
			return err
		}
		if string(reply) != "OK" {
			return &simerr.DifftestError{Kind: simerr.InvalidResponse}
		}
	}
	return nil
}

// MemcpyFrom reads n bytes from the reference's memory starting at src.
func (r *Runner) MemcpyFrom(src uint64, n int) ([]byte, error) {
	out := make([]byte, 0, n)
	for len(out) < n {
		chunkLen := memcpyMTU
		if remaining := n - len(out); remaining < chunkLen {
			chunkLen = remaining
		}
		cmd := []byte(fmt.Sprintf("m%x,%d", src+uint64(len(out)), chunkLen))
		if err := r.conn.Send(cmd); err != nil {
			return nil, err
		}
		reply, err := r.conn.Recv()
		if err != nil {
			return nil, err
		}
		chunk, err := decodeHexBytes(reply)
		if err != nil {
			return nil, err
		}
		if len(chunk) != chunkLen {
			return nil, &simerr.DifftestError{Kind: simerr.InvalidResponse}
		}
		out = append(out, chunk...)
	}
	return out, nil
}

// GetRegs fetches a full register snapshot from the reference.
func (r *Runner) GetRegs() (RegBlock, error) {
	var regs RegBlock
	if err := r.conn.Send([]byte("g")); err != nil {
		return regs, err
	}
	reply, err := r.conn.Recv()
	if err != nil {
		return regs, err
	}
	const hexPerReg = 16
	for i := 0; i < regCount && (i+1)*hexPerReg <= len(reply); i++ {
		raw, err := decodeHexBytes(reply[i*hexPerReg : (i+1)*hexPerReg])
		if err != nil {
			return regs, err
		}
		var v uint64
		for j := len(raw) - 1; j >= 0; j-- {
			v = v<<8 | uint64(raw[j])
		}
		regs[i] = v
	}
	return regs, nil
}

// SetRegs pushes a full register snapshot to the reference: the 32 GPRs,
// the PC, then the zero-padded floating-point slots.
func (r *Runner) SetRegs(regs RegBlock) error {
	cmd := []byte{'G'}
	for _, v := range regs {
		var le [8]byte
		for i := 0; i < 8; i++ {
			le[i] = byte(v >> (8 * i))
		}
		cmd = append(cmd, encodeHexBytes(le[:])...)
	}
	var zero [8]byte
	for i := 0; i < fpSlots; i++ {
		cmd = append(cmd, encodeHexBytes(zero[:])...)
	}
	if err := r.conn.Send(cmd); err != nil {
		return err
	}
	reply, err := r.conn.Recv()
	if err != nil {
		return err
	}
	if string(reply) != "OK" {
		return &simerr.DifftestError{Kind: simerr.InvalidResponse}
	}
	return nil
}

// SingleStep steps the reference by exactly one instruction.
func (r *Runner) SingleStep() error {
	if err := r.conn.Send([]byte("vCont;s:1")); err != nil {
		return err
	}
	_, err := r.conn.Recv()
	return err
}

// Continue resumes free-running execution on the reference.
func (r *Runner) Continue() error {
	if err := r.conn.Send([]byte("vCont;c:1")); err != nil {
		return err
	}
	_, err := r.conn.Recv()
	return err
}

// SetBreakpoint installs a software breakpoint at addr on the reference.
func (r *Runner) SetBreakpoint(address uint64) error {
	cmd := []byte(fmt.Sprintf("Z0,%x,4", address))
	if err := r.conn.Send(cmd); err != nil {
		return err
	}
	reply, err := r.conn.Recv()
	if err != nil {
		return err
	}
	if string(reply) != "OK" {
		return &simerr.DifftestError{Kind: simerr.InvalidResponse}
	}
	return nil
}

// ClearBreakpoint removes a previously installed breakpoint.
func (r *Runner) ClearBreakpoint(address uint64) error {
	cmd := []byte(fmt.Sprintf("z0,%x,4", address))
	if err := r.conn.Send(cmd); err != nil {
		return err
	}
	reply, err := r.conn.Recv()
	if err != nil {
		return err
	}
	if string(reply) != "OK" {
		return &simerr.DifftestError{Kind: simerr.InvalidResponse}
	}
	return nil
}

// ebreakWord is the encoding of ebreak, the halt convention both machines
// share.
const ebreakWord = 0x00100073

// Lockstep single-steps both the local CPU and the reference simulator
// together for n instructions, asserting register equality after every
// step. It returns the first Mismatch encountered, if any. When the next
// fetched word is the ebreak encoding, the halt is retired locally only:
// the reference stays parked on it.
func (r *Runner) Lockstep(c *cpu.CPU, n int) error {
	for step := uint64(0); step < uint64(n); step++ {
		if c.State() != cpu.Running {
			return nil
		}
		if word, err := c.ReadWord(c.PC()); err == nil && uint32(word) == ebreakWord {
			return c.ExecOnce()
		}
		if err := c.ExecOnce(); err != nil {
			return err
		}
		if err := r.SingleStep(); err != nil {
			return err
		}
		refRegs, err := r.GetRegs()
		if err != nil {
			return err
		}
		for i := 0; i < 32; i++ {
			if c.Reg(uint8(i)) != refRegs[i] {
				return &simerr.Mismatch{
					Register: fmt.Sprintf("x%d", i),
					Local:    c.Reg(uint8(i)),
					Ref:      refRegs[i],
					Step:     step,
				}
			}
		}
		if uint64(c.PC()) != refRegs[32] {
			return &simerr.Mismatch{
				Register: "pc",
				Local:    uint64(c.PC()),
				Ref:      refRegs[32],
				Step:     step,
			}
		}
	}
	return nil
}
