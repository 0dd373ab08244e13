/*
 * rv64sim - Load, store and atomic memory access.
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
	"rv64sim/addr"
	"rv64sim/decode"
)

func (c *CPU) execLoad(in decode.Instruction) error {
	ea := addr.VAddr(c.Reg(in.Rs1) + uint64(in.Imm))

	var w addr.Width
	switch in.Op {
	case decode.OpLB, decode.OpLBU:
		w = addr.Byte
	case decode.OpLH, decode.OpLHU:
		w = addr.Halfword
	case decode.OpLW, decode.OpLWU:
		w = addr.Word
	case decode.OpLD:
		w = addr.Doubleword
	}

	v, err := c.mmu.Read(ea, w)
	if err != nil {
		return err
	}

	switch in.Op {
	case decode.OpLB:
		v = signExtend8(uint8(v))
	case decode.OpLH:
		v = signExtend16(uint16(v))
	case decode.OpLW:
		v = signExtend32(uint32(v))
	}
	c.SetReg(in.Rd, v)
	return nil
}

func (c *CPU) execStore(in decode.Instruction) error {
	ea := addr.VAddr(c.Reg(in.Rs1) + uint64(in.Imm))

	var w addr.Width
	switch in.Op {
	case decode.OpSB:
		w = addr.Byte
	case decode.OpSH:
		w = addr.Halfword
	case decode.OpSW:
		w = addr.Word
	case decode.OpSD:
		w = addr.Doubleword
	}

	c.invalidateReservation(c.mmu.Translate(ea), w)
	return c.mmu.Write(ea, w, c.Reg(in.Rs2))
}

func (c *CPU) execAMO(in decode.Instruction) error {
	ea := addr.VAddr(c.Reg(in.Rs1))
	pa := c.mmu.Translate(ea)

	is64 := false
	switch in.Op {
	case decode.OpLRD, decode.OpSCD, decode.OpAMOSWAPD, decode.OpAMOADDD, decode.OpAMOXORD,
		decode.OpAMOANDD, decode.OpAMOORD, decode.OpAMOMIND, decode.OpAMOMAXD,
		decode.OpAMOMINUD, decode.OpAMOMAXUD:
		is64 = true
	}
	w := addr.Word
	if is64 {
		w = addr.Doubleword
	}

	switch in.Op {
	case decode.OpLRW, decode.OpLRD:
		v, err := c.mmu.Read(ea, w)
		if err != nil {
			return err
		}
		if !is64 {
			v = signExtend32(uint32(v))
		}
		c.reservation = reservation{addr: pa, valid: true}
		c.SetReg(in.Rd, v)
		return nil

	case decode.OpSCW, decode.OpSCD:
		if c.reservation.valid && c.reservation.addr == pa {
			if err := c.mmu.Write(ea, w, c.Reg(in.Rs2)); err != nil {
				return err
			}
			c.reservation.valid = false
			c.SetReg(in.Rd, 0)
			return nil
		}
		c.SetReg(in.Rd, 1)
		return nil
	}

	// Read-modify-write AMOs.
	old, err := c.mmu.Read(ea, w)
	if err != nil {
		return err
	}
	c.invalidateReservation(pa, w)

	var result uint64
	rs2 := c.Reg(in.Rs2)
	switch in.Op {
	case decode.OpAMOSWAPW, decode.OpAMOSWAPD:
		result = rs2
	case decode.OpAMOADDW, decode.OpAMOADDD:
		result = old + rs2
	case decode.OpAMOXORW, decode.OpAMOXORD:
		result = old ^ rs2
	case decode.OpAMOANDW, decode.OpAMOANDD:
		result = old & rs2
	case decode.OpAMOORW, decode.OpAMOORD:
		result = old | rs2
	case decode.OpAMOMINW:
		result = uint64(minInt64(int64(int32(old)), int64(int32(rs2))))
	case decode.OpAMOMIND:
		result = uint64(minInt64(int64(old), int64(rs2)))
	case decode.OpAMOMAXW:
		result = uint64(maxInt64(int64(int32(old)), int64(int32(rs2))))
	case decode.OpAMOMAXD:
		result = uint64(maxInt64(int64(old), int64(rs2)))
	case decode.OpAMOMINUW:
		result = minUint64(old&0xFFFFFFFF, rs2&0xFFFFFFFF)
	case decode.OpAMOMINUD:
		result = minUint64(old, rs2)
	case decode.OpAMOMAXUW:
		result = maxUint64(old&0xFFFFFFFF, rs2&0xFFFFFFFF)
	case decode.OpAMOMAXUD:
		result = maxUint64(old, rs2)
	}

	if err := c.mmu.Write(ea, w, result); err != nil {
		return err
	}

	loaded := old
	if !is64 {
		loaded = signExtend32(uint32(old))
	}
	c.SetReg(in.Rd, loaded)
	return nil
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func minUint64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

func maxUint64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}
