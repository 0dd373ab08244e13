/*
 * rv64sim - Instruction semantics.
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
	"math/bits"

	"rv64sim/addr"
	"rv64sim/decode"
)

func signExtend32(v uint32) uint64 {
	return uint64(int64(int32(v)))
}

func signExtend16(v uint16) uint64 {
	return uint64(int64(int16(v)))
}

func signExtend8(v uint8) uint64 {
	return uint64(int64(int8(v)))
}

// execute carries out in's semantics: register/memory effects and, for
// control-flow instructions, overwriting *nextPC. It never touches c.pc
// directly -- ExecOnce commits nextPC after execute returns successfully.
func (c *CPU) execute(in decode.Instruction, nextPC *addr.VAddr) error {
	switch in.Op {
	case decode.OpLUI:
		c.SetReg(in.Rd, uint64(in.Imm))
	case decode.OpAUIPC:
		c.SetReg(in.Rd, uint64(c.pc)+uint64(in.Imm))

	case decode.OpJAL:
		c.SetReg(in.Rd, uint64(c.pc)+4)
		*nextPC = c.pc.Add(uint64(in.Imm))
	case decode.OpJALR:
		target := (c.Reg(in.Rs1) + uint64(in.Imm)) &^ 1
		c.SetReg(in.Rd, uint64(c.pc)+4)
		*nextPC = addr.VAddr(target)

	case decode.OpBEQ:
		if c.Reg(in.Rs1) == c.Reg(in.Rs2) {
			*nextPC = c.pc.Add(uint64(in.Imm))
		}
	case decode.OpBNE:
		if c.Reg(in.Rs1) != c.Reg(in.Rs2) {
			*nextPC = c.pc.Add(uint64(in.Imm))
		}
	case decode.OpBLT:
		if int64(c.Reg(in.Rs1)) < int64(c.Reg(in.Rs2)) {
			*nextPC = c.pc.Add(uint64(in.Imm))
		}
	case decode.OpBGE:
		if int64(c.Reg(in.Rs1)) >= int64(c.Reg(in.Rs2)) {
			*nextPC = c.pc.Add(uint64(in.Imm))
		}
	case decode.OpBLTU:
		if c.Reg(in.Rs1) < c.Reg(in.Rs2) {
			*nextPC = c.pc.Add(uint64(in.Imm))
		}
	case decode.OpBGEU:
		if c.Reg(in.Rs1) >= c.Reg(in.Rs2) {
			*nextPC = c.pc.Add(uint64(in.Imm))
		}

	case decode.OpLB, decode.OpLH, decode.OpLW, decode.OpLBU, decode.OpLHU, decode.OpLWU, decode.OpLD:
		return c.execLoad(in)

	case decode.OpSB, decode.OpSH, decode.OpSW, decode.OpSD:
		return c.execStore(in)

	case decode.OpADDI:
		c.SetReg(in.Rd, c.Reg(in.Rs1)+uint64(in.Imm))
	case decode.OpSLTI:
		c.SetReg(in.Rd, boolU64(int64(c.Reg(in.Rs1)) < in.Imm))
	case decode.OpSLTIU:
		c.SetReg(in.Rd, boolU64(c.Reg(in.Rs1) < uint64(in.Imm)))
	case decode.OpXORI:
		c.SetReg(in.Rd, c.Reg(in.Rs1)^uint64(in.Imm))
	case decode.OpORI:
		c.SetReg(in.Rd, c.Reg(in.Rs1)|uint64(in.Imm))
	case decode.OpANDI:
		c.SetReg(in.Rd, c.Reg(in.Rs1)&uint64(in.Imm))
	case decode.OpSLLI:
		c.SetReg(in.Rd, c.Reg(in.Rs1)<<uint(in.Imm))
	case decode.OpSRLI:
		c.SetReg(in.Rd, c.Reg(in.Rs1)>>uint(in.Imm))
	case decode.OpSRAI:
		c.SetReg(in.Rd, uint64(int64(c.Reg(in.Rs1))>>uint(in.Imm)))

	case decode.OpADDIW:
		c.SetReg(in.Rd, signExtend32(uint32(c.Reg(in.Rs1))+uint32(in.Imm)))
	case decode.OpSLLIW:
		c.SetReg(in.Rd, signExtend32(uint32(c.Reg(in.Rs1))<<uint(in.Imm)))
	case decode.OpSRLIW:
		c.SetReg(in.Rd, signExtend32(uint32(c.Reg(in.Rs1))>>uint(in.Imm)))
	case decode.OpSRAIW:
		c.SetReg(in.Rd, signExtend32(uint32(int32(uint32(c.Reg(in.Rs1)))>>uint(in.Imm))))

	case decode.OpADD:
		c.SetReg(in.Rd, c.Reg(in.Rs1)+c.Reg(in.Rs2))
	case decode.OpSUB:
		c.SetReg(in.Rd, c.Reg(in.Rs1)-c.Reg(in.Rs2))
	case decode.OpSLL:
		c.SetReg(in.Rd, c.Reg(in.Rs1)<<(c.Reg(in.Rs2)&0x3f))
	case decode.OpSLT:
		c.SetReg(in.Rd, boolU64(int64(c.Reg(in.Rs1)) < int64(c.Reg(in.Rs2))))
	case decode.OpSLTU:
		c.SetReg(in.Rd, boolU64(c.Reg(in.Rs1) < c.Reg(in.Rs2)))
	case decode.OpXOR:
		c.SetReg(in.Rd, c.Reg(in.Rs1)^c.Reg(in.Rs2))
	case decode.OpSRL:
		c.SetReg(in.Rd, c.Reg(in.Rs1)>>(c.Reg(in.Rs2)&0x3f))
	case decode.OpSRA:
		c.SetReg(in.Rd, uint64(int64(c.Reg(in.Rs1))>>(c.Reg(in.Rs2)&0x3f)))
	case decode.OpOR:
		c.SetReg(in.Rd, c.Reg(in.Rs1)|c.Reg(in.Rs2))
	case decode.OpAND:
		c.SetReg(in.Rd, c.Reg(in.Rs1)&c.Reg(in.Rs2))

	case decode.OpADDW:
		c.SetReg(in.Rd, signExtend32(uint32(c.Reg(in.Rs1))+uint32(c.Reg(in.Rs2))))
	case decode.OpSUBW:
		c.SetReg(in.Rd, signExtend32(uint32(c.Reg(in.Rs1))-uint32(c.Reg(in.Rs2))))
	case decode.OpSLLW:
		c.SetReg(in.Rd, signExtend32(uint32(c.Reg(in.Rs1))<<(c.Reg(in.Rs2)&0x1f)))
	case decode.OpSRLW:
		c.SetReg(in.Rd, signExtend32(uint32(c.Reg(in.Rs1))>>(c.Reg(in.Rs2)&0x1f)))
	case decode.OpSRAW:
		c.SetReg(in.Rd, signExtend32(uint32(int32(uint32(c.Reg(in.Rs1)))>>(c.Reg(in.Rs2)&0x1f))))

	case decode.OpFENCE, decode.OpFENCEI:
		// No-op: this core has no cache or reordering to flush.

	case decode.OpEBREAK:
		c.haltPC = c.pc
		c.haltRet = c.Reg(10)
		c.state = End

	case decode.OpMUL:
		c.SetReg(in.Rd, c.Reg(in.Rs1)*c.Reg(in.Rs2))
	case decode.OpMULH:
		c.SetReg(in.Rd, mulhSigned(int64(c.Reg(in.Rs1)), int64(c.Reg(in.Rs2))))
	case decode.OpMULHU:
		hi, _ := bits.Mul64(c.Reg(in.Rs1), c.Reg(in.Rs2))
		c.SetReg(in.Rd, hi)
	case decode.OpMULHSU:
		c.SetReg(in.Rd, mulhSignedUnsigned(int64(c.Reg(in.Rs1)), c.Reg(in.Rs2)))
	case decode.OpDIV:
		c.SetReg(in.Rd, divSigned(int64(c.Reg(in.Rs1)), int64(c.Reg(in.Rs2))))
	case decode.OpDIVU:
		c.SetReg(in.Rd, divUnsigned(c.Reg(in.Rs1), c.Reg(in.Rs2)))
	case decode.OpREM:
		c.SetReg(in.Rd, remSigned(int64(c.Reg(in.Rs1)), int64(c.Reg(in.Rs2))))
	case decode.OpREMU:
		c.SetReg(in.Rd, remUnsigned(c.Reg(in.Rs1), c.Reg(in.Rs2)))

	case decode.OpMULW:
		c.SetReg(in.Rd, signExtend32(uint32(c.Reg(in.Rs1))*uint32(c.Reg(in.Rs2))))
	case decode.OpDIVW:
		a, b := int32(c.Reg(in.Rs1)), int32(c.Reg(in.Rs2))
		c.SetReg(in.Rd, signExtend32(uint32(divSigned32(a, b))))
	case decode.OpDIVUW:
		a, b := uint32(c.Reg(in.Rs1)), uint32(c.Reg(in.Rs2))
		c.SetReg(in.Rd, signExtend32(divUnsigned32(a, b)))
	case decode.OpREMW:
		a, b := int32(c.Reg(in.Rs1)), int32(c.Reg(in.Rs2))
		c.SetReg(in.Rd, signExtend32(uint32(remSigned32(a, b))))
	case decode.OpREMUW:
		a, b := uint32(c.Reg(in.Rs1)), uint32(c.Reg(in.Rs2))
		c.SetReg(in.Rd, signExtend32(remUnsigned32(a, b)))

	case decode.OpLRW, decode.OpLRD, decode.OpSCW, decode.OpSCD,
		decode.OpAMOSWAPW, decode.OpAMOADDW, decode.OpAMOXORW, decode.OpAMOANDW,
		decode.OpAMOORW, decode.OpAMOMINW, decode.OpAMOMAXW, decode.OpAMOMINUW, decode.OpAMOMAXUW,
		decode.OpAMOSWAPD, decode.OpAMOADDD, decode.OpAMOXORD, decode.OpAMOANDD,
		decode.OpAMOORD, decode.OpAMOMIND, decode.OpAMOMAXD, decode.OpAMOMINUD, decode.OpAMOMAXUD:
		return c.execAMO(in)

	case decode.OpECALL, decode.OpCSRRW, decode.OpCSRRS, decode.OpCSRRC,
		decode.OpCSRRWI, decode.OpCSRRSI, decode.OpCSRRCI:
		return c.unimplemented(in)

	default:
		return c.unimplemented(in)
	}
	return nil
}

func boolU64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func mulhSigned(a, b int64) uint64 {
	hi, _ := bits.Mul64(uint64(a), uint64(b))
	if a < 0 {
		hi -= uint64(b)
	}
	if b < 0 {
		hi -= uint64(a)
	}
	return hi
}

func mulhSignedUnsigned(a int64, b uint64) uint64 {
	hi, _ := bits.Mul64(uint64(a), b)
	if a < 0 {
		hi -= b
	}
	return hi
}

func divSigned(a, b int64) uint64 {
	if b == 0 {
		return ^uint64(0)
	}
	if a == -1<<63 && b == -1 {
		return uint64(a)
	}
	return uint64(a / b)
}

func divUnsigned(a, b uint64) uint64 {
	if b == 0 {
		return ^uint64(0)
	}
	return a / b
}

// remSigned returns a rem b, per the RISC-V spec returning the dividend
// unchanged when the divisor is zero.
func remSigned(a, b int64) uint64 {
	if b == 0 {
		return uint64(a)
	}
	if a == -1<<63 && b == -1 {
		return 0
	}
	return uint64(a % b)
}

func remUnsigned(a, b uint64) uint64 {
	if b == 0 {
		return a
	}
	return a % b
}

func divSigned32(a, b int32) int32 {
	if b == 0 {
		return -1
	}
	if a == -1<<31 && b == -1 {
		return a
	}
	return a / b
}

func divUnsigned32(a, b uint32) uint32 {
	if b == 0 {
		return ^uint32(0)
	}
	return a / b
}

func remSigned32(a, b int32) int32 {
	if b == 0 {
		return a
	}
	if a == -1<<31 && b == -1 {
		return 0
	}
	return a % b
}

func remUnsigned32(a, b uint32) uint32 {
	if b == 0 {
		return a
	}
	return a % b
}
